package subtitles

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	in := TokenPayload{
		Source:    "subsunacs",
		Ref:       "https://example.org/get/12345",
		Params:    map[string]string{"session": "abc"},
		FPS:       23.976,
		RuntimeMS: 7_260_000,
		Filename:  "Movie.2024.1080p.srt",
	}
	token, err := EncodeToken(in)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if strings.ContainsAny(token, "+/= ") {
		t.Errorf("token %q is not URL-safe", token)
	}
	out, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if out.Source != in.Source || out.Ref != in.Ref || out.RuntimeMS != in.RuntimeMS {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
	if out.Params["session"] != "abc" {
		t.Errorf("params lost in round trip: %+v", out.Params)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "not base64 at all!!", "aGVsbG8", "e30"} {
		if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("DecodeToken(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}
