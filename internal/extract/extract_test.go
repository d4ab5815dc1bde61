package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestIsArchive(t *testing.T) {
	if !IsArchive(buildZip(t, map[string]string{"a.srt": "x"})) {
		t.Error("zip payload not recognized")
	}
	if !IsArchive([]byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07}) {
		t.Error("rar signature not recognized")
	}
	if !IsArchive([]byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}) {
		t.Error("7z signature not recognized")
	}
	if IsArchive([]byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n")) {
		t.Error("plain SRT flagged as archive")
	}
}

func TestSubtitlePrefersSRT(t *testing.T) {
	data := buildZip(t, map[string]string{
		"readme.txt": "visit our site",
		"movie.sub":  "{0}{50}Hello",
		"movie.srt":  "1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		"movie.idx":  "binary index data",
	})
	entry, err := Subtitle(data)
	if err != nil {
		t.Fatalf("Subtitle: %v", err)
	}
	if entry.Name != "movie.srt" {
		t.Errorf("picked %q, want movie.srt", entry.Name)
	}
	if !strings.Contains(string(entry.Data), "-->") {
		t.Errorf("extracted data looks wrong: %q", entry.Data)
	}
}

func TestSubtitleSkipsUnusableFormats(t *testing.T) {
	data := buildZip(t, map[string]string{
		"movie.idx": "index",
		"movie.ssa": "styling",
		"movie.jpg": "cover",
	})
	if _, err := Subtitle(data); !errors.Is(err, ErrNoSubtitle) {
		t.Fatalf("err = %v, want ErrNoSubtitle", err)
	}
}

func TestSubtitleRejectsNonArchive(t *testing.T) {
	if _, err := Subtitle([]byte("not an archive")); err == nil {
		t.Fatal("non-archive payload accepted")
	}
}

func TestToUTF8PassesThroughUTF8(t *testing.T) {
	in := []byte("1\n00:00:01,000 --> 00:00:02,000\nЗдравей\n")
	out, err := ToUTF8(in)
	if err != nil {
		t.Fatalf("ToUTF8: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("valid UTF-8 was altered")
	}
}

func TestToUTF8ConvertsWindows1251(t *testing.T) {
	const text = "1\n00:00:01,000 --> 00:00:02,000\nЗдравей, свят\n"
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if utf8.Valid(encoded) {
		t.Fatal("fixture is accidentally valid UTF-8")
	}

	out, err := ToUTF8(encoded)
	if err != nil {
		t.Fatalf("ToUTF8: %v", err)
	}
	if string(out) != text {
		t.Errorf("decoded = %q, want %q", out, text)
	}
}

func TestToUTF8StripsBOM(t *testing.T) {
	in := append([]byte{0xef, 0xbb, 0xbf}, []byte("hello")...)
	out, err := ToUTF8(in)
	if err != nil {
		t.Fatalf("ToUTF8: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("BOM not stripped: %q", out)
	}
}
