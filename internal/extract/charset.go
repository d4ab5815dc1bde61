package extract

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ToUTF8 converts subtitle bytes to UTF-8. Valid UTF-8 passes through
// untouched; everything else goes through charset detection with a
// windows-1251 fallback, the dominant legacy encoding for Cyrillic subtitles.
func ToUTF8(data []byte) ([]byte, error) {
	data = stripBOM(data)
	if utf8.Valid(data) {
		return data, nil
	}

	enc := detectEncoding(data)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return decoded, nil
}

func detectEncoding(data []byte) encoding.Encoding {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return charmap.Windows1251
	}
	switch result.Charset {
	case "windows-1251", "KOI8-R", "IBM866", "ISO-8859-5":
		return byName(result.Charset)
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "windows-1252", "ISO-8859-1":
		// Detectors frequently report Latin-1 for short Cyrillic files;
		// windows-1251 is the safer guess for this catalogue.
		return charmap.Windows1251
	default:
		return charmap.Windows1251
	}
}

func byName(name string) encoding.Encoding {
	switch name {
	case "KOI8-R":
		return charmap.KOI8R
	case "IBM866":
		return charmap.CodePage866
	case "ISO-8859-5":
		return charmap.ISO8859_5
	default:
		return charmap.Windows1251
	}
}

func stripBOM(data []byte) []byte {
	switch {
	case bytes.HasPrefix(data, []byte{0xef, 0xbb, 0xbf}):
		return data[3:]
	}
	return data
}
