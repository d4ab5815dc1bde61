// Package extract pulls subtitle files out of the archive formats providers
// serve (zip, rar, 7z) and converts legacy encodings to UTF-8.
package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// ErrNoSubtitle reports an archive that contained no usable subtitle entry.
var ErrNoSubtitle = errors.New("no subtitle file in archive")

// Entry is one extracted file.
type Entry struct {
	Name string
	Data []byte
}

var (
	zipMagic   = []byte{0x50, 0x4b, 0x03, 0x04}
	rarMagic   = []byte{0x52, 0x61, 0x72, 0x21}
	sevenMagic = []byte{0x37, 0x7a, 0xbc, 0xaf}
)

// IsArchive reports whether data starts with a supported archive signature.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic) ||
		bytes.HasPrefix(data, rarMagic) ||
		bytes.HasPrefix(data, sevenMagic)
}

// Subtitle extracts the best subtitle entry from archive data. Plain .srt
// entries win over other text formats; image-based and styling formats are
// skipped entirely.
func Subtitle(data []byte) (*Entry, error) {
	var entries []Entry
	var err error
	switch {
	case bytes.HasPrefix(data, zipMagic):
		entries, err = listZip(data)
	case bytes.HasPrefix(data, rarMagic):
		entries, err = listRar(data)
	case bytes.HasPrefix(data, sevenMagic):
		entries, err = listSevenZip(data)
	default:
		return nil, fmt.Errorf("unrecognized archive signature")
	}
	if err != nil {
		return nil, err
	}

	candidates := entries[:0]
	for _, e := range entries {
		if usableSubtitle(e.Name) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoSubtitle
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := formatRank(candidates[a].Name), formatRank(candidates[b].Name)
		if ra != rb {
			return ra < rb
		}
		return len(candidates[a].Data) > len(candidates[b].Data)
	})
	best := candidates[0]
	return &best, nil
}

func listZip(data []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Data: content})
	}
	return entries, nil
}

func listRar(data []byte) ([]Entry, error) {
	r, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}
	var entries []Entry
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rar: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: hdr.Name, Data: content})
	}
	return entries, nil
}

func listSevenZip(data []byte) ([]Entry, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}
	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Data: content})
	}
	return entries, nil
}

func usableSubtitle(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".srt", ".sub", ".txt":
		return true
	}
	return false
}

// formatRank orders subtitle formats by preference, srt first.
func formatRank(name string) int {
	switch strings.ToLower(path.Ext(name)) {
	case ".srt":
		return 0
	case ".sub":
		return 1
	default:
		return 2
	}
}
