package bibimport

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type Format string

const (
	FormatBibTeX Format = "bibtex"
	FormatPDF    Format = "pdf"
	FormatDOCX   Format = "docx"
	FormatText   Format = "txt"
)

// DetectFormat maps a file name to a supported import format.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".bib":
		return FormatBibTeX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (expected .bib, .pdf, .docx or .txt)", filepath.Ext(fileName))
	}
}

var fallbacks = []struct {
	name string
	enc  encoding.Encoding
}{
	{"iso-8859-1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

// Decode returns data as UTF-8 text. Valid UTF-8 is used as is; otherwise the
// first single-byte charset that yields no C1 control characters wins.
func Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	var last string
	for _, fb := range fallbacks {
		out, err := fb.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		last = string(out)
		if !hasC1(last) {
			return last, nil
		}
	}
	if last == "" {
		return "", fmt.Errorf("could not decode file with any supported encoding")
	}
	return last, nil
}

func hasC1(s string) bool {
	for _, r := range s {
		if r >= 0x80 && r <= 0x9f {
			return true
		}
	}
	return false
}
