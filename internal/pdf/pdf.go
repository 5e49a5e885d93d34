package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"rsc.io/pdf"
)

// ExtractText returns the plain text of an uploaded document. Files
// named *.pdf are parsed; anything else is taken as UTF-8 text.
func ExtractText(data []byte, filename string) (string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return extractPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %q is not a PDF or UTF-8 text", filename)
	}
	return string(data), nil
}

func extractPDF(data []byte) (text string, err error) {
	// rsc.io/pdf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse failed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, t := range p.Content().Text {
			sb.WriteString(strings.ReplaceAll(t.S, "\x00", ""))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Sanitize collapses whitespace into single spaces.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ChunkByWords splits text into word windows of the given size with the
// given overlap between consecutive windows.
func ChunkByWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if size <= 0 {
		size = 200
	}
	if overlap < 0 {
		overlap = 0
	}
	var out []string
	for i := 0; i < len(words); i += max(1, size-overlap) {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
