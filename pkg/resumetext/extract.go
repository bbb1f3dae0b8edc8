package resumetext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
)

// DefaultMaxRunes caps the text attached to enrichment requests.
const DefaultMaxRunes = 20000

// Extractor turns resume bytes into plain text.
type Extractor struct {
	MaxRunes int
}

func NewExtractor() *Extractor {
	return &Extractor{MaxRunes: DefaultMaxRunes}
}

// Extract supports PDF, DOCX and plain text. Legacy DOC is not parseable and
// yields an error so the caller can send the request without text.
func (e *Extractor) Extract(mime string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mime {
	case "text/plain":
		text = string(data)
	case MimePDF:
		text, err = extractPDFText(data)
	case MimeDOCX:
		text, err = extractDocxText(data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", mime)
	}
	if err != nil {
		return "", err
	}
	return truncate(collapseWhitespace(text), e.MaxRunes), nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, _ := page.GetPlainText(nil)
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()
	return stripXMLTags(doc.Editable().GetContent()), nil
}

// stripXMLTags drops WordprocessingML markup and keeps the text runs
func stripXMLTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
