package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/docsage-ai/docsage/engine/domain"
)

// Docx extracts paragraph text from a DOCX archive's word/document.xml.
type Docx struct{}

// NewDocx creates the DOCX loader.
func NewDocx() *Docx { return &Docx{} }

func (l *Docx) Load(_ context.Context, path string) ([]domain.Segment, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
	}
	defer reader.Close()

	var docXML io.ReadCloser
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("loader %s: %w: no word/document.xml", path, domain.ErrLoad)
	}
	defer docXML.Close()

	text, err := extractDocumentText(docXML)
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("loader %s: %w: no extractable text", path, domain.ErrLoad)
	}

	return []domain.Segment{{
		Text:     text,
		Metadata: map[string]any{"filename": filepath.Base(path)},
	}}, nil
}

// extractDocumentText walks document.xml, collecting <w:t> runs and
// inserting newlines at paragraph ends.
func extractDocumentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
