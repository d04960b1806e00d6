package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text page by page. Pages that fail extraction
// are skipped; an entirely unextractable document is an error.
func loadPDF(path string) (Chapter, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Chapter{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return Chapter{}, fmt.Errorf("pdf %s: no extractable text", path)
	}
	return Chapter{Text: normalizeExtracted(b.String())}, nil
}

// loadDOCX pulls the text runs out of word/document.xml, one line per
// paragraph.
func loadDOCX(path string) (Chapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Chapter{}, fmt.Errorf("read chapter %s: %w", path, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Chapter{}, fmt.Errorf("open docx %s: %w", path, err)
	}

	var xmlData []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Chapter{}, fmt.Errorf("docx %s: open document.xml: %w", path, err)
		}
		xmlData, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Chapter{}, fmt.Errorf("docx %s: read document.xml: %w", path, err)
		}
		break
	}
	if len(xmlData) == 0 {
		return Chapter{}, fmt.Errorf("docx %s: word/document.xml not found", path)
	}

	dec := xml.NewDecoder(bytes.NewReader(xmlData))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Chapter{}, fmt.Errorf("docx %s: decode document.xml: %w", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.WriteString(string(t))
			}
		}
	}
	return Chapter{Text: normalizeExtracted(b.String())}, nil
}

// normalizeExtracted cleans extracted text: trimmed lines, collapsed
// runs of spaces, blank lines dropped. Extracted chapters are never
// written back, so reshaping the text is safe here.
func normalizeExtracted(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
