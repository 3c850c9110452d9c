package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Native is the fast, local, no-network strategy. It sniffs the document
// format and parses the text layer directly: PDF, DOCX, or HTML.
type Native struct{}

func (Native) Name() string { return MethodNative }

func (Native) Attempt(_ context.Context, data []byte, name string) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return pdfText(data)
	case bytes.HasPrefix(data, []byte("PK")):
		return docxText(data)
	default:
		return htmlText(data, name)
	}
}

// pdfText walks the PDF page by page and concatenates the text layer.
// Scanned PDFs typically yield nothing here and escalate to OCR.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// docxText extracts paragraph text from the DOCX document XML.
func docxText(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	// Split on paragraph open tags, then strip the remaining XML.
	var lines []string
	for _, part := range strings.Split(content, "<w:p") {
		cleaned := strings.TrimSpace(stripTags(part))
		if cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func stripTags(xmlStr string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range xmlStr {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// htmlText extracts block-level text from an HTML document, one line per
// block so the segmenter sees question boundaries. Page-like documents that
// yield too little this way get a readability pass.
func htmlText(data []byte, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, footer").Remove()

	var lines []string
	doc.Find("p, li, h1, h2, h3, h4, h5, h6, td").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	joined := strings.Join(lines, "\n")
	if len(lines) == 0 {
		joined = strings.TrimSpace(doc.Text())
	}

	if Adequate(joined) {
		return joined, nil
	}

	// Sparse block structure: let readability pull the article body instead.
	pageURL, err := url.Parse(name)
	if err != nil || pageURL.Host == "" {
		pageURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return joined, nil
	}
	if len(article.TextContent) > len(joined) {
		return article.TextContent, nil
	}
	return joined, nil
}
