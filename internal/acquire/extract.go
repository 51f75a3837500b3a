package acquire

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"
)

const blockSelector = "p, div, li, ul, ol, tr, table, section, article, header, footer, " +
	"h1, h2, h3, h4, h5, h6, pre, blockquote, dt, dd"

// htmlText strips markup and returns one line per block of visible text.
func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalizeText(doc.Text()), nil
}

func pdfText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizeText(buf.String()), nil
}

// feedText flattens a feed into its title followed by each item's title and body.
func feedText(parser *gofeed.Parser, data []byte) (string, error) {
	feed, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	if title := strings.TrimSpace(feed.Title); title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		if title := strings.TrimSpace(item.Title); title != "" {
			b.WriteString(title)
			b.WriteString("\n")
		}

		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		if strings.TrimSpace(body) == "" {
			continue
		}

		text, htmlErr := htmlText(strings.NewReader(body))
		if htmlErr != nil {
			return "", fmt.Errorf("extract item text (link = %s): %w", item.Link, htmlErr)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return normalizeText(b.String()), nil
}

// normalizeText collapses runs of whitespace inside lines and drops blank lines.
func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}

	return strings.Join(out, "\n")
}
