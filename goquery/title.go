package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Title returns the document title, falling back to the og:title meta tag.
// It returns an empty string when neither is present.
func Title(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	if t := strings.Join(strings.Fields(doc.Find("title").First().Text()), " "); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}
