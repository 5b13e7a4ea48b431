package goquery_test

import (
	"testing"

	"github.com/fwojciec/stockwatch/goquery"
	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "title element",
			content: "<html><head><title>\n  VPS Plan  Tokyo\n</title></head></html>",
			want:    "VPS Plan Tokyo",
		},
		{
			name:    "og title fallback",
			content: `<html><head><meta property="og:title" content=" Hong Kong Lite "></head></html>`,
			want:    "Hong Kong Lite",
		},
		{
			name:    "no title",
			content: "<html><body>hi</body></html>",
			want:    "",
		},
		{
			name:    "plain text",
			content: "not html at all",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, goquery.Title(tt.content))
		})
	}
}
