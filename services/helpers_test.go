package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Fix the login page ", "Fix the login page"},
		{"keeps ampersands and quotes", `Tom & Jerry's "draft"`, `Tom & Jerry's "draft"`},
		{"keeps a bare less-than", "a < b", "a < b"},
		{"strips tags", "<b>bold</b> move", "bold move"},
		{"strips encoded tags", "&lt;b&gt;bold&lt;/b&gt; move", "bold move"},
		{"strips double encoded tags", "&amp;lt;i&amp;gt;x&amp;lt;/i&amp;gt;", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestCleanTextNeverReturnsMarkup(t *testing.T) {
	for _, in := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"<img src=x onerror=alert(1)>",
		"&lt;img src=x onerror=alert(1)&gt;",
		"&amp;amp;lt;script&amp;amp;gt;alert(1)",
	} {
		out := cleanText(in)
		assert.NotContains(t, out, "<script", in)
		assert.NotContains(t, out, "<img", in)
	}
}
