package sanitizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Sanitize(t *testing.T) {
	p := New()

	tests := []struct {
		name    string
		in      string
		keep    []string
		removed []string
	}{
		{
			name:    "script removed",
			in:      `<p>Hello</p><script>alert(1)</script>`,
			keep:    []string{"<p>Hello</p>"},
			removed: []string{"script", "alert"},
		},
		{
			name:    "event handler removed",
			in:      `<img src="https://cdn.example.test/a.png" onerror="steal()" alt="a">`,
			keep:    []string{`src="https://cdn.example.test/a.png"`, `alt="a"`},
			removed: []string{"onerror"},
		},
		{
			name:    "javascript url removed",
			in:      `<a href="javascript:alert(1)">x</a>`,
			removed: []string{"javascript:"},
		},
		{
			name: "editor markup kept",
			in:   `<figure class="wide"><img src="https://cdn.example.test/b.jpg"><figcaption>Caption</figcaption></figure>`,
			keep: []string{`<figure class="wide">`, "<figcaption>Caption</figcaption>"},
		},
		{
			name:    "inline style removed",
			in:      `<p style="position:fixed">Text</p>`,
			keep:    []string{"Text"},
			removed: []string{"style="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.Sanitize(tt.in)
			for _, s := range tt.keep {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.removed {
				assert.False(t, strings.Contains(out, s), "%q still contains %q", out, s)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello big world", PlainText("<h1>Hello</h1>\n<p><b>big</b>   world</p>"))
}
