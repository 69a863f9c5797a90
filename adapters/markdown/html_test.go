package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	md := []byte("# Run summary\n\n| scenario | n |\n|---|---|\n| direct | 200 |\n")

	out := string(NewHTMLRenderer().RenderHTML("impactsim run", md))

	assert.True(t, strings.Contains(out, "<title>impactsim run</title>"))
	assert.Contains(t, out, `id="run-summary"`)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>direct</td>")
}

func TestRenderHTML_Reusable(t *testing.T) {
	r := NewHTMLRenderer()
	first := r.RenderHTML("a", []byte("hello"))
	second := r.RenderHTML("a", []byte("hello"))
	assert.Equal(t, first, second)
}
