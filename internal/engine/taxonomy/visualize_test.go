package taxonomy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tr, err := Parse([]byte(faqJSON), FormatJSON, "faq")
	if err != nil {
		t.Fatal(err)
	}
	out := Render(tr)

	for _, want := range []string{"faq", "Opening Hours", "Holidays", "Location", "[hours, 2 examples]", "[location, 0 examples]"} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, tr.Len())
	assert.Less(t, strings.Index(out, "Opening Hours"), strings.Index(out, "Location"), "declaration order")
}

func TestRenderDefault(t *testing.T) {
	out := Render(Default())
	for _, want := range []string{"Projects", "Skills", "Experience", "Contact", "Log Classifier"} {
		assert.Contains(t, out, want)
	}
}
