package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
<project>
  <style>
    fragment { object-fit: cover; }
    .hero { overlap-left: -500ms; }
    #f2 { object-fit: contain; }
  </style>
  <sequence id="s0">
    <fragment id="f1" class="hero" asset="intro"></fragment>
    <fragment id="f2" asset="outro" style="blur: 4;"></fragment>
  </sequence>
</project>
`

func TestParsePreservesSourceOrder(t *testing.T) {
	doc, err := Parse(sampleDoc)
	require.NoError(t, err)

	seq := doc.Root.Find("sequence")
	require.Len(t, seq, 1)
	frags := seq[0].Find("fragment")
	require.Len(t, frags, 2)

	id1, _ := frags[0].Attr("id")
	id2, _ := frags[1].Attr("id")
	assert.Equal(t, "f1", id1)
	assert.Equal(t, "f2", id2)
}

func TestCascadeTagThenClassThenIDThenInline(t *testing.T) {
	doc, err := Parse(sampleDoc)
	require.NoError(t, err)

	frags := doc.Root.Find("fragment")
	require.Len(t, frags, 2)

	f1Style := doc.Styles[frags[0]]
	assert.Equal(t, "cover", f1Style["object-fit"])
	assert.Equal(t, "-500ms", f1Style["overlap-left"])

	f2Style := doc.Styles[frags[1]]
	assert.Equal(t, "contain", f2Style["object-fit"], "id selector must win over tag selector")
	assert.Equal(t, "4", f2Style["blur"], "inline style must win over every stylesheet rule")
}

func TestParseEmptyInputDoesNotPanic(t *testing.T) {
	_, err := Parse("")
	_ = err // empty input still parses to an empty goquery document; assert no panic only
}

func TestClassSelectorMatchesAnyOfMultipleClasses(t *testing.T) {
	doc, err := Parse(`<project><style>.a{x:1;}.b{y:2;}</style><fragment class="a b"></fragment></project>`)
	require.NoError(t, err)
	frag := doc.Root.Find("fragment")
	require.Len(t, frag, 1)
	style := doc.Styles[frag[0]]
	assert.Equal(t, "1", style["x"])
	assert.Equal(t, "2", style["y"])
}
