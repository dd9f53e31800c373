package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelFreshness(t *testing.T) {
	dag := New()
	v := Wrap(dag, InputLabel(0, false))
	seen := map[string]bool{}
	cur := v
	for i := 0; i < 20; i++ {
		cur = cur.Scale(100, 100)
		assert.False(t, seen[cur.Label.Tag], "label %q reused", cur.Label.Tag)
		assert.NotEqual(t, ReservedVideoOut, cur.Label.Tag)
		assert.NotEqual(t, ReservedAudioOut, cur.Label.Tag)
		seen[cur.Label.Tag] = true
	}
}

func TestDeterministicRender(t *testing.T) {
	build := func() string {
		dag := New()
		v := Wrap(dag, InputLabel(0, false))
		v = v.Fps(30).ScaleCover(1920, 1080).Crop(1920, 1080)
		v.EndTo(VideoOut())
		a := Wrap(dag, InputLabel(0, true))
		a.EndTo(AudioOut())
		return dag.Render()
	}
	assert.Equal(t, build(), build())
}

func TestSingleClipGraph(t *testing.T) {
	dag := New()
	v := Wrap(dag, InputLabel(0, false)).Fps(30)
	v = v.ScaleCover(1920, 1080).Crop(1920, 1080)
	v.EndTo(VideoOut())
	a := Wrap(dag, InputLabel(0, true))
	a.EndTo(AudioOut())

	rendered := dag.Render()
	assert.Contains(t, rendered, "[0:v]fps=30[L0]")
	assert.Contains(t, rendered, "scale=1920:1080:force_original_aspect_ratio=increase")
	assert.Contains(t, rendered, "crop=1920:1080")
	assert.Contains(t, rendered, "[outv]")
	assert.Contains(t, rendered, "[0:a]anull[outa]")
}

func TestFactorConcatSimple(t *testing.T) {
	labels := []Label{
		{Tag: "v0"}, {Tag: "a0", IsAudio: true},
		{Tag: "v1"}, {Tag: "a1", IsAudio: true},
	}
	n, v, a, err := FactorConcat(labels)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, a)
}

func TestFactorConcatMultiStream(t *testing.T) {
	// 3 segments, each with 2 video + 1 audio label.
	var labels []Label
	for i := 0; i < 3; i++ {
		labels = append(labels,
			Label{Tag: "v"}, Label{Tag: "v"}, Label{Tag: "a", IsAudio: true})
	}
	n, v, a, err := FactorConcat(labels)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, a)
}

func TestFactorConcatEmptyIsError(t *testing.T) {
	_, _, _, err := FactorConcat(nil)
	require.Error(t, err)
}

func TestXFadeRejectsAudio(t *testing.T) {
	dag := New()
	v := Wrap(dag, InputLabel(0, false))
	a := Wrap(dag, InputLabel(0, true))
	_, err := XFade(dag, v, a, 1000, 2000, "fade")
	require.Error(t, err)
}

func TestXFadeDefaultTransition(t *testing.T) {
	dag := New()
	v1 := Wrap(dag, InputLabel(0, false))
	v2 := Wrap(dag, InputLabel(1, false))
	out, err := XFade(dag, v1, v2, 1000, 2000, "")
	require.NoError(t, err)
	rendered := dag.Render()
	assert.Contains(t, rendered, "xfade=transition=fade:duration=1.000:offset=2.000")
	assert.False(t, out.Label.IsAudio)
}

func TestConcatPairsTwoSegments(t *testing.T) {
	dag := New()
	v1 := Wrap(dag, InputLabel(0, false))
	a1 := Wrap(dag, InputLabel(0, true))
	v2 := Wrap(dag, InputLabel(1, false))
	a2 := Wrap(dag, InputLabel(1, true))

	video, audio, err := ConcatPairs(dag, [][2]Stream{{v1, a1}, {v2, a2}})
	require.NoError(t, err)
	assert.False(t, video.Label.IsAudio)
	assert.True(t, audio.Label.IsAudio)

	rendered := dag.Render()
	assert.Contains(t, rendered, "concat=n=2:v=1:a=1")
}
