package timeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylesheet-video/compiler/internal/expr"
	"github.com/stylesheet-video/compiler/internal/model"
)

func twoAssetProject() *model.Project {
	p := model.NewProject("/project")
	p.Assets["a"] = &model.Asset{Name: "a", Path: "/a.mp4", Kind: model.KindVideo, DurationMS: 4000, HasVideo: true, HasAudio: true}
	p.Assets["b"] = &model.Asset{Name: "b", Path: "/b.mp4", Kind: model.KindVideo, DurationMS: 4000, HasVideo: true, HasAudio: true}
	p.AssetInputIndex["a"] = 0
	p.AssetInputIndex["b"] = 1
	return p
}

func fragment(id, asset string, durationMS int64, overlapLeftMS int64) model.FragmentSpec {
	return model.FragmentSpec{
		ID:            id,
		Target:        model.TargetAsset,
		AssetName:     asset,
		Enabled:       true,
		Start:         model.AbsentTiming(),
		Duration:      model.LiteralTiming(durationMS),
		Fit:           model.FitSpec{Fit: model.FitCover},
		OverlapLeftMS: overlapLeftMS,
	}
}

func TestCompileJoinsZeroOverlapFragmentsWithSingleConcat(t *testing.T) {
	p := twoAssetProject()
	p.Sequences = []model.Sequence{{
		ID: "main",
		Fragments: []model.FragmentSpec{
			fragment("f1", "a", 2000, 0),
			fragment("f2", "b", 2000, 0),
		},
	}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	result, err := NewCompiler(p, out, nil).Compile()
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(result.Graph, "concat="))
	assert.Equal(t, 0, strings.Count(result.Graph, "xfade="))
	assert.Contains(t, result.Graph, "[outv]")
	assert.Contains(t, result.Graph, "[outa]")
	require.Len(t, result.Inputs, 2)
	assert.Equal(t, "/a.mp4", result.Inputs[0].Path)
	assert.Equal(t, "/b.mp4", result.Inputs[1].Path)
}

func TestCompileBridgesNegativeOverlapWithCrossfade(t *testing.T) {
	p := twoAssetProject()
	p.Sequences = []model.Sequence{{
		ID: "main",
		Fragments: []model.FragmentSpec{
			fragment("f1", "a", 2000, 0),
			fragment("f2", "b", 2000, -500),
		},
	}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	result, err := NewCompiler(p, out, nil).Compile()
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(result.Graph, "xfade="))
	assert.Equal(t, 1, strings.Count(result.Graph, "acrossfade="))
}

func TestCompileResolvesForwardExpressionReferenceAcrossFragments(t *testing.T) {
	p := twoAssetProject()
	durExpr, err := expr.Parse("calc(500ms)")
	require.NoError(t, err)

	f2 := fragment("f2", "b", 0, 0)
	f2.Start = model.LiteralTiming(0)
	f2.Duration = model.ExprTiming(durExpr)
	startExpr, err := expr.Parse("calc(url(#f2.time.end) + 100ms)")
	require.NoError(t, err)

	f1 := fragment("f1", "a", 0, 0)
	f1.Start = model.LiteralTiming(0)
	f1.Duration = model.ExprTiming(startExpr)

	p.Sequences = []model.Sequence{{ID: "main", Fragments: []model.FragmentSpec{f1, f2}}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	result, err := NewCompiler(p, out, nil).Compile()
	require.NoError(t, err)
	assert.NotEmpty(t, result.Graph)
}

func TestCompilePercentDurationUsesAssetDurationMinusTrim(t *testing.T) {
	p := twoAssetProject()
	f := fragment("f1", "a", 0, 0)
	f.Duration = model.PercentTiming()
	f.TrimStartMS = 1000
	p.Sequences = []model.Sequence{{ID: "main", Fragments: []model.FragmentSpec{f}}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	result, err := NewCompiler(p, out, nil).Compile()
	require.NoError(t, err)
	require.Len(t, result.Inputs, 1)
	assert.Equal(t, int64(3000), result.Inputs[0].StillDurationMS)
}

func TestCompileUnresolvableExpressionReportsStuckFragments(t *testing.T) {
	p := twoAssetProject()
	badExpr, err := expr.Parse("calc(url(#nonexistent.time.end) + 1s)")
	require.NoError(t, err)

	f := fragment("f1", "a", 0, 0)
	f.Start = model.LiteralTiming(0)
	f.Duration = model.ExprTiming(badExpr)
	p.Sequences = []model.Sequence{{ID: "main", Fragments: []model.FragmentSpec{f}}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	_, err = NewCompiler(p, out, nil).Compile()
	require.Error(t, err)
}

func TestCompileAppliesOverlayBetweenExpressionForContainerFragment(t *testing.T) {
	p := twoAssetProject()
	p.Containers["c1"] = &model.Container{ID: "c1", InnerHTML: "<b>hi</b>", Width: 400, Height: 100}
	p.OverlayInputIndex["container:c1"] = 2

	base := fragment("f1", "a", 4000, 0)
	overlay := model.FragmentSpec{
		ID:            "f2",
		Target:        model.TargetContainer,
		ContainerID:   "c1",
		Enabled:       true,
		Start:         model.LiteralTiming(500),
		Duration:      model.LiteralTiming(1000),
		ZIndexStart:   1,
	}
	p.Sequences = []model.Sequence{{ID: "main", Fragments: []model.FragmentSpec{base, overlay}}}
	out := &model.Output{Name: "main", Width: 1280, Height: 720, FPS: 30}

	result, err := NewCompiler(p, out, OverlayPaths{"container:c1": "/cache/c1.png"}).Compile()
	require.NoError(t, err)
	assert.Contains(t, result.Graph, "overlay=")
	assert.Contains(t, result.Graph, "between(t,0.500,1.500)")

	var overlayIdx2Found bool
	for _, in := range result.Inputs {
		if in.Index == 2 {
			overlayIdx2Found = true
			assert.True(t, in.IsStill)
			assert.Equal(t, "/cache/c1.png", in.Path)
		}
	}
	assert.True(t, overlayIdx2Found)
}
