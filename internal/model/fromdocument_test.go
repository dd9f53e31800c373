package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylesheet-video/compiler/internal/markup"
)

const sampleProject = `
<project>
  <outputs>
    <output data-name="main" data-path="output/main.mp4" data-fps="30" data-resolution="1080x1920"></output>
  </outputs>
  <assets>
    <asset data-name="intro" data-path="input/intro.mp4"></asset>
  </assets>
  <sequence id="s0">
    <fragment id="f0" data-asset="intro" style="-duration: 100%; -trim-start: 200ms;"></fragment>
  </sequence>
</project>
`

func stubProbe(_ context.Context, name, path string, kind Kind) (*Asset, error) {
	return &Asset{Name: name, Path: path, Kind: kind, DurationMS: 5000, Width: 1920, Height: 1080, HasVideo: true, HasAudio: true}, nil
}

func TestBuildFromDocumentWiresAssetsOutputsAndFragments(t *testing.T) {
	doc, err := markup.Parse(sampleProject)
	require.NoError(t, err)

	project, err := BuildFromDocument(context.Background(), doc, "/tmp/proj", stubProbe)
	require.NoError(t, err)

	require.Contains(t, project.Assets, "intro")
	require.Contains(t, project.Outputs, "main")
	out := project.Outputs["main"]
	assert.Equal(t, 30, out.FPS)
	assert.Equal(t, 1080, out.Width)
	assert.Equal(t, 1920, out.Height)

	require.Len(t, project.Sequences, 1)
	frag := project.Sequences[0].Fragments[0]
	assert.Equal(t, TargetAsset, frag.Target)
	assert.Equal(t, "intro", frag.AssetName)
	assert.Equal(t, TimingPercent, frag.Duration.Kind)
	assert.Equal(t, int64(200), frag.TrimStartMS)
	assert.Equal(t, 0, project.AssetInputIndex["intro"])
}

func TestBuildFromDocumentRejectsMissingAssetReference(t *testing.T) {
	doc, err := markup.Parse(`
<project>
  <outputs><output data-name="o" data-path="o.mp4" data-fps="30" data-resolution="100x100"></output></outputs>
  <sequence><fragment id="f0" data-asset="ghost"></fragment></sequence>
</project>`)
	require.NoError(t, err)

	_, err = BuildFromDocument(context.Background(), doc, "/tmp/proj", stubProbe)
	require.Error(t, err)
}
