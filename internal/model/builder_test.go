package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylesheet-video/compiler/internal/compileerr"
)

func TestBuilderAssignsStableInputIndicesInFirstUseOrder(t *testing.T) {
	b := NewBuilder("/tmp/proj")
	b.AddAsset(&Asset{Name: "intro", Kind: KindVideo})
	b.AddAsset(&Asset{Name: "outro", Kind: KindVideo})
	b.AddOutput(&Output{Name: "main", Width: 1080, Height: 1920, FPS: 30})
	b.AddSequence(Sequence{
		ID: "s0",
		Fragments: []FragmentSpec{
			{ID: "f0", Target: TargetAsset, AssetName: "outro", Enabled: true},
			{ID: "f1", Target: TargetAsset, AssetName: "intro", Enabled: true},
			{ID: "f2", Target: TargetAsset, AssetName: "outro", Enabled: true},
		},
	})

	project, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 0, project.AssetInputIndex["outro"])
	assert.Equal(t, 1, project.AssetInputIndex["intro"])
}

func TestBuilderSkipsDisabledFragmentsForInputIndexing(t *testing.T) {
	b := NewBuilder("/tmp/proj")
	b.AddAsset(&Asset{Name: "a", Kind: KindVideo})
	b.AddAsset(&Asset{Name: "b", Kind: KindVideo})
	b.AddOutput(&Output{Name: "main", Width: 100, Height: 100, FPS: 30})
	b.AddSequence(Sequence{Fragments: []FragmentSpec{
		{ID: "f0", Target: TargetAsset, AssetName: "a", Enabled: false},
		{ID: "f1", Target: TargetAsset, AssetName: "b", Enabled: true},
	}})

	project, err := b.Build()
	require.NoError(t, err)
	_, seen := project.AssetInputIndex["a"]
	assert.False(t, seen)
	assert.Equal(t, 0, project.AssetInputIndex["b"])
}

func TestBuilderRejectsUnknownReference(t *testing.T) {
	b := NewBuilder("/tmp/proj")
	b.AddOutput(&Output{Name: "main", Width: 100, Height: 100, FPS: 30})
	b.AddSequence(Sequence{Fragments: []FragmentSpec{
		{ID: "f0", Target: TargetAsset, AssetName: "ghost", Enabled: true},
	}})

	_, err := b.Build()
	require.Error(t, err)
	cerr, ok := compileerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "multiple_errors", string(cerr.Kind))
}

func TestBuilderRejectsInvalidOutputDimensions(t *testing.T) {
	b := NewBuilder("/tmp/proj")
	b.AddOutput(&Output{Name: "bad", Width: 0, Height: 100, FPS: 30})

	_, err := b.Build()
	require.Error(t, err)
}

func TestBuilderRejectsDuplicateAsset(t *testing.T) {
	b := NewBuilder("/tmp/proj")
	b.AddAsset(&Asset{Name: "dup", Kind: KindVideo})
	b.AddAsset(&Asset{Name: "dup", Kind: KindVideo})
	b.AddOutput(&Output{Name: "main", Width: 10, Height: 10, FPS: 30})

	_, err := b.Build()
	require.Error(t, err)
}
