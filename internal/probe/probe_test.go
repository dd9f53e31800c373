package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stylesheet-video/compiler/internal/model"
)

func TestInferKindFromExtension(t *testing.T) {
	assert.Equal(t, model.KindImage, InferKind("/tmp/logo.png"))
	assert.Equal(t, model.KindImage, InferKind("/tmp/logo.JPG"))
	assert.Equal(t, model.KindVideo, InferKind("/tmp/clip.mp4"))
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe(context.Background(), "ffprobe", "missing", "/tmp/does-not-exist-stylesheet-video.mp4", model.KindVideo)
	assert := assert.New(t)
	assert.Error(err)
}

func TestRotationOfReadsModernSideData(t *testing.T) {
	stream := map[string]interface{}{
		"side_data_list": []interface{}{
			map[string]interface{}{"rotation": -90.0},
		},
	}
	assert.Equal(t, -90, rotationOf(stream))
}

func TestRotationOfFallsBackToLegacyTag(t *testing.T) {
	stream := map[string]interface{}{
		"tags": map[string]interface{}{"rotate": "180"},
	}
	assert.Equal(t, 180, rotationOf(stream))
}
