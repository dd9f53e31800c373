package orchestrate

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/stylesheet-video/compiler/internal/model"
	"github.com/stylesheet-video/compiler/internal/renderconfig"
)

func TestSplitOverlayKey(t *testing.T) {
	kind, id := splitOverlayKey("container:c1")
	assert.Equal(t, "container", kind)
	assert.Equal(t, "c1", id)

	kind, id = splitOverlayKey("app:my-app")
	assert.Equal(t, "app", kind)
	assert.Equal(t, "my-app", id)

	kind, id = splitOverlayKey("noprefix")
	assert.Equal(t, "", kind)
	assert.Equal(t, "noprefix", id)
}

func newTestRenderContext() *RenderContext {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	return NewRenderContext(renderconfig.Config{}, false, log)
}

func TestProbeFnCachesByPath(t *testing.T) {
	rc := newTestRenderContext()
	calls := 0
	rc.probeCache["/assets/a.mp4"] = &model.Asset{Name: "a", Path: "/assets/a.mp4", DurationMS: 5000}

	fn := rc.probeFn()
	asset, err := fn(context.Background(), "a", "/assets/a.mp4", model.KindVideo)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), asset.DurationMS)
	assert.Equal(t, 0, calls)
}

func TestNewRenderContextStampsDistinctRunIDs(t *testing.T) {
	a := newTestRenderContext()
	b := newTestRenderContext()
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}
