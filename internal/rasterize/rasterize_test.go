package rasterize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stylesheet-video/compiler/internal/model"
)

func TestContainerKeyIsDeterministicAndContentAddressed(t *testing.T) {
	c1 := &model.Container{InnerHTML: "<b>hi</b>", CSS: "b{color:red}", Width: 100, Height: 50}
	c2 := &model.Container{InnerHTML: "<b>hi</b>", CSS: "b{color:red}", Width: 100, Height: 50}
	c3 := &model.Container{InnerHTML: "<b>bye</b>", CSS: "b{color:red}", Width: 100, Height: 50}

	assert.Equal(t, ContainerKey(c1), ContainerKey(c2))
	assert.NotEqual(t, ContainerKey(c1), ContainerKey(c3))
	assert.Len(t, ContainerKey(c1), 16)
}

func TestAppKeyVariesWithOutputName(t *testing.T) {
	a := &model.App{Dir: "/apps/lowerthird", Params: map[string]string{"name": "Alice"}, Width: 400, Height: 100}
	k1 := AppKey(a, "main")
	k2 := AppKey(a, "alt")
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, 16)
}

func TestAppKeyIsOrderIndependentOverParams(t *testing.T) {
	a1 := &model.App{Dir: "/apps/x", Params: map[string]string{"a": "1", "b": "2"}}
	a2 := &model.App{Dir: "/apps/x", Params: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, AppKey(a1, "o"), AppKey(a2, "o"))
}

func TestEncodeQueryIsSortedAndStable(t *testing.T) {
	q := encodeQuery(map[string]string{"z": "9", "a": "1"})
	assert.Equal(t, "a=1&z=9", q)
}
