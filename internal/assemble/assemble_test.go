package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stylesheet-video/compiler/internal/model"
)

func TestResolveEncoderArgsDefaults(t *testing.T) {
	project := model.NewProject("/project")
	out := &model.Output{Name: "main", FPS: 30}

	args := ResolveEncoderArgs(project, out, false)

	assert.Equal(t, "yuv420p", args["pix_fmt"])
	assert.Equal(t, "medium", args["preset"])
	assert.Equal(t, "aac", args["c:a"])
	assert.Equal(t, "192k", args["b:a"])
}

func TestResolveEncoderArgsDevModeOverridesPreset(t *testing.T) {
	project := model.NewProject("/project")
	out := &model.Output{Name: "main", FPS: 30}

	args := ResolveEncoderArgs(project, out, true)

	assert.Equal(t, "ultrafast", args["preset"])
}

func TestResolveEncoderArgsNamedPresetOverridesDefaults(t *testing.T) {
	project := model.NewProject("/project")
	project.FFmpegPresets["hq"] = map[string]string{"preset": "slower", "crf": "18"}
	out := &model.Output{Name: "main", FPS: 30, Preset: "hq"}

	args := ResolveEncoderArgs(project, out, false)

	assert.Equal(t, "slower", args["preset"])
	assert.Equal(t, "18", args["crf"])
	assert.Equal(t, "yuv420p", args["pix_fmt"])
}

func TestLastBytesTruncatesFromTheEnd(t *testing.T) {
	assert.Equal(t, "world", lastBytes([]byte("hello world"), 5))
	assert.Equal(t, "hi", lastBytes([]byte("hi"), 5))
}
