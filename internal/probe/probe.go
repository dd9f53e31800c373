// Package probe wraps the external media probe (ffprobe) to resolve an
// Asset's duration, dimensions, rotation and stream presence (spec
// §4.3). It generalizes the teacher's single-purpose GetVideoMetadata
// (internal/ffmpeg) to assets of any kind, including images (duration
// 0, no probe needed for duration) and audio-only files (no video
// stream at all). Probe runs ffprobe directly via exec.CommandContext,
// rather than u2takey/ffmpeg-go's convenience Probe() wrapper, so the
// configured ffprobe binary (internal/renderconfig) and the caller's
// cancellation context both reach the subprocess (spec §5).
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/model"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// InferKind guesses an Asset's Kind from its file extension. Callers
// may override this when the project document declares an explicit
// kind.
func InferKind(path string) model.Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if imageExtensions[ext] {
		return model.KindImage
	}
	return model.KindVideo
}

// Probe resolves name/path into a fully-populated Asset (spec §4.3).
// ffprobeBin is the resolved binary path/name (renderconfig.Config.
// FFprobeBin); ctx aborts the subprocess on external cancellation.
func Probe(ctx context.Context, ffprobeBin, name, path string, kind model.Kind) (*model.Asset, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, compileerr.AssetMissing(path)
		}
		return nil, compileerr.AssetProbeFailed(path, err)
	}

	cmd := exec.CommandContext(ctx, ffprobeBin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, compileerr.AssetProbeFailed(path, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		return nil, compileerr.AssetProbeFailed(path, err)
	}

	asset := &model.Asset{Name: name, Path: path, Kind: kind}

	streams, _ := data["streams"].([]interface{})
	for _, raw := range streams {
		s, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch s["codec_type"] {
		case "video":
			asset.HasVideo = true
			asset.Width = intField(s, "width")
			asset.Height = intField(s, "height")
			asset.RotationDeg = rotationOf(s)
		case "audio":
			asset.HasAudio = true
		}
	}

	if kind == model.KindImage {
		asset.DurationMS = 0
	} else {
		asset.DurationMS = durationMS(data)
	}

	return asset, nil
}

func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// rotationOf reads rotation side-data (modern ffprobe: side_data_list
// entries with a "rotation" field) falling back to the legacy
// tags.rotate string ffprobe emitted before side-data rotation existed.
func rotationOf(stream map[string]interface{}) int {
	if sideData, ok := stream["side_data_list"].([]interface{}); ok {
		for _, raw := range sideData {
			sd, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if rot, ok := sd["rotation"].(float64); ok {
				return int(rot)
			}
		}
	}
	if tags, ok := stream["tags"].(map[string]interface{}); ok {
		if rotateStr, ok := tags["rotate"].(string); ok {
			if n, err := strconv.Atoi(rotateStr); err == nil {
				return n
			}
		}
	}
	return 0
}

func durationMS(data map[string]interface{}) int64 {
	if streams, ok := data["streams"].([]interface{}); ok {
		for _, raw := range streams {
			s, ok := raw.(map[string]interface{})
			if !ok || s["codec_type"] != "video" {
				continue
			}
			if d, ok := s["duration"].(string); ok {
				if f, err := strconv.ParseFloat(strings.TrimSpace(d), 64); err == nil && f > 0 {
					return int64(f * 1000)
				}
			}
		}
	}
	if format, ok := data["format"].(map[string]interface{}); ok {
		if d, ok := format["duration"].(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(d), 64); err == nil && f > 0 {
				return int64(f * 1000)
			}
		}
	}
	return 0
}
