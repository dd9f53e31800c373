// Package renderconfig loads the ambient, non-project configuration the
// compiler needs: where the external tools live and a handful of render
// tunables. None of this is part of the project document (spec §6) —
// it is the environment the compiler runs in, loaded the way the
// teacher pack loads ambient settings: a .env file for secrets/paths,
// an optional TOML sidecar for structured tunables.
package renderconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is the resolved ambient configuration for one compiler run.
type Config struct {
	FFmpegBin  string `toml:"ffmpeg_bin"`
	FFprobeBin string `toml:"ffprobe_bin"`
	ChromeBin  string `toml:"chrome_bin"`

	AppRenderTimeout time.Duration `toml:"-"`
	AppRenderTimeoutMS int64       `toml:"app_render_timeout_ms"`

	CacheDir string `toml:"cache_dir"`
	Verbose  bool   `toml:"verbose"`
}

// Default returns the built-in defaults, matching spec §4.5's 5000ms
// app-render timeout and spec §6's cache directory layout.
func Default() Config {
	return Config{
		FFmpegBin:          "ffmpeg",
		FFprobeBin:         "ffprobe",
		ChromeBin:          "",
		AppRenderTimeout:   5000 * time.Millisecond,
		AppRenderTimeoutMS: 5000,
		CacheDir:           "",
		Verbose:            false,
	}
}

// Load resolves configuration for a project rooted at projectDir: it
// starts from Default(), applies a compiler.toml sidecar if present,
// loads a .env file for secrets/paths (if present; silently ignored
// when absent, matching the teacher pack's godotenv.Load() usage),
// then applies process environment overrides, which win.
func Load(projectDir string) (Config, error) {
	cfg := Default()

	tomlPath := filepath.Join(projectDir, "compiler.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", tomlPath)
		}
	}

	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	if v := os.Getenv("FFMPEG_BIN"); v != "" {
		cfg.FFmpegBin = v
	}
	if v := os.Getenv("FFPROBE_BIN"); v != "" {
		cfg.FFprobeBin = v
	}
	if v := os.Getenv("CHROME_BIN"); v != "" {
		cfg.ChromeBin = v
	}
	if v := os.Getenv("COMPILER_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if os.Getenv("COMPILER_VERBOSE") == "1" {
		cfg.Verbose = true
	}

	if cfg.AppRenderTimeoutMS > 0 {
		cfg.AppRenderTimeout = time.Duration(cfg.AppRenderTimeoutMS) * time.Millisecond
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = projectDir
	}

	return cfg, nil
}
