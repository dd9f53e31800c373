// Package orchestrate owns the cross-cutting RenderContext and drives
// the per-output state machine named in spec §4.10: Parse -> Probe ->
// ResolveExpressions -> Rasterize -> BuildGraph -> Encode -> ReapCache.
// It generalizes the teacher's `Splitter`/`Templater` struct-with-opts
// idiom (main.go, internal/processor) to own the render-wide state a
// single video-split invocation never needed: a shared headless
// browser, a probe-result cache, and a per-run correlation id.
package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stylesheet-video/compiler/internal/assemble"
	"github.com/stylesheet-video/compiler/internal/cache"
	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/markup"
	"github.com/stylesheet-video/compiler/internal/model"
	"github.com/stylesheet-video/compiler/internal/probe"
	"github.com/stylesheet-video/compiler/internal/rasterize"
	"github.com/stylesheet-video/compiler/internal/renderconfig"
	"github.com/stylesheet-video/compiler/internal/timeline"
)

// RenderContext is the state shared across every Output rendered in
// one compiler invocation (spec §4.10, §5): the one headless-browser
// instance, the probe-result cache (probing the same Asset path twice
// across outputs would be wasted work), and a correlation id stamped
// onto every log line for the run.
type RenderContext struct {
	RunID   string
	Log     *logrus.Logger
	Config  renderconfig.Config
	DevMode bool

	rasterizer *rasterize.Rasterizer
	probeCache map[string]*model.Asset
}

func NewRenderContext(cfg renderconfig.Config, devMode bool, log *logrus.Logger) *RenderContext {
	return &RenderContext{
		RunID:      uuid.NewString(),
		Log:        log,
		Config:     cfg,
		DevMode:    devMode,
		probeCache: make(map[string]*model.Asset),
	}
}

func (rc *RenderContext) entry() *logrus.Entry {
	return rc.Log.WithField("run_id", rc.RunID)
}

// probeFn wraps probe.Probe with the RenderContext's cache, keyed by
// resolved asset path, so rebuilding the Project per output (spec §5)
// never re-runs ffprobe on an asset it already probed this run.
func (rc *RenderContext) probeFn() model.ProbeFunc {
	return func(ctx context.Context, name, path string, kind model.Kind) (*model.Asset, error) {
		if cached, ok := rc.probeCache[path]; ok {
			return cached, nil
		}
		asset, err := probe.Probe(ctx, rc.Config.FFprobeBin, name, path, kind)
		if err != nil {
			return nil, err
		}
		rc.probeCache[path] = asset
		return asset, nil
	}
}

// Orchestrator renders one project document's outputs.
type Orchestrator struct {
	rc          *RenderContext
	projectDir  string
	projectPath string
}

func NewOrchestrator(rc *RenderContext, projectPath string) *Orchestrator {
	return &Orchestrator{
		rc:          rc,
		projectDir:  filepath.Dir(projectPath),
		projectPath: projectPath,
	}
}

// RenderAll parses the project once and renders each of outputNames in
// sequence, rebuilding the Project model fresh per output to avoid
// cross-output state leakage (spec §5). An empty outputNames renders
// every Output the document declares, in name order.
func (o *Orchestrator) RenderAll(ctx context.Context, outputNames []string) error {
	log := o.rc.entry()
	log.Info("parsing project document")

	src, err := os.ReadFile(o.projectPath)
	if err != nil {
		return errors.Wrapf(err, "reading project file %s", o.projectPath)
	}
	doc, err := markup.Parse(string(src))
	if err != nil {
		return err
	}

	log.Info("launching headless browser")
	cacheDir := o.rc.Config.CacheDir
	if cacheDir == "" {
		cacheDir = o.projectDir
	}
	rasterizer, err := rasterize.New(cacheDir, o.rc.Config.ChromeBin, o.rc.Config.AppRenderTimeout, log)
	if err != nil {
		return err
	}
	o.rc.rasterizer = rasterizer
	defer rasterizer.Close()

	targets := outputNames
	if len(targets) == 0 {
		discovery, err := model.BuildFromDocument(ctx, doc, o.projectDir, o.rc.probeFn())
		if err != nil {
			return err
		}
		for name := range discovery.Outputs {
			targets = append(targets, name)
		}
		sort.Strings(targets)
	}

	for _, name := range targets {
		select {
		case <-ctx.Done():
			return compileerr.Cancelled()
		default:
		}
		if err := o.renderOutput(ctx, doc, name); err != nil {
			return err
		}
	}

	log.Info("reaping stale overlay cache entries")
	cache.NewReaper(log).ReapAll([]string{
		filepath.Join(cacheDir, ".cache", "containers"),
		filepath.Join(cacheDir, "cache", "apps"),
	}, o.rc.rasterizer.Touched)

	return nil
}

func (o *Orchestrator) renderOutput(ctx context.Context, doc *markup.Document, outputName string) error {
	log := o.rc.entry().WithField("output", outputName)

	log.Info("building project model")
	project, err := model.BuildFromDocument(ctx, doc, o.projectDir, o.rc.probeFn())
	if err != nil {
		return err
	}

	out, ok := project.Outputs[outputName]
	if !ok {
		return compileerr.UnknownReference(outputName, outputName)
	}

	log.Info("rasterizing overlays")
	overlayPaths, err := o.rasterizeOverlays(ctx, project, out)
	if err != nil {
		return err
	}

	log.Info("compiling timeline and filter graph")
	result, err := timeline.NewCompiler(project, out, overlayPaths).Compile()
	if err != nil {
		return err
	}

	encoderArgs := assemble.ResolveEncoderArgs(project, out, o.rc.DevMode)
	log.Info("invoking encoder")
	return assemble.NewAssembler(log).Run(ctx, o.rc.Config.FFmpegBin, result, out, encoderArgs)
}

// rasterizeOverlays renders every Container/App referenced by any
// fragment this Project knows about (Project.OverlayInputIndex spans
// the whole document, shared by every Output) and returns their PNG
// paths keyed the same way as OverlayInputIndex (spec §4.7 step 4).
func (o *Orchestrator) rasterizeOverlays(ctx context.Context, project *model.Project, out *model.Output) (timeline.OverlayPaths, error) {
	paths := make(timeline.OverlayPaths, len(project.OverlayInputIndex))
	for key := range project.OverlayInputIndex {
		kind, id := splitOverlayKey(key)
		switch kind {
		case "container":
			c, ok := project.Containers[id]
			if !ok {
				continue
			}
			path, err := o.rc.rasterizer.RasterizeContainer(ctx, c)
			if err != nil {
				return nil, err
			}
			paths[key] = path
		case "app":
			a, ok := project.Apps[id]
			if !ok {
				continue
			}
			path, err := o.rc.rasterizer.RasterizeApp(ctx, a, out.Name)
			if err != nil {
				return nil, err
			}
			paths[key] = path
		}
	}
	return paths, nil
}

func splitOverlayKey(key string) (kind, id string) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}
