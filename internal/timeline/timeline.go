// Package timeline implements the Timeline Compiler (C7): for one
// Output it resolves every Fragment's timing, builds each fragment's
// filter chain, joins fragments within a sequence (concat runs and
// cross-fades), layers overlays, and composes sequences together into
// the final [outv]/[outa] pair (spec §4.7). It generalizes the
// teacher's fixed-grid `processor.Process`/`createComposition`
// sequencing logic (internal/processor, internal/ffmpeg) to arbitrary
// sequences of fragments driven entirely by the resolved Project model.
package timeline

import (
	"fmt"
	"sort"

	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/expr"
	"github.com/stylesheet-video/compiler/internal/graph"
	"github.com/stylesheet-video/compiler/internal/model"
)

// InputSpec describes one entry of the encoder's ascending-index input
// argument vector (spec §4.8 step 2). Stills (images, and rasterized
// Container/App PNGs) need `-loop 1 -t <duration>`; everything else is
// a plain `-i <path>`.
type InputSpec struct {
	Index           int
	Path            string
	IsStill         bool
	StillDurationMS int64
}

// Result is everything the Command Assembler (C8) needs: the rendered
// filter-graph text and the ordered input vector.
type Result struct {
	Graph  string
	Inputs []InputSpec
}

// OverlayPaths maps "container:<id>" / "app:<id>" to its rasterized
// PNG path (spec §4.7 step 4), populated by the orchestrator after
// running the Overlay Rasterizer (C5) for the fragments this output
// actually uses.
type OverlayPaths map[string]string

// Compiler compiles one Output.
type Compiler struct {
	project      *model.Project
	output       *model.Output
	overlayPaths OverlayPaths
}

func NewCompiler(project *model.Project, output *model.Output, overlayPaths OverlayPaths) *Compiler {
	return &Compiler{project: project, output: output, overlayPaths: overlayPaths}
}

// seqStream is the (video, audio) pair produced by compiling one
// Sequence, paired with whether it actually produced any fragments.
type seqStream struct {
	video, audio graph.Stream
	nonEmpty     bool
	mode         string
}

// builtFragment is a FragmentResolved plus the Stream(s) its own
// per-fragment filter chain produced.
type builtFragment struct {
	model.FragmentResolved
	video, audio graph.Stream
}

func (c *Compiler) Compile() (*Result, error) {
	c.project.ExpressionContext = expr.NewContext()

	allIDs := make(map[string]bool)
	for _, seq := range c.project.Sequences {
		for _, f := range seq.Fragments {
			allIDs[f.ID] = true
		}
	}

	dag := graph.New()

	var seqResults []seqStream
	var resolvedSeqs [][]model.FragmentResolved

	for _, seq := range c.project.Sequences {
		resolved, err := c.resolveSequence(seq.Fragments, allIDs)
		if err != nil {
			return nil, err
		}
		resolvedSeqs = append(resolvedSeqs, resolved)

		built, err := c.buildFragments(dag, seq.Fragments, resolved)
		if err != nil {
			return nil, err
		}

		result, err := c.joinSequence(dag, built)
		if err != nil {
			return nil, err
		}
		result.mode = seq.Mode
		seqResults = append(seqResults, result)
	}

	finalVideo, finalAudio, err := composeSequences(dag, seqResults)
	if err != nil {
		return nil, err
	}
	finalVideo.EndTo(graph.VideoOut())
	finalAudio.EndTo(graph.AudioOut())

	inputs := c.collectInputs(resolvedSeqs)

	return &Result{Graph: dag.Render(), Inputs: inputs}, nil
}

// ---- pass 1: fragment timing resolution (spec §4.2, §4.7 step 1) ----

func (c *Compiler) resolveSequence(fragments []model.FragmentSpec, allIDs map[string]bool) ([]model.FragmentResolved, error) {
	ctx := c.project.ExpressionContext
	resolved := make([]model.FragmentResolved, len(fragments))
	done := make([]bool, len(fragments))

	remaining := len(fragments)
	for remaining > 0 {
		progressed := false
		for i, f := range fragments {
			if done[i] || !f.Enabled {
				if !f.Enabled {
					done[i] = true
					remaining--
				}
				continue
			}

			needsPrevEnd := i > 0 && (f.Start.Kind == model.TimingAbsent || f.Start.Kind == model.TimingPercent)
			var prevEnd int64
			if needsPrevEnd {
				if !done[i-1] {
					continue // previous fragment not resolved yet; try again next pass
				}
				prevEnd = resolved[i-1].EndMS
			}

			startMS, startOK, err := resolveStart(f, i, prevEnd, allIDs, ctx)
			if err != nil {
				return nil, err
			}
			if !startOK {
				continue
			}

			durationMS, durOK, err := c.resolveDuration(f, allIDs, ctx)
			if err != nil {
				return nil, err
			}
			if !durOK {
				continue
			}

			if err := c.checkDurationBounds(f, startMS, durationMS); err != nil {
				return nil, err
			}

			resolved[i] = model.FragmentResolved{
				FragmentSpec: f,
				StartMS:      startMS,
				DurationMS:   durationMS,
				EndMS:        startMS + durationMS,
			}
			ctx.Set(f.ID, expr.TimeData{
				StartMS:    float64(startMS),
				EndMS:      float64(startMS + durationMS),
				DurationMS: float64(durationMS),
			})
			done[i] = true
			remaining--
			progressed = true
		}
		if remaining > 0 && !progressed {
			var stuck []string
			for i, f := range fragments {
				if !done[i] {
					stuck = append(stuck, f.ID)
				}
			}
			return nil, compileerr.UnresolvableExpression(stuck)
		}
	}
	return resolved, nil
}

func resolveStart(f model.FragmentSpec, index int, prevEnd int64, allIDs map[string]bool, ctx *expr.Context) (int64, bool, error) {
	switch f.Start.Kind {
	case model.TimingLiteralMS:
		return f.Start.LiteralMS, true, nil
	case model.TimingExpr:
		return evalExprTiming(f.Start.Expr, allIDs, ctx)
	default:
		// TimingAbsent, and TimingPercent (which has no defined meaning
		// for start — percent only applies to duration, spec §4.7 step 1):
		// both derive start from the previous fragment's end.
		if index == 0 {
			return 0, true, nil
		}
		return prevEnd + f.OverlapLeftMS, true, nil
	}
}

// resolveDuration resolves everything except percent durations in the
// iterative fixed-point loop; percent durations need no fixed point at
// all since they depend only on the fragment's own asset (spec §4.7
// step 1: "100% meaning the source asset's duration minus trim-start"),
// so they resolve unconditionally on first visit.
func (c *Compiler) resolveDuration(f model.FragmentSpec, allIDs map[string]bool, ctx *expr.Context) (int64, bool, error) {
	switch f.Duration.Kind {
	case model.TimingLiteralMS:
		return f.Duration.LiteralMS, true, nil
	case model.TimingExpr:
		return evalExprTiming(f.Duration.Expr, allIDs, ctx)
	case model.TimingPercent:
		if f.Target != model.TargetAsset {
			return 0, false, compileerr.ExpressionEvalError("100%", fmt.Errorf("fragment %q: percent duration requires an asset target", f.ID))
		}
		asset, ok := c.project.Assets[f.AssetName]
		if !ok {
			return 0, false, compileerr.UnknownReference(f.ID, f.AssetName)
		}
		return asset.DurationMS - f.TrimStartMS, true, nil
	}
	return 0, false, nil
}

// checkDurationBounds enforces spec invariants 3 ("resolved start >= 0
// and duration > 0") and 4 ("duration <= source asset duration minus
// trim-start") once a fragment's start/duration are both resolved.
func (c *Compiler) checkDurationBounds(f model.FragmentSpec, startMS, durationMS int64) error {
	if startMS < 0 || durationMS <= 0 {
		return compileerr.DurationOverflow(f.ID, durationMS, 0)
	}
	if f.Target == model.TargetAsset {
		if asset, ok := c.project.Assets[f.AssetName]; ok {
			available := asset.DurationMS - f.TrimStartMS
			if durationMS > available {
				return compileerr.DurationOverflow(f.ID, durationMS, available)
			}
		}
	}
	return nil
}

func evalExprTiming(c *expr.CompiledExpression, allIDs map[string]bool, ctx *expr.Context) (int64, bool, error) {
	for _, ref := range c.Refs {
		if !allIDs[ref.FragmentID] {
			return 0, false, compileerr.UnresolvableExpression([]string{ref.FragmentID})
		}
		if _, ok := ctx.Fragments[ref.FragmentID]; !ok {
			return 0, false, nil
		}
	}
	v, err := c.Evaluate(ctx)
	if err != nil {
		return 0, false, err
	}
	return int64(v), true, nil
}

// ---- per-fragment stream build (spec §4.7 step 2) ----

func (c *Compiler) buildFragments(dag *graph.DAG, specs []model.FragmentSpec, resolved []model.FragmentResolved) ([]builtFragment, error) {
	var built []builtFragment
	for i, f := range specs {
		if !f.Enabled {
			continue
		}
		r := resolved[i]
		bf := builtFragment{FragmentResolved: r}

		switch f.Target {
		case model.TargetAsset:
			asset, ok := c.project.Assets[f.AssetName]
			if !ok {
				return nil, compileerr.UnknownReference(f.ID, f.AssetName)
			}
			idx := c.project.AssetInputIndex[f.AssetName]
			bf.video = c.buildVideoChain(dag, f, r, asset, idx)
			if asset.HasAudio {
				bf.audio = c.buildAudioChain(dag, f, r, idx)
			} else {
				bf.audio = graph.SilentAudio(dag, r.DurationMS)
			}
		case model.TargetContainer:
			idx := c.project.OverlayInputIndex["container:"+f.ContainerID]
			bf.video = graph.Wrap(dag, graph.InputLabel(idx, false))
		case model.TargetApp:
			idx := c.project.OverlayInputIndex["app:"+f.AppID]
			bf.video = graph.Wrap(dag, graph.InputLabel(idx, false))
		}

		built = append(built, bf)
	}
	return built, nil
}

func (c *Compiler) buildVideoChain(dag *graph.DAG, f model.FragmentSpec, r model.FragmentResolved, asset *model.Asset, idx int) graph.Stream {
	v := graph.Wrap(dag, graph.InputLabel(idx, false))

	if f.TrimStartMS != 0 || r.DurationMS < asset.DurationMS {
		v = v.Trim(f.TrimStartMS, r.DurationMS)
	}
	v = applyRotation(v, asset.RotationDeg)
	v = v.Fps(c.output.FPS)
	v = applyFit(v, f.Fit, c.output.Width, c.output.Height)

	if f.Chromakey != nil {
		v = v.Colorkey(f.Chromakey.Color, f.Chromakey.Similarity, f.Chromakey.Blend)
	}
	if f.BlurSigma > 0 {
		v = v.Gblur(f.BlurSigma)
	}
	if f.TransitionInName != "" && f.TransitionInMS > 0 {
		v = v.Fade("in", 0, f.TransitionInMS)
	}
	if f.TransitionOutName != "" && f.TransitionOutMS > 0 {
		v = v.Fade("out", r.DurationMS-f.TransitionOutMS, f.TransitionOutMS)
	}
	return v
}

func (c *Compiler) buildAudioChain(dag *graph.DAG, f model.FragmentSpec, r model.FragmentResolved, idx int) graph.Stream {
	a := graph.Wrap(dag, graph.InputLabel(idx, true))
	if f.TrimStartMS != 0 {
		a = a.Trim(f.TrimStartMS, r.DurationMS)
	}
	return a
}

func applyRotation(v graph.Stream, deg int) graph.Stream {
	norm := ((deg % 360) + 360) % 360
	switch norm {
	case 90:
		return v.Transpose(1)
	case 180:
		return v.Transpose(1).Transpose(1)
	case 270:
		return v.Transpose(2)
	default:
		return v
	}
}

func applyFit(v graph.Stream, fit model.FitSpec, w, h int) graph.Stream {
	switch fit.Fit {
	case model.FitContain:
		switch fit.ContainMode {
		case model.ContainAmbient:
			branches := v.Split(2)
			background := branches[0].ScaleCover(w, h).Crop(w, h).
				Gblur(orDefault(fit.AmbientBlur, 20)).
				Eq(1, fit.AmbientBrightness, 1+fit.AmbientSaturation)
			foreground := branches[1].ScaleContain(w, h)
			return background.Overlay(foreground, "(W-w)/2", "(H-h)/2", "")
		case model.ContainPillarbox:
			color := fit.PillarboxColor
			if color == "" {
				color = "black"
			}
			return v.ScaleContain(w, h).Pad(w, h, color)
		default:
			return v.ScaleContain(w, h).Pad(w, h, "black")
		}
	default:
		return v.ScaleCover(w, h).Crop(w, h)
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// ---- joining within a sequence (spec §4.7 step 3) and overlay layering (step 4) ----

func (c *Compiler) joinSequence(dag *graph.DAG, built []builtFragment) (seqStream, error) {
	var base, overlays []builtFragment
	for _, bf := range built {
		if bf.Target == model.TargetContainer || bf.Target == model.TargetApp || bf.ZIndexStart > 0 {
			overlays = append(overlays, bf)
		} else {
			base = append(base, bf)
		}
	}

	if len(base) == 0 && len(overlays) == 0 {
		return seqStream{}, nil
	}

	var video, audio graph.Stream
	haveBase := false

	if len(base) > 0 {
		v, a, err := joinRuns(dag, base)
		if err != nil {
			return seqStream{}, err
		}
		video, audio = v, a
		haveBase = true
	}

	sort.SliceStable(overlays, func(i, j int) bool { return overlays[i].ZIndexStart < overlays[j].ZIndexStart })

	var overlayOnlyDurationMS int64
	for _, ov := range overlays {
		if ov.EndMS > overlayOnlyDurationMS {
			overlayOnlyDurationMS = ov.EndMS
		}
		enable := fmt.Sprintf("between(t,%.3f,%.3f)", float64(ov.StartMS)/1000.0, float64(ov.EndMS)/1000.0)
		if !haveBase {
			video = ov.video
			haveBase = true
			continue
		}
		video = video.Overlay(ov.video, "0", "0", enable)
	}

	if !haveBase {
		return seqStream{}, nil
	}
	if (audio == graph.Stream{}) {
		audio = graph.SilentAudio(dag, overlayOnlyDurationMS)
	}
	return seqStream{video: video, audio: audio, nonEmpty: true}, nil
}

// joinRuns groups consecutive zero-overlap base fragments into single
// multi-segment concat filters, bridging runs with xfade/acrossfade
// wherever a fragment's overlap-left is negative (spec §4.7 step 3).
func joinRuns(dag *graph.DAG, base []builtFragment) (graph.Stream, graph.Stream, error) {
	var currentVideo, currentAudio graph.Stream
	first := true

	i := 0
	for i < len(base) {
		j := i
		for j+1 < len(base) && base[j+1].OverlapLeftMS == 0 {
			j++
		}
		run := base[i : j+1]

		var runVideo, runAudio graph.Stream
		if len(run) == 1 {
			runVideo, runAudio = run[0].video, run[0].audio
		} else {
			pairs := make([][2]graph.Stream, len(run))
			for k, seg := range run {
				pairs[k] = [2]graph.Stream{seg.video, seg.audio}
			}
			v, a, err := graph.ConcatPairs(dag, pairs)
			if err != nil {
				return graph.Stream{}, graph.Stream{}, err
			}
			runVideo, runAudio = v, a
		}

		if first {
			currentVideo, currentAudio = runVideo, runAudio
			first = false
		} else {
			bridge := run[0]
			durationMS := -bridge.OverlapLeftMS
			offsetMS := float64(bridge.StartMS)
			transition := bridge.TransitionInName

			v, err := graph.XFade(dag, currentVideo, runVideo, durationMS, offsetMS, transition)
			if err != nil {
				return graph.Stream{}, graph.Stream{}, err
			}
			a, err := graph.ACrossfade(dag, currentAudio, runAudio, durationMS)
			if err != nil {
				return graph.Stream{}, graph.Stream{}, err
			}
			currentVideo, currentAudio = v, a
		}
		i = j + 1
	}
	return currentVideo, currentAudio, nil
}

// ---- cross-sequence composition (spec §4.7 step 5) ----

func composeSequences(dag *graph.DAG, results []seqStream) (graph.Stream, graph.Stream, error) {
	var video, audio graph.Stream
	haveBase := false
	for _, r := range results {
		if !r.nonEmpty {
			continue
		}
		if !haveBase {
			video, audio = r.video, r.audio
			haveBase = true
			continue
		}
		if r.mode == "concat" {
			v, a, err := graph.ConcatPairs(dag, [][2]graph.Stream{{video, audio}, {r.video, r.audio}})
			if err != nil {
				return graph.Stream{}, graph.Stream{}, err
			}
			video, audio = v, a
			continue
		}
		video = video.Overlay(r.video, "0", "0", "")
		mixed, err := graph.Amix(dag, []graph.Stream{audio, r.audio})
		if err != nil {
			return graph.Stream{}, graph.Stream{}, err
		}
		audio = mixed
	}
	if !haveBase {
		return graph.Stream{}, graph.Stream{}, compileerr.InvalidFilterInputs("compose", "no sequence produced any output")
	}
	return video, audio, nil
}

// ---- input vector (spec §4.8 step 2) ----

func (c *Compiler) collectInputs(resolvedSeqs [][]model.FragmentResolved) []InputSpec {
	type usage struct {
		path        string
		isStill     bool
		maxDuration int64
	}
	byIndex := make(map[int]*usage)

	for si, seq := range c.project.Sequences {
		for fi, f := range seq.Fragments {
			if !f.Enabled {
				continue
			}
			r := resolvedSeqs[si][fi]
			switch f.Target {
			case model.TargetAsset:
				asset := c.project.Assets[f.AssetName]
				idx := c.project.AssetInputIndex[f.AssetName]
				u := byIndex[idx]
				if u == nil {
					u = &usage{path: asset.Path, isStill: asset.Kind == model.KindImage}
					byIndex[idx] = u
				}
				if r.DurationMS > u.maxDuration {
					u.maxDuration = r.DurationMS
				}
			case model.TargetContainer:
				key := "container:" + f.ContainerID
				idx := c.project.OverlayInputIndex[key]
				u := byIndex[idx]
				if u == nil {
					u = &usage{path: c.overlayPaths[key], isStill: true}
					byIndex[idx] = u
				}
				if r.DurationMS > u.maxDuration {
					u.maxDuration = r.DurationMS
				}
			case model.TargetApp:
				key := "app:" + f.AppID
				idx := c.project.OverlayInputIndex[key]
				u := byIndex[idx]
				if u == nil {
					u = &usage{path: c.overlayPaths[key], isStill: true}
					byIndex[idx] = u
				}
				if r.DurationMS > u.maxDuration {
					u.maxDuration = r.DurationMS
				}
			}
		}
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	inputs := make([]InputSpec, 0, len(indices))
	for _, idx := range indices {
		u := byIndex[idx]
		inputs = append(inputs, InputSpec{
			Index:           idx,
			Path:            u.path,
			IsStill:         u.isStill,
			StillDurationMS: u.maxDuration,
		})
	}
	return inputs
}
