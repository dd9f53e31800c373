package model

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/expr"
	"github.com/stylesheet-video/compiler/internal/markup"
)

// ProbeFunc resolves an asset name/path/kind-hint to a fully probed
// Asset (internal/probe.Probe, injected so model stays independent of
// the external probe tool binary). ctx carries the render run's
// cancellation signal down to the probe subprocess (spec §5).
type ProbeFunc func(ctx context.Context, name, path string, kind Kind) (*Asset, error)

// BuildFromDocument walks a parsed project document (spec §4.4), the
// whole of the Project Model Builder's "walk the tree" half, and hands
// the result to Builder for validation and input-index assignment.
// dir is the project root, used to resolve relative asset paths.
func BuildFromDocument(ctx context.Context, doc *markup.Document, dir string, probeFn ProbeFunc) (*Project, error) {
	b := NewBuilder(dir)

	for _, css := range doc.Root.Find("style") {
		b.SetCSS(b.project.CSS + css.Text + "\n")
	}

	if err := addAssets(ctx, b, doc, dir, probeFn); err != nil {
		return nil, err
	}
	addOutputs(b, doc)
	addContainers(b, doc)
	addApps(b, doc)
	addFFmpegPresets(b, doc)

	for _, seqNode := range doc.Root.Find("sequence") {
		seq := Sequence{Mode: "overlay"}
		if id, ok := seqNode.Attr("id"); ok {
			seq.ID = id
		}
		if mode, ok := seqNode.Attr("data-mode"); ok && mode != "" {
			seq.Mode = mode
		}
		for _, fragNode := range seqNode.Find("fragment") {
			frag, err := buildFragment(fragNode, doc)
			if err != nil {
				return nil, err
			}
			seq.Fragments = append(seq.Fragments, frag)
		}
		b.AddSequence(seq)
	}

	return b.Build()
}

func addAssets(ctx context.Context, b *Builder, doc *markup.Document, dir string, probeFn ProbeFunc) error {
	for _, assetsBlock := range doc.Root.Find("assets") {
		for _, assetNode := range assetsBlock.Find("asset") {
			name, _ := assetNode.Attr("data-name")
			path, _ := assetNode.Attr("data-path")
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			kind := KindVideo
			if typ, ok := assetNode.Attr("data-type"); ok {
				kind = Kind(typ)
			} else {
				kind = inferKindFromExtension(path)
			}
			asset, err := probeFn(ctx, name, path, kind)
			if err != nil {
				return err
			}
			b.AddAsset(asset)
		}
	}
	return nil
}

func inferKindFromExtension(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return KindImage
	case ".mp3", ".wav", ".m4a", ".aac", ".flac":
		return KindAudio
	default:
		return KindVideo
	}
}

func addOutputs(b *Builder, doc *markup.Document) {
	for _, outputsBlock := range doc.Root.Find("outputs") {
		for _, outNode := range outputsBlock.Find("output") {
			o := &Output{}
			o.Name, _ = outNode.Attr("data-name")
			o.Path, _ = outNode.Attr("data-path")
			if fpsStr, ok := outNode.Attr("data-fps"); ok {
				o.FPS, _ = strconv.Atoi(fpsStr)
			}
			if res, ok := outNode.Attr("data-resolution"); ok {
				w, h, _ := parseResolution(res)
				o.Width, o.Height = w, h
			}
			o.Preset, _ = outNode.Attr("data-ffmpeg")
			b.AddOutput(o)
		}
	}
}

func parseResolution(res string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 {
		return 0, 0, compileerr.ParseError(0, 0, "invalid resolution "+res)
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, compileerr.ParseError(0, 0, "invalid resolution "+res)
	}
	return w, h, nil
}

func addContainers(b *Builder, doc *markup.Document) {
	for _, c := range doc.Root.Find("container") {
		id, _ := c.Attr("id")
		w, h := 0, 0
		if wStr, ok := c.Attr("data-width"); ok {
			w, _ = strconv.Atoi(wStr)
		}
		if hStr, ok := c.Attr("data-height"); ok {
			h, _ = strconv.Atoi(hStr)
		}
		b.AddContainer(&Container{
			ID:        id,
			InnerHTML: c.InnerHTML,
			CSS:       b.project.CSS,
			Width:     w,
			Height:    h,
		})
	}
}

func addApps(b *Builder, doc *markup.Document) {
	for _, a := range doc.Root.Find("app") {
		id, _ := a.Attr("id")
		dirAttr, _ := a.Attr("data-dir")
		params := make(map[string]string)
		for _, attr := range a.Attrs {
			if strings.HasPrefix(attr.Key, "data-param-") {
				params[strings.TrimPrefix(attr.Key, "data-param-")] = attr.Val
			}
		}
		title, _ := a.Attr("data-title")
		date, _ := a.Attr("data-date")
		var tags []string
		if tagStr, ok := a.Attr("data-tags"); ok && tagStr != "" {
			tags = strings.Split(tagStr, ",")
		}
		w, h := 0, 0
		if wStr, ok := a.Attr("data-width"); ok {
			w, _ = strconv.Atoi(wStr)
		}
		if hStr, ok := a.Attr("data-height"); ok {
			h, _ = strconv.Atoi(hStr)
		}
		b.AddApp(&App{
			ID: id, Dir: dirAttr, Params: params,
			Title: title, Date: date, Tags: tags,
			Width: w, Height: h,
		})
	}
}

func addFFmpegPresets(b *Builder, doc *markup.Document) {
	for _, block := range doc.Root.Find("ffmpeg") {
		for _, preset := range block.Children {
			params := make(map[string]string)
			for _, attr := range preset.Attrs {
				params[attr.Key] = attr.Val
			}
			b.SetFFmpegPreset(preset.Tag, params)
		}
	}
}

func buildFragment(n *markup.Node, doc *markup.Document) (FragmentSpec, error) {
	f := FragmentSpec{Enabled: true}
	if id, ok := n.Attr("id"); ok && id != "" {
		f.ID = id
	} else {
		f.ID = uuid.NewString()
	}

	switch {
	case hasAttr(n, "data-asset"):
		f.Target = TargetAsset
		f.AssetName, _ = n.Attr("data-asset")
	case hasAttr(n, "data-container"):
		f.Target = TargetContainer
		f.ContainerID, _ = n.Attr("data-container")
	case hasAttr(n, "data-app"):
		f.Target = TargetApp
		f.AppID, _ = n.Attr("data-app")
	}

	if disabled, ok := n.Attr("data-disabled"); ok && disabled == "true" {
		f.Enabled = false
	}

	style := doc.Styles[n]

	if v, ok := style["-trim-start"]; ok {
		if ms, err := expr.ParseLiteralMS(v); err == nil {
			f.TrimStartMS = ms
		}
	}

	if v, ok := style["-duration"]; ok {
		t, err := parseTiming(v)
		if err != nil {
			return f, err
		}
		f.Duration = t
	}

	if v, ok := style["-offset-start"]; ok {
		t, err := parseTiming(v)
		if err != nil {
			return f, err
		}
		f.Start = t
	} else {
		f.Start = AbsentTiming()
	}

	if v, ok := style["-overlay-left"]; ok {
		if ms, err := expr.ParseLiteralMS(v); err == nil {
			f.OverlapLeftMS = ms
		}
	}

	if v, ok := style["-overlay-start-z-index"]; ok {
		f.ZIndexStart, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	if v, ok := style["-overlay-end-z-index"]; ok {
		f.ZIndexEnd, _ = strconv.Atoi(strings.TrimSpace(v))
		f.HasZIndexEnd = true
	}

	if v, ok := style["-transition-start"]; ok {
		f.TransitionInName, f.TransitionInMS = parseTransition(v)
	}
	if v, ok := style["-transition-end"]; ok {
		f.TransitionOutName, f.TransitionOutMS = parseTransition(v)
	}

	if v, ok := style["-object-fit"]; ok {
		f.Fit = parseObjectFit(v)
	} else {
		f.Fit = FitSpec{Fit: FitCover}
	}

	if v, ok := style["-chromakey"]; ok {
		f.Chromakey = parseChromakey(v)
	}

	if v, ok := style["filter"]; ok {
		f.BlurSigma = parseBlurFilter(v)
	}

	return f, nil
}

func hasAttr(n *markup.Node, key string) bool {
	_, ok := n.Attr(key)
	return ok
}

func parseTiming(v string) (Timing, error) {
	v = strings.TrimSpace(v)
	switch {
	case expr.IsCalc(v):
		c, err := expr.Parse(v)
		if err != nil {
			return Timing{}, err
		}
		return ExprTiming(c), nil
	case expr.IsPercent(v):
		return PercentTiming(), nil
	default:
		ms, err := expr.ParseLiteralMS(v)
		if err != nil {
			return Timing{}, err
		}
		return LiteralTiming(ms), nil
	}
}

// parseTransition reads "<name> <duration>" (e.g. "fade 500ms"),
// defaulting to transition name "fade" when only a duration is given.
func parseTransition(v string) (name string, durationMS int64) {
	fields := strings.Fields(v)
	switch len(fields) {
	case 0:
		return "fade", 500
	case 1:
		if ms, err := expr.ParseLiteralMS(fields[0]); err == nil {
			return "fade", ms
		}
		return fields[0], 500
	default:
		ms, err := expr.ParseLiteralMS(fields[1])
		if err != nil {
			ms = 500
		}
		return fields[0], ms
	}
}

func parseObjectFit(v string) FitSpec {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return FitSpec{Fit: FitCover}
	}
	spec := FitSpec{}
	switch fields[0] {
	case "contain":
		spec.Fit = FitContain
		if len(fields) > 1 {
			switch fields[1] {
			case "ambient":
				spec.ContainMode = ContainAmbient
				if len(fields) > 2 {
					spec.AmbientBlur, _ = strconv.ParseFloat(fields[2], 64)
				}
				if len(fields) > 3 {
					spec.AmbientBrightness, _ = strconv.ParseFloat(fields[3], 64)
				}
				if len(fields) > 4 {
					spec.AmbientSaturation, _ = strconv.ParseFloat(fields[4], 64)
				}
			case "pillarbox":
				spec.ContainMode = ContainPillarbox
				if len(fields) > 2 {
					spec.PillarboxColor = fields[2]
				} else {
					spec.PillarboxColor = "black"
				}
			default:
				spec.ContainMode = ContainLetterbox
			}
		} else {
			spec.ContainMode = ContainLetterbox
		}
	default:
		spec.Fit = FitCover
	}
	return spec
}

func parseChromakey(v string) *Chromakey {
	fields := strings.Fields(v)
	ck := &Chromakey{Color: "green", Similarity: 0.3, Blend: 0.1}
	if len(fields) > 0 {
		ck.Color = fields[0]
	}
	if len(fields) > 1 {
		ck.Similarity, _ = strconv.ParseFloat(fields[1], 64)
	}
	if len(fields) > 2 {
		ck.Blend, _ = strconv.ParseFloat(fields[2], 64)
	}
	return ck
}

// parseBlurFilter extracts the pixel radius from CSS "blur(<px>)".
func parseBlurFilter(v string) float64 {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "blur(") || !strings.HasSuffix(v, ")") {
		return 0
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(v, "blur("), ")")
	inner = strings.TrimSuffix(inner, "px")
	f, _ := strconv.ParseFloat(strings.TrimSpace(inner), 64)
	return f
}
