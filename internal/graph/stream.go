package graph

import (
	"fmt"

	"github.com/stylesheet-video/compiler/internal/compileerr"
)

// Stream is the loose end of a partial filter graph: a lightweight
// (dag, label) handle passed by value. Every chained operation mints a
// new output label on the shared DAG and returns a new Stream; the
// Stream itself holds no mutable state (spec §9 redesign note).
type Stream struct {
	dag   *DAG
	Label Label
}

// Wrap adapts a raw Label (e.g. a literal input label such as "0:v")
// into a Stream bound to dag.
func Wrap(dag *DAG, label Label) Stream {
	return Stream{dag: dag, Label: label}
}

func (s Stream) unary(name string, params []Param) Stream {
	out := s.dag.Mint(s.Label.IsAudio)
	s.dag.Append(Filter{
		Inputs:  []Label{s.Label},
		Name:    name,
		Params:  params,
		Outputs: []Label{out},
	})
	return Stream{dag: s.dag, Label: out}
}

func p(key, value string) Param { return Param{Key: key, Value: value} }
func bare(value string) Param   { return Param{Value: value} }

func (s Stream) Scale(w, h int) Stream {
	return s.unary("scale", []Param{bare(fmt.Sprintf("%d:%d", w, h))})
}

// ScaleCover scales to fill (w,h), cropping any overflow — the "cover"
// half of object-fit.
func (s Stream) ScaleCover(w, h int) Stream {
	return s.unary("scale", []Param{
		bare(fmt.Sprintf("%d:%d", w, h)),
		p("force_original_aspect_ratio", "increase"),
	})
}

// ScaleContain scales to fit within (w,h) without cropping.
func (s Stream) ScaleContain(w, h int) Stream {
	return s.unary("scale", []Param{
		bare(fmt.Sprintf("%d:%d", w, h)),
		p("force_original_aspect_ratio", "decrease"),
	})
}

func (s Stream) Fps(n int) Stream {
	return s.unary("fps", []Param{bare(fmt.Sprintf("%d", n))})
}

// Transpose applies one of ffmpeg's four transpose directions
// (0=90ccw+vflip, 1=90cw, 2=90ccw, 3=90cw+vflip).
func (s Stream) Transpose(dir int) Stream {
	return s.unary("transpose", []Param{bare(fmt.Sprintf("%d", dir))})
}

// Trim sets an in/out point in milliseconds and resets PTS to zero
// afterwards, mirroring the video/audio pair the spec requires
// (trim+setpts for video, atrim+asetpts for audio).
func (s Stream) Trim(startMS, durationMS int64) Stream {
	trimName, ptsName := "trim", "setpts"
	if s.Label.IsAudio {
		trimName, ptsName = "atrim", "asetpts"
	}
	startS := float64(startMS) / 1000.0
	endS := float64(startMS+durationMS) / 1000.0
	trimmed := s.unary(trimName, []Param{
		p("start", fmt.Sprintf("%.3f", startS)),
		p("end", fmt.Sprintf("%.3f", endS)),
	})
	ptsExpr := "PTS-STARTPTS"
	if s.Label.IsAudio {
		return trimmed.unary(ptsName, []Param{bare(ptsExpr)})
	}
	return trimmed.unary(ptsName, []Param{bare(ptsExpr)})
}

func (s Stream) Crop(w, h int) Stream {
	return s.unary("crop", []Param{bare(fmt.Sprintf("%d:%d", w, h))})
}

// Pad letterboxes/pillarboxes a contain-scaled stream up to (w,h),
// centering the source and filling the margin with color.
func (s Stream) Pad(w, h int, color string) Stream {
	return s.unary("pad", []Param{
		bare(fmt.Sprintf("%d:%d", w, h)),
		bare("(ow-iw)/2"),
		bare("(oh-ih)/2"),
		bare(color),
	})
}

func (s Stream) Format(pixFmt string) Stream {
	return s.unary("format", []Param{bare(pixFmt)})
}

func (s Stream) Gblur(sigma float64) Stream {
	return s.unary("gblur", []Param{p("sigma", fmt.Sprintf("%.3f", sigma))})
}

func (s Stream) Eq(contrast, brightness, saturation float64) Stream {
	return s.unary("eq", []Param{
		p("contrast", fmt.Sprintf("%.3f", contrast)),
		p("brightness", fmt.Sprintf("%.3f", brightness)),
		p("saturation", fmt.Sprintf("%.3f", saturation)),
	})
}

// Fade applies a fade in or fade out starting at startMS for
// durationMS. direction must be "in" or "out".
func (s Stream) Fade(direction string, startMS, durationMS int64) Stream {
	name := "fade"
	startKey := "st"
	if s.Label.IsAudio {
		name = "afade"
	}
	return s.unary(name, []Param{
		p("t", direction),
		p(startKey, fmt.Sprintf("%.3f", float64(startMS)/1000.0)),
		p("d", fmt.Sprintf("%.3f", float64(durationMS)/1000.0)),
	})
}

func (s Stream) Colorkey(color string, similarity, blend float64) Stream {
	return s.unary("colorkey", []Param{
		bare(color),
		bare(fmt.Sprintf("%.3f", similarity)),
		bare(fmt.Sprintf("%.3f", blend)),
	})
}

func (s Stream) Setpts(expr string) Stream {
	name := "setpts"
	if s.Label.IsAudio {
		name = "asetpts"
	}
	return s.unary(name, []Param{bare(expr)})
}

func (s Stream) Drawtext(params []Param) Stream {
	return s.unary("drawtext", params)
}

// Split duplicates a stream into n identical streams.
func (s Stream) Split(n int) []Stream {
	outs := make([]Label, n)
	for i := range outs {
		outs[i] = s.dag.Mint(s.Label.IsAudio)
	}
	name := "split"
	if s.Label.IsAudio {
		name = "asplit"
	}
	s.dag.Append(Filter{
		Inputs:  []Label{s.Label},
		Name:    name,
		Params:  []Param{bare(fmt.Sprintf("%d", n))},
		Outputs: outs,
	})
	result := make([]Stream, n)
	for i, o := range outs {
		result[i] = Stream{dag: s.dag, Label: o}
	}
	return result
}

// Overlay composites other on top of s at (x,y), active only while
// enableExpr evaluates truthy (e.g. "between(t,1,3)"). enableExpr may
// be empty for an always-on overlay.
func (s Stream) Overlay(other Stream, x, y string, enableExpr string) Stream {
	out := s.dag.Mint(false)
	params := []Param{
		p("x", x),
		p("y", y),
	}
	if enableExpr != "" {
		params = append(params, p("enable", fmt.Sprintf("'%s'", enableExpr)))
	}
	s.dag.Append(Filter{
		Inputs:  []Label{s.Label, other.Label},
		Name:    "overlay",
		Params:  params,
		Outputs: []Label{out},
	})
	return Stream{dag: s.dag, Label: out}
}

// EndTo terminates this stream at an explicit reserved output label
// (e.g. outv/outa), via a no-op passthrough filter so the label always
// appears as a genuine filter output rather than a bare alias.
func (s Stream) EndTo(explicit Label) Stream {
	name := "null"
	if s.Label.IsAudio {
		name = "anull"
	}
	s.dag.Append(Filter{
		Inputs:  []Label{s.Label},
		Name:    name,
		Outputs: []Label{explicit},
	})
	return Stream{dag: s.dag, Label: explicit}
}

// ConcatPairs joins segments, each a (video, audio) Stream pair, via a
// single concat filter and returns the concatenated video and audio
// Streams. Every segment must carry the same video/audio layout.
func ConcatPairs(dag *DAG, segments [][2]Stream) (video, audio Stream, err error) {
	if len(segments) == 0 {
		return Stream{}, Stream{}, compileerr.InvalidFilterInputs("concat", "no segments supplied")
	}
	var labels []Label
	for _, seg := range segments {
		labels = append(labels, seg[0].Label, seg[1].Label)
	}
	n, v, a, ferr := FactorConcat(labels)
	if ferr != nil {
		return Stream{}, Stream{}, ferr
	}

	outs := concatOutputs(dag, n, v, a)
	dag.Append(Filter{
		Inputs: labels,
		Name:   "concat",
		Params: []Param{
			p("n", fmt.Sprintf("%d", n)),
			p("v", fmt.Sprintf("%d", v)),
			p("a", fmt.Sprintf("%d", a)),
		},
		Outputs: outs,
	})

	videoOuts, audioOuts := splitOutputsByModality(outs)
	return Stream{dag: dag, Label: videoOuts[0]}, Stream{dag: dag, Label: audioOuts[0]}, nil
}

func concatOutputs(dag *DAG, n, v, a int) []Label {
	var outs []Label
	for i := 0; i < v; i++ {
		outs = append(outs, dag.Mint(false))
	}
	for i := 0; i < a; i++ {
		outs = append(outs, dag.Mint(true))
	}
	return outs
}

func splitOutputsByModality(outs []Label) (video, audio []Label) {
	for _, o := range outs {
		if o.IsAudio {
			audio = append(audio, o)
		} else {
			video = append(video, o)
		}
	}
	return
}

// XFade cross-fades two video streams. Both inputs must be video.
func XFade(dag *DAG, a, b Stream, durationMS int64, offsetMS float64, transition string) (Stream, error) {
	if a.Label.IsAudio || b.Label.IsAudio {
		return Stream{}, compileerr.InvalidFilterInputs("xfade",
			fmt.Sprintf("xfade requires two video inputs, got tags %q and %q", a.Label.Tag, b.Label.Tag))
	}
	if transition == "" {
		transition = "fade"
	}
	out := dag.Mint(false)
	dag.Append(Filter{
		Inputs: []Label{a.Label, b.Label},
		Name:   "xfade",
		Params: []Param{
			p("transition", transition),
			p("duration", fmt.Sprintf("%.3f", float64(durationMS)/1000.0)),
			p("offset", fmt.Sprintf("%.3f", offsetMS/1000.0)),
		},
		Outputs: []Label{out},
	})
	return Stream{dag: dag, Label: out}, nil
}

// ACrossfade cross-fades two audio streams, the audio counterpart the
// Timeline Compiler emits alongside every video XFade (spec §9 open
// question 1).
func ACrossfade(dag *DAG, a, b Stream, durationMS int64) (Stream, error) {
	if !a.Label.IsAudio || !b.Label.IsAudio {
		return Stream{}, compileerr.InvalidFilterInputs("acrossfade",
			fmt.Sprintf("acrossfade requires two audio inputs, got tags %q and %q", a.Label.Tag, b.Label.Tag))
	}
	out := dag.Mint(true)
	dag.Append(Filter{
		Inputs: []Label{a.Label, b.Label},
		Name:   "acrossfade",
		Params: []Param{
			p("d", fmt.Sprintf("%.3f", float64(durationMS)/1000.0)),
		},
		Outputs: []Label{out},
	})
	return Stream{dag: dag, Label: out}, nil
}

// SilentAudio synthesizes durationMS of silence via anullsrc, for
// video-only assets (and overlay fragments) that need an audio branch
// to participate in concat/mix alongside fragments that have one.
func SilentAudio(dag *DAG, durationMS int64) Stream {
	out := dag.Mint(true)
	dag.Append(Filter{
		Name: "anullsrc",
		Params: []Param{
			p("channel_layout", "stereo"),
			p("sample_rate", "48000"),
		},
		Outputs: []Label{out},
	})
	s := Stream{dag: dag, Label: out}
	return s.Trim(0, durationMS)
}

// Amix mixes n audio streams down to one, used for cross-sequence
// audio composition (spec §4.7 step 5).
func Amix(dag *DAG, streams []Stream) (Stream, error) {
	if len(streams) == 0 {
		return Stream{}, compileerr.InvalidFilterInputs("amix", "no streams supplied")
	}
	if len(streams) == 1 {
		return streams[0], nil
	}
	labels := make([]Label, len(streams))
	for i, s := range streams {
		if !s.Label.IsAudio {
			return Stream{}, compileerr.InvalidFilterInputs("amix", "amix requires audio inputs")
		}
		labels[i] = s.Label
	}
	out := dag.Mint(true)
	dag.Append(Filter{
		Inputs:  labels,
		Name:    "amix",
		Params:  []Param{p("inputs", fmt.Sprintf("%d", len(labels))), p("dropout_transition", "0")},
		Outputs: []Label{out},
	})
	return Stream{dag: dag, Label: out}, nil
}
