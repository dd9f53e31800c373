// Package graph implements the typed stream DAG and filter library of
// spec §4.6: an append-only graph of Filters connecting Labels, with a
// fluent Stream handle for chaining. The DAG is the sole owner of
// filters; Stream values are lightweight (dag, label) handles passed by
// value, matching the "mutable fluent builder" -> "immutable handle
// over a shared owner" redesign called for in spec §9.
package graph

import "fmt"

// Label is one named input/output port of a filter, tagged by whether
// it carries audio or video.
type Label struct {
	Tag     string
	IsAudio bool
}

func (l Label) String() string {
	return fmt.Sprintf("[%s]", l.Tag)
}

// ReservedVideoOut and ReservedAudioOut are the terminal labels every
// compiled output graph must end at (spec §4.7 step 5, §8 property 2).
const (
	ReservedVideoOut = "outv"
	ReservedAudioOut = "outa"
)

func VideoOut() Label { return Label{Tag: ReservedVideoOut, IsAudio: false} }
func AudioOut() Label { return Label{Tag: ReservedAudioOut, IsAudio: true} }

// InputLabel returns the label ffmpeg assigns an input stream's video
// or audio track, e.g. "2:v" for the third input's video track.
func InputLabel(inputIndex int, isAudio bool) Label {
	suffix := "v"
	if isAudio {
		suffix = "a"
	}
	return Label{Tag: fmt.Sprintf("%d:%s", inputIndex, suffix), IsAudio: isAudio}
}
