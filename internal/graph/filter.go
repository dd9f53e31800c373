package graph

import "strings"

// Param is one name=value pair of a filter. Order is preserved because
// the rendered text must be deterministic (spec §8 property 1).
type Param struct {
	Key   string
	Value string
}

// Filter is one node of the graph: an ordered list of input labels, a
// name, ordered named parameters, and an ordered list of output
// labels. It renders to ffmpeg's canonical filter-graph notation.
type Filter struct {
	Inputs  []Label
	Name    string
	Params  []Param
	Outputs []Label
}

func (f Filter) render() string {
	var b strings.Builder
	for _, in := range f.Inputs {
		b.WriteString(in.String())
	}
	b.WriteString(f.Name)
	if len(f.Params) > 0 {
		b.WriteString("=")
		parts := make([]string, len(f.Params))
		for i, p := range f.Params {
			if p.Key == "" {
				parts[i] = p.Value
			} else {
				parts[i] = p.Key + "=" + p.Value
			}
		}
		b.WriteString(strings.Join(parts, ":"))
	}
	for _, out := range f.Outputs {
		b.WriteString(out.String())
	}
	return b.String()
}
