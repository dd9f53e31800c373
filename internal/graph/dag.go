package graph

import (
	"fmt"
	"strings"
)

// DAG owns every Filter produced during the compile of one output. It
// is append-only: nothing removes or reorders a Filter once appended.
// Rendering concatenates filters with ";" in insertion order, so
// filter-graph insertion order equals the left-to-right, sequence-first
// traversal order the Timeline Compiler performs (spec §5).
type DAG struct {
	filters []Filter
	counter int
}

func New() *DAG {
	return &DAG{}
}

// Mint returns a fresh, DAG-unique label. Labels are never reused and
// never collide with the reserved terminals (spec §8 property 2).
func (d *DAG) Mint(isAudio bool) Label {
	tag := fmt.Sprintf("L%d", d.counter)
	d.counter++
	return Label{Tag: tag, IsAudio: isAudio}
}

// Append records a Filter in the DAG.
func (d *DAG) Append(f Filter) {
	d.filters = append(d.filters, f)
}

// Render produces the final filter-graph string.
func (d *DAG) Render() string {
	parts := make([]string, len(d.filters))
	for i, f := range d.filters {
		parts[i] = f.render()
	}
	return strings.Join(parts, ";")
}

// FilterCount exposes how many filters have been appended, for tests
// asserting label freshness and ordering.
func (d *DAG) FilterCount() int { return len(d.filters) }
