package model

import (
	"sort"

	"github.com/stylesheet-video/compiler/internal/compileerr"
)

// Builder accumulates Assets, Outputs, Containers, Apps and Sequences
// parsed out of a project document and produces a validated Project
// (spec §4.4 Project Model Builder).
type Builder struct {
	project *Project
	errs    []error
}

func NewBuilder(dir string) *Builder {
	return &Builder{project: NewProject(dir)}
}

func (b *Builder) AddAsset(a *Asset) {
	if _, dup := b.project.Assets[a.Name]; dup {
		b.errs = append(b.errs, compileerr.DuplicateID("asset", a.Name))
		return
	}
	b.project.Assets[a.Name] = a
}

func (b *Builder) AddOutput(o *Output) {
	if _, dup := b.project.Outputs[o.Name]; dup {
		b.errs = append(b.errs, compileerr.DuplicateID("output", o.Name))
		return
	}
	b.project.Outputs[o.Name] = o
}

func (b *Builder) AddContainer(c *Container) {
	if _, dup := b.project.Containers[c.ID]; dup {
		b.errs = append(b.errs, compileerr.DuplicateID("container", c.ID))
		return
	}
	b.project.Containers[c.ID] = c
}

func (b *Builder) AddApp(a *App) {
	if _, dup := b.project.Apps[a.ID]; dup {
		b.errs = append(b.errs, compileerr.DuplicateID("app", a.ID))
		return
	}
	b.project.Apps[a.ID] = a
}

func (b *Builder) AddSequence(s Sequence) {
	b.project.Sequences = append(b.project.Sequences, s)
}

func (b *Builder) SetCSS(css string) { b.project.CSS = css }

func (b *Builder) SetFFmpegPreset(name string, params map[string]string) {
	b.project.FFmpegPresets[name] = params
}

func (b *Builder) SetUploadConfig(name string, params map[string]string) {
	b.project.UploadConfigs[name] = params
}

// Build validates references, assigns stable input indices in
// first-use sequence order (spec §3 invariant 5), and returns the
// finished Project. All structural errors accumulated during Add* are
// reported together with any found during this pass.
func (b *Builder) Build() (*Project, error) {
	b.assignInputIndices()
	b.validateReferences()
	b.validateOutputs()

	if len(b.errs) > 0 {
		return nil, compileerr.Many(b.errs)
	}
	return b.project, nil
}

// assignInputIndices walks sequences in order, and within each
// sequence walks fragments in order, handing out a dense, shared
// index space the first time each distinct Asset/Container/App target
// is referenced (spec §4.7 step 4, §4.8 step 2).
func (b *Builder) assignInputIndices() {
	next := 0
	for _, seq := range b.project.Sequences {
		for _, f := range seq.Fragments {
			if !f.Enabled {
				continue
			}
			switch f.Target {
			case TargetAsset:
				if _, ok := b.project.AssetInputIndex[f.AssetName]; !ok {
					b.project.AssetInputIndex[f.AssetName] = next
					next++
				}
			case TargetContainer:
				key := "container:" + f.ContainerID
				if _, ok := b.project.OverlayInputIndex[key]; !ok {
					b.project.OverlayInputIndex[key] = next
					next++
				}
			case TargetApp:
				key := "app:" + f.AppID
				if _, ok := b.project.OverlayInputIndex[key]; !ok {
					b.project.OverlayInputIndex[key] = next
					next++
				}
			}
		}
	}
}

// validateReferences checks every Fragment's target resolves to a
// declared entity (spec §3 invariant 1 "UnknownReference").
func (b *Builder) validateReferences() {
	for _, seq := range b.project.Sequences {
		for _, f := range seq.Fragments {
			switch f.Target {
			case TargetAsset:
				if _, ok := b.project.Assets[f.AssetName]; !ok {
					b.errs = append(b.errs, compileerr.UnknownReference(f.ID, f.AssetName))
				}
			case TargetContainer:
				if _, ok := b.project.Containers[f.ContainerID]; !ok {
					b.errs = append(b.errs, compileerr.UnknownReference(f.ID, f.ContainerID))
				}
			case TargetApp:
				if _, ok := b.project.Apps[f.AppID]; !ok {
					b.errs = append(b.errs, compileerr.UnknownReference(f.ID, f.AppID))
				}
			}
		}
	}
}

// validateOutputs enforces invariant 6: every declared Output must
// have a positive width, height and fps.
func (b *Builder) validateOutputs() {
	names := make([]string, 0, len(b.project.Outputs))
	for name := range b.project.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := b.project.Outputs[name]
		if o.Width <= 0 || o.Height <= 0 {
			b.errs = append(b.errs, compileerr.InvalidDimensions(name, o.Width, o.Height))
		}
		if o.FPS <= 0 {
			b.errs = append(b.errs, compileerr.InvalidFPS(name, o.FPS))
		}
	}
}
