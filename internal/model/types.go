// Package model defines the typed Project aggregate (spec §3) that the
// Project Model Builder (C4) produces and the Timeline Compiler (C7)
// consumes: assets, outputs, sequences of fragments, containers, apps,
// and the invariants that bind them together.
package model

import "github.com/stylesheet-video/compiler/internal/expr"

// Kind is the media kind of an Asset, inferred from tag or extension
// unless overridden (spec §3).
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Asset is a probed, immutable media file referenced by a stable name
// within a Project (spec §3 Asset).
type Asset struct {
	Name        string
	Path        string
	Kind        Kind
	DurationMS  int64
	Width       int
	Height      int
	RotationDeg int
	HasVideo    bool
	HasAudio    bool
}

// Output is a named render target (spec §3 Output).
type Output struct {
	Name    string
	Path    string
	FPS     int
	Width   int
	Height  int
	Preset  string
}

// TimingKind tags how a duration/start value is expressed, replacing
// the mutable "filled in during resolution" field of the source system
// with an explicit variant (spec §9 redesign note).
type TimingKind int

const (
	// TimingAbsent marks a Fragment start that was not specified at
	// all: it is derived from the previous fragment's end plus
	// overlap-left during resolution (spec §4.7 step 1a).
	TimingAbsent TimingKind = iota
	TimingLiteralMS
	TimingPercent
	TimingExpr
)

// Timing is a tagged union over the three ways a start/duration value
// can be written in the project document.
type Timing struct {
	Kind      TimingKind
	LiteralMS int64
	Expr      *expr.CompiledExpression
}

func LiteralTiming(ms int64) Timing        { return Timing{Kind: TimingLiteralMS, LiteralMS: ms} }
func PercentTiming() Timing                { return Timing{Kind: TimingPercent} }
func ExprTiming(c *expr.CompiledExpression) Timing { return Timing{Kind: TimingExpr, Expr: c} }
func AbsentTiming() Timing                 { return Timing{Kind: TimingAbsent} }

// ObjectFit is how a fragment's source is fit into the output frame.
type ObjectFit string

const (
	FitCover   ObjectFit = "cover"
	FitContain ObjectFit = "contain"
)

// ContainMode is the contain sub-mode (spec §3 Fragment, §4.7 step 2).
type ContainMode string

const (
	ContainNone      ContainMode = ""
	ContainLetterbox ContainMode = "letterbox"
	ContainAmbient   ContainMode = "ambient"
	ContainPillarbox ContainMode = "pillarbox"
)

// FitSpec bundles object-fit and its contain sub-mode parameters.
type FitSpec struct {
	Fit ObjectFit

	ContainMode ContainMode
	// ambient mode
	AmbientBlur       float64
	AmbientBrightness float64
	AmbientSaturation float64
	// pillarbox mode
	PillarboxColor string
}

// Chromakey is the optional chromakey filter configuration.
type Chromakey struct {
	Color      string
	Similarity float64
	Blend      float64
}

// TargetKind distinguishes what a Fragment schedules: an Asset or a
// Container/App overlay (spec §3 Fragment: "mutually exclusive").
type TargetKind int

const (
	TargetAsset TargetKind = iota
	TargetContainer
	TargetApp
)

// FragmentSpec is a Fragment as parsed, before timing resolution
// (spec §9 redesign note: FragmentSpec + FragmentResolved split).
type FragmentSpec struct {
	ID      string
	Target  TargetKind
	AssetName string
	ContainerID string
	AppID       string

	Enabled bool

	TrimStartMS int64
	Duration    Timing
	Start       Timing

	Fit FitSpec

	OverlapLeftMS int64

	TransitionInName      string
	TransitionInMS        int64
	TransitionOutName     string
	TransitionOutMS       int64

	ZIndexStart    int
	ZIndexEnd      int
	HasZIndexEnd   bool

	Chromakey *Chromakey
	BlurSigma float64

	SourceLine, SourceCol int
}

// FragmentResolved augments a FragmentSpec with the timing values the
// Timeline Compiler's two-pass resolution (spec §4.2) produces.
type FragmentResolved struct {
	FragmentSpec
	StartMS    int64
	EndMS      int64
	DurationMS int64
}

// Sequence is an ordered list of fragments with an optional id. Mode
// controls cross-sequence composition (spec §9 open question 2);
// "overlay" is the spec-mandated default, "concat" is the
// not-yet-standardized escape hatch spec.md names.
type Sequence struct {
	ID        string
	Mode      string
	Fragments []FragmentSpec
}

// Container is an HTML subtree rasterized to a PNG (spec §3 Container).
type Container struct {
	ID        string
	InnerHTML string
	CSS       string
	Width     int
	Height    int
	PNGPath   string
}

// App points to an external built SPA directory, rasterized the same
// way as a Container (spec §3 App).
type App struct {
	ID       string
	Dir      string
	Params   map[string]string
	Title    string
	Date     string
	Tags     []string
	Width    int
	Height   int
	PNGPath  string
}

// Project is the root aggregate (spec §3 Project).
type Project struct {
	Dir string

	Assets    map[string]*Asset
	Outputs   map[string]*Output
	Sequences []Sequence

	Containers map[string]*Container
	Apps       map[string]*App

	CSS string

	FFmpegPresets map[string]map[string]string
	UploadConfigs map[string]map[string]string

	// AssetInputIndex is the stable per-Project input index assigned to
	// each Asset on first use in sequence order (spec §3 invariant 5).
	AssetInputIndex map[string]int
	// OverlayInputIndex does the same for Container/App PNG inputs,
	// sharing the same dense index space as assets (spec §4.7 step 4,
	// §4.8 step 2): both are "files fed to the encoder as -i inputs".
	OverlayInputIndex map[string]int

	// ExpressionContext is lazily built during a single compile of one
	// Output and must not be reused across outputs (spec §3, §5).
	ExpressionContext *expr.Context
}

func NewProject(dir string) *Project {
	return &Project{
		Dir:               dir,
		Assets:            make(map[string]*Asset),
		Outputs:           make(map[string]*Output),
		Containers:        make(map[string]*Container),
		Apps:              make(map[string]*App),
		FFmpegPresets:     make(map[string]map[string]string),
		UploadConfigs:     make(map[string]map[string]string),
		AssetInputIndex:   make(map[string]int),
		OverlayInputIndex: make(map[string]int),
	}
}
