// Package assemble implements the Command Assembler (C8): given a
// compiled filter-graph Result and the Output it belongs to, it builds
// the ordered `-i` input vector, encoder argument preset, and `-map`
// output selectors into one ffmpeg invocation, then runs it and
// streams its stderr (spec §4.8). It is grounded directly on the
// teacher's `Processor.ProcessForPlatform`/`processNormalVideo`
// invocation idiom: `ffmpeg.Input(...).Output(...).OverWriteOutput().
// ErrorToStdOut().Run()`.
package assemble

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	ffmpeglib "github.com/u2takey/ffmpeg-go"

	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/model"
	"github.com/stylesheet-video/compiler/internal/timeline"
)

// stderrTailLimit bounds how much of the encoder's stderr is retained
// for EncoderFailed's diagnostic tail (spec §4.8 step 6).
const stderrTailLimit = 4096

// EncoderArgs is the resolved encoder argument set for one output:
// default values per spec §4.8 step 5, overridden by dev mode and then
// by the Output's named FFmpeg preset, in that order.
type EncoderArgs map[string]string

func defaultEncoderArgs() EncoderArgs {
	return EncoderArgs{
		"pix_fmt": "yuv420p",
		"preset":  "medium",
		"c:a":     "aac",
		"b:a":     "192k",
	}
}

// ResolveEncoderArgs merges the default preset, the dev-mode override,
// and the Output's named FFmpegPreset (if any) from the Project.
func ResolveEncoderArgs(project *model.Project, out *model.Output, devMode bool) EncoderArgs {
	args := defaultEncoderArgs()
	if devMode {
		args["preset"] = "ultrafast"
	}
	if out.Preset != "" {
		if preset, ok := project.FFmpegPresets[out.Preset]; ok {
			for k, v := range preset {
				args[k] = v
			}
		}
	}
	return args
}

// Assembler runs the final ffmpeg invocation for one compiled output.
type Assembler struct {
	log *logrus.Entry
}

func NewAssembler(log *logrus.Entry) *Assembler {
	return &Assembler{log: log}
}

// Run builds the input vector, filter_complex, map, and encoder args
// into a single ffmpeg command and executes it, returning
// EncoderFailed on non-zero exit (spec §4.8). ffmpegBin
// (renderconfig.Config.FFmpegBin) selects the encoder binary; ctx's
// cancellation sends SIGTERM to the running encoder subprocess (spec
// §5: "external cancellation aborts the current subprocess").
func (a *Assembler) Run(ctx context.Context, ffmpegBin string, result *timeline.Result, out *model.Output, encoderArgs EncoderArgs) error {
	if len(result.Inputs) == 0 {
		return compileerr.InvalidFilterInputs("assemble", "output has no resolved inputs")
	}

	streams := make([]*ffmpeglib.Stream, 0, len(result.Inputs))
	for _, in := range result.Inputs {
		kwargs := ffmpeglib.KwArgs{}
		if in.IsStill {
			kwargs["loop"] = 1
			kwargs["t"] = fmt.Sprintf("%.3f", float64(in.StillDurationMS)/1000.0)
		}
		streams = append(streams, ffmpeglib.Input(in.Path, kwargs))
	}

	outputKwargs := ffmpeglib.KwArgs{
		"filter_complex": result.Graph,
		"map":            []string{"[outv]", "[outa]"},
		"r":              out.FPS,
	}
	for k, v := range encoderArgs {
		outputKwargs[k] = v
	}

	stream := ffmpeglib.Output(streams, out.Path, outputKwargs).OverWriteOutput()

	if ffmpegBin != "" {
		stream = stream.SetFfmpegPath(ffmpegBin)
	}
	cmd := stream.Compile()
	var tail bytes.Buffer
	// stream.Compile() builds a plain *exec.Cmd rather than one rooted
	// in exec.CommandContext, so stderr is streamed live to os.Stderr
	// (spec §4.8: "streaming its stderr to the caller") while still
	// captured for EncoderFailed's diagnostic tail, and ctx cancellation
	// is relayed to the process below via an explicit watcher.
	cmd.Stderr = io.MultiWriter(os.Stderr, &tail)

	a.log.WithFields(logrus.Fields{
		"output": out.Name,
		"path":   out.Path,
		"inputs": len(streams),
	}).Info("starting encoder")

	if err := cmd.Start(); err != nil {
		return compileerr.EncoderFailed(-1, err.Error())
	}

	waitDone := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if cmd.Process != nil {
				cmd.Process.Signal(syscall.SIGTERM)
			}
			close(killed)
		case <-waitDone:
		}
	}()

	err := cmd.Wait()
	close(waitDone)
	if err != nil {
		select {
		case <-killed:
			return compileerr.Cancelled()
		default:
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return compileerr.EncoderFailed(exitCode, lastBytes(tail.Bytes(), stderrTailLimit))
	}

	a.log.WithField("output", out.Name).Info("encoder finished")
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func lastBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
