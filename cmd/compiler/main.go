// Command compiler renders stylesheet-video projects: declarative
// markup+CSS documents compiled to a deterministic ffmpeg filter-graph
// and encoded via a single ffmpeg invocation (spec §4.10). Flag and
// subcommand shape follows the teacher's cobra tree (root video-processor
// main.go), generalized from split/apply-template to a single render verb
// operating on a project document instead of raw video files.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stylesheet-video/compiler/internal/orchestrate"
	"github.com/stylesheet-video/compiler/internal/renderconfig"
)

var (
	rootCmd = &cobra.Command{
		Use:   "compiler",
		Short: "Compiles stylesheet-video projects to rendered video outputs",
		Long: `compiler renders a declarative markup+CSS video project into one or
more encoded video outputs.

Example:
  # Render every Output declared in the project
  compiler render project.html

  # Render only the named outputs
  compiler render project.html reel square`,
	}

	renderCmd = &cobra.Command{
		Use:   "render <project.html> [output-name...]",
		Short: "Render a project document's outputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath := args[0]
			outputNames := args[1:]

			devMode, _ := cmd.Flags().GetBool("dev")
			verbose, _ := cmd.Flags().GetBool("verbose")

			cfg, err := renderconfig.Load(filepath.Dir(projectPath))
			if err != nil {
				return err
			}
			if verbose {
				cfg.Verbose = true
			}

			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if cfg.Verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			rc := orchestrate.NewRenderContext(cfg, devMode, log)
			orch := orchestrate.NewOrchestrator(rc, projectPath)

			return orch.RenderAll(context.Background(), outputNames)
		},
	}
)

func init() {
	renderCmd.Flags().Bool("dev", false, "use fast/low-quality encoder presets for iteration")
	renderCmd.Flags().BoolP("verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
