// Command pathexport computes densities, drift fields and trajectories
// headlessly and writes them as CSV alongside the effective configuration.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/pathviz/config"
)

// --- Global flags ---
var (
	configPath  string
	outputDir   string
	weightsPath string
	logLevel    string
	frames      int
	workers     int

	rootCmd = &cobra.Command{
		Use:   "pathexport",
		Short: "Export probability-path densities, fields and trajectories as CSV",
		Long: `pathexport evaluates the configured noise schedule and data
distribution without a window and writes one CSV file per output kind
into a fresh run directory under --output-dir.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configPath); err != nil {
				return err
			}
			level := logLevel
			if level == "" {
				level = config.Cfg().Telemetry.LogLevel
			}
			setupLogger(level)
			return nil
		},
	}

	densityCmd = &cobra.Command{
		Use:   "density",
		Short: "Export density grids and contour lines for every frame",
		RunE:  func(cmd *cobra.Command, args []string) error { return runExport(cmd, kindDensity) },
	}
	fieldCmd = &cobra.Command{
		Use:   "field",
		Short: "Export the normalized drift arrows for every frame",
		RunE:  func(cmd *cobra.Command, args []string) error { return runExport(cmd, kindField) },
	}
	trajectoriesCmd = &cobra.Command{
		Use:     "trajectories",
		Aliases: []string{"traj"},
		Short:   "Integrate and export particle trajectories",
		RunE:    func(cmd *cobra.Command, args []string) error { return runExport(cmd, kindTrajectories) },
	}
	allCmd = &cobra.Command{
		Use:   "all",
		Short: "Export densities, fields and trajectories in one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, kindDensity|kindField|kindTrajectories)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	pf.StringVar(&outputDir, "output-dir", "out", "Parent directory for run output")
	pf.StringVar(&weightsPath, "weights", "", "JSON weights of a learned drift (empty = closed form)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (empty = use config)")
	pf.IntVar(&frames, "frames", 0, "Frames over t in [0, 1] (0 = use config)")
	pf.IntVar(&workers, "workers", 0, "Parallel frame workers (0 = GOMAXPROCS)")

	rootCmd.AddCommand(densityCmd, fieldCmd, trajectoriesCmd, allCmd)
}

// setupLogger installs a JSON slog handler at the given level, falling back to
// info for unknown names.
func setupLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
