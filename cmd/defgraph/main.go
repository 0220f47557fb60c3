package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/defview/defgraph"
	"github.com/defview/defgraph/errors"
)

var (
	dataPath       string
	outPath        string
	level          int
	plainJSON      bool
	workers        int
	allowOverrides bool
	verbose        bool
)

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&dataPath, "path", "p", "", "path to the definition data directory")
	buildCmd.Flags().StringVarP(&outPath, "out", "o", "dataset.json.zst", "output dataset file")
	buildCmd.Flags().IntVar(&level, "level", 0, "zstd compression level (0 uses the default)")
	buildCmd.Flags().BoolVar(&plainJSON, "json", false, "write uncompressed JSON")
	buildCmd.Flags().IntVar(&workers, "workers", 0, "parse/scan parallelism (0 uses GOMAXPROCS)")
	buildCmd.Flags().BoolVar(&allowOverrides, "allow-abstract-override", false, "let later abstract definitions replace earlier ones")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	if err := buildCmd.MarkFlagRequired("path"); err != nil {
		panic(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "defgraph",
	Short: "defgraph resolves XML definition trees into a viewer dataset",
	Run: func(cmd *cobra.Command, args []string) {
		// nolint:errcheck
		cmd.Usage()
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "build resolves a definition tree and writes the packaged dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return runBuild()
	},
}

func runBuild() error {
	log := logrus.WithField("path", dataPath)
	log.Info("resolving definitions")

	opts := defgraph.NewOptions().
		WithWorkers(workers).
		WithAllowAbstractOverride(allowOverrides)

	set := defgraph.NewDefSet(opts)
	if err := set.AddFS(os.DirFS(dataPath), "."); err != nil {
		return err
	}
	log.WithField("files", set.Len()).Debug("sources collected")

	graph, err := set.Resolve(context.Background())
	if err != nil {
		reportDiagnostics(err)
		return fmt.Errorf("resolution failed: %w", err)
	}
	reportDiagnostics(graph.Diagnostics())
	log.WithField("definitions", graph.Len()).Info("graph resolved")

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	exportOpts := defgraph.ExportOptions{
		Level:       level,
		Plain:       plainJSON,
		GameVersion: gameVersion(dataPath),
	}
	if err := graph.Export(out, exportOpts); err != nil {
		return err
	}
	log.WithField("out", outPath).Info("dataset written")
	return nil
}

// gameVersion reads the Version.txt the game ships next to its Data
// directory; absence is not an error.
func gameVersion(dataPath string) string {
	data, err := os.ReadFile(filepath.Join(dataPath, "Version.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func reportDiagnostics(err error) {
	diags, ok := errors.AsDiagnostics(err)
	if !ok {
		return
	}
	for i := range diags {
		d := &diags[i]
		entry := logrus.WithFields(logrus.Fields{
			"code":   d.Code,
			"source": d.Source,
		})
		switch d.Severity {
		case errors.SeverityError:
			entry.Error(d.Message)
		case errors.SeverityWarning:
			entry.Warn(d.Message)
		default:
			entry.Info(d.Message)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
