// Command parcelbrief runs the parcel analysis pipeline from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/parcelbrief/internal/app"
	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/services"
)

// pipelineFactory builds the analysis service and returns a cleanup func.
type pipelineFactory func(ctx context.Context) (services.AnalysisService, func(), error)

func main() {
	if err := newRootCmd(loadPipeline).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(build pipelineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "parcelbrief",
		Short: "Analyse Korean land parcels from public registry data",
		Long: `parcelbrief geocodes a land address, derives its parcel number (PNU),
collects land ledger, building ledger and parcel feature facts, and asks a
generative model for an investment report.

Configuration is read from the environment (and .env), the same as the server.`,
		SilenceUsage: true,
	}

	root.AddCommand(newAnalyzeCmd(build))
	root.AddCommand(newResolveCmd(build))
	return root
}

// loadPipeline wires the pipeline from environment configuration.
// Logs go to stderr so command output stays machine readable.
func loadPipeline(ctx context.Context) (services.AnalysisService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewWithWriter(cfg.Server.Env, os.Stderr)

	components, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return components.Analysis, components.Close, nil
}
