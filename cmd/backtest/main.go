package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/quantsim-lab/quantsim/internal/feed"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/runner"
	"github.com/quantsim-lab/quantsim/internal/strategy"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func loadConfig(path string) (types.RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RunConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg types.RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.RunConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// runAction loads the configuration and data, executes the run with a
// progress bar driven by runner events, and writes the result report.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	dataPath := cmd.String("data")

	source, err := feed.NewDuckDBFeed(dataPath, appLogger)
	if err != nil {
		return err
	}
	defer source.Close()

	r, err := runner.NewRunner(cfg, source, appLogger)
	if err != nil {
		return err
	}
	defer r.Close()

	events := r.Events()
	done := make(chan struct{})

	go func() {
		defer close(done)

		var bar *progressbar.ProgressBar

		for event := range events {
			switch event.Type {
			case types.EventStarted:
				bar = progressbar.Default(int64(event.Total))
				bar.Describe(fmt.Sprintf("Running %s on %s", cfg.StrategyID, filepath.Base(dataPath)))
			case types.EventBarProcessed:
				if bar != nil {
					bar.Add(1)
				}
			case types.EventCompleted, types.EventFailed:
				if bar != nil {
					bar.Finish()
				}

				return
			}
		}
	}()

	result, runErr := r.Run(ctx)
	<-done

	resultPath := filepath.Join(outputDir, "result.yaml")
	if err := types.WriteRunResult(resultPath, result); err != nil {
		return err
	}

	if cmd.Bool("export") {
		if err := r.Recorder().Export(filepath.Join(outputDir, "audit")); err != nil {
			return err
		}
	}

	fmt.Printf("Run %s finished with status %s\n", result.RunID, result.Status)
	fmt.Printf("Final capital: %.2f (total return %.2f%%)\n", result.FinalCapital, result.Metrics.TotalReturn)
	fmt.Printf("Trades: %d, win rate %.2f%%, max drawdown %.2f%%\n",
		result.Metrics.TotalTrades, result.Metrics.WinRate, result.Metrics.MaxDrawdown)
	fmt.Printf("Report written to %s\n", resultPath)

	return runErr
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	var cfg types.RunConfig

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func versionAction(ctx context.Context, cmd *cli.Command) error {
	fmt.Printf("quantsim %s\n", version.Version)
	fmt.Printf("strategies: %v\n", strategy.IDs())

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run market simulations over historical bar data",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute a simulation run from a config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the run configuration YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar data file (.csv or .parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory for the result report",
						Value:   "results",
					},
					&cli.BoolFlag{
						Name:  "export",
						Usage: "Export the full audit history as Parquet",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the run configuration JSON schema",
				Action: schemaAction,
			},
			{
				Name:   "version",
				Usage:  "Print the engine version and registered strategies",
				Action: versionAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
