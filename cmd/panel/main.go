// Command panel builds the user-month panel from a directory of transaction
// shards and writes the panel, selection table and run manifest.
//
// Usage:
//
//	panel [-config panel.yaml] [-data dir] [-out dir] [-shard n] [-serve] [-addr host:port]
//
// With -shard only the n-th shard (in name order) is processed. With -serve
// the status API and event stream stay up after the run until interrupted,
// whether the run succeeded or failed; the exit status reports the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"evalpanel/internal/app"
	"evalpanel/internal/config"
	"evalpanel/internal/dataprocessing"
	"evalpanel/internal/files"
	"evalpanel/internal/infrastructure"
	"evalpanel/internal/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("panel failed", slog.String("error", err.Error()))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
	infrastructure.CloseLogFile()
}

type options struct {
	configPath string
	dataDir    string
	outDir     string
	shard      int
	serve      bool
	addr       string
}

func parseFlags(args []string) (*options, error) {
	var o options
	fs := flag.NewFlagSet("panel", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "path to the YAML configuration (defaults to panel.yaml or configs/panel.yaml)")
	fs.StringVar(&o.dataDir, "data", "", "directory holding the transaction shards (overrides paths.data_dir)")
	fs.StringVar(&o.outDir, "out", "", "directory receiving the outputs (overrides paths.output_dir)")
	fs.IntVar(&o.shard, "shard", -1, "process only the shard with this index; all shards when negative")
	fs.BoolVar(&o.serve, "serve", false, "keep the status server running after the run")
	fs.StringVar(&o.addr, "addr", "", "status server address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.Paths.DataDir = o.dataDir
	}
	if o.outDir != "" {
		cfg.Paths.OutputDir = o.outDir
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	infrastructure.WithComponent(logger, "cli").InfoContext(ctx, "panel starting",
		slog.String("version", config.AppVersion),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("output_dir", cfg.Paths.OutputDir),
		slog.Int("shard", o.shard),
		slog.Int("workers", cfg.WorkerCount()))

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	paths := validation.NewPathValidator(logger)
	if err := paths.ValidateInputDirectory(cfg.Paths.DataDir); err != nil {
		return err
	}
	if err := paths.ValidateOutputDirectory(cfg.Paths.OutputDir); err != nil {
		return err
	}

	discovered, err := files.NewDiscovery(cfg.Paths.DataDir, logger).Discover(ctx)
	if err != nil {
		return err
	}
	shards, err := files.Select(discovered, o.shard)
	if err != nil {
		return err
	}

	a, err := app.NewApplication(cfg, logger, providers, dataprocessing.NewReader(logger))
	if err != nil {
		return err
	}
	defer a.Stop(context.WithoutCancel(ctx))

	if o.serve {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}

	manifest, runErr := a.RunPipeline(ctx, shards)
	if runErr != nil {
		fmt.Fprintf(stdout, "run failed: %v\n", runErr)
	} else {
		fmt.Fprintf(stdout, "run %s: %d users, %d user-months from %d shard(s) written to %s\n",
			manifest.RunID, manifest.Users, manifest.UserMonths, len(manifest.Shards), cfg.Paths.OutputDir)
	}

	// a failed run stays visible on the status API until interrupted
	if o.serve {
		fmt.Fprintf(stdout, "serving run status on http://%s\n", a.Addr())
		<-ctx.Done()
	}
	return runErr
}
