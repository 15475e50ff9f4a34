package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"muxsynth/controller"
	"muxsynth/utils"
)

const usage = `muxsynth: synthetic magnetic-scan DAQ data generator

usage: muxsynth <command> [flags]

commands:
  path      build the scan trajectory and dense scan path
  sample    sample the field model along the scan path, one file per sensor
  export    compute gains and write the muxed record files + manifest
  run       path, sample and export in one go
  inspect   decode and verify an export, optionally dump records to CSV
`

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logFile    string
	logLevel   string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "config.yml", "path to config (.yml, .yaml, .json or .jsonc)")
	fs.StringVar(&g.logFile, "log", "", "optional log file path (stdout is always included)")
	fs.StringVar(&g.logLevel, "log-level", "info", "minimum log level: debug, info, warn, error")
}

func (g *globals) init() (*utils.Logger, error) {
	lvl, err := utils.ParseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	logger := utils.InitLogger(lvl, g.logFile)
	logger.SetLevel(lvl)
	return logger, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		utils.L().Fatal("%v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Print(usage)
		return nil
	}
	cmd, rest := args[0], args[1:]

	var g globals
	fs := pflag.NewFlagSet("muxsynth "+cmd, pflag.ContinueOnError)
	g.register(fs)

	var (
		manifest string
		csvDir   string
		csvLimit int64
		chunk    int
		workers  int
	)
	switch cmd {
	case "path", "sample", "export", "run":
		fs.IntVar(&workers, "workers", 0, "field sampling goroutines (0 = config, then GOMAXPROCS)")
		fs.IntVar(&chunk, "chunk", 0, "samples per chunk (0 = config)")
	case "inspect":
		fs.StringVar(&manifest, "manifest", "", "manifest to inspect (default: from config)")
		fs.StringVar(&csvDir, "csv", "", "dump decoded records as <variant>.csv into this directory")
		fs.Int64Var(&csvLimit, "csv-limit", 1000, "max records per CSV file (0 = all)")
		fs.IntVar(&chunk, "chunk", 4096, "records decoded per read")
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	logger, err := g.init()
	if err != nil {
		return err
	}
	defer logger.Close()

	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  muxsynth %s  ·  synthetic magnetic-scan DAQ", cmd)
	utils.L().Info("  GOMAXPROCS=%d  ·  PID=%d", runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	cfg, err := utils.LoadConfig(g.configPath)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Export.Workers = workers
	}
	if chunk > 0 && cmd != "inspect" {
		cfg.Export.ChunkSamples = chunk
	}

	// ── Context with OS signal cancellation ──────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "path":
		return controller.NewTrajectoryController(cfg).Run(ctx)
	case "sample":
		return controller.NewFieldController(cfg).Run(ctx)
	case "export":
		_, err := controller.NewExportController(cfg).Run(ctx)
		return err
	case "run":
		m, err := controller.RunPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("\n✓ muxsynth finished. %d samples × %d files in %s\n", m.Samples, len(m.Files), cfg.Files.OutputDir)
		return nil
	case "inspect":
		if manifest == "" {
			manifest = cfg.Path(cfg.Files.Manifest)
		}
		ic := controller.NewInspectController(manifest, chunk)
		if csvDir != "" {
			if err := os.MkdirAll(csvDir, 0755); err != nil {
				return fmt.Errorf("create csv dir: %w", err)
			}
			ic.WithCSV(csvDir, csvLimit)
		}
		reports, err := ic.Run(ctx)
		if err != nil {
			return err
		}
		for _, r := range reports {
			if !r.DigestOK {
				return fmt.Errorf("%s: digest mismatch", r.Path)
			}
		}
		return nil
	}
	return nil
}
