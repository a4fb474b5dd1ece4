package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/linuxmatters/mouthpiece/internal/cli"
	"github.com/linuxmatters/mouthpiece/internal/config"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/mains"
	"github.com/linuxmatters/mouthpiece/internal/observe"
)

var (
	version = "0.0.1"
)

// versionFlag prints the version and exits before any command runs.
type versionFlag bool

func (versionFlag) BeforeReset(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are accepted by every command.
type Globals struct {
	Version     versionFlag `short:"v" help:"Show version information"`
	Config      string      `short:"c" type:"path" help:"Path to TOML or YAML config file (optional)"`
	LogLevel    string      `help:"Log level: debug, info, warn or error" placeholder:"LEVEL"`
	LogFile     string      `type:"path" help:"Write logs to a rotated file" placeholder:"FILE"`
	MetricsAddr string      `help:"Serve Prometheus metrics on this address" placeholder:"ADDR"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Analyze  AnalyzeCmd  `cmd:"" help:"Analyse WAV files and recommend a cleaning preset"`
	Clean    CleanCmd    `cmd:"" help:"Clean WAV files of hum, noise and level problems"`
	LipSync  LipSyncCmd  `cmd:"" name:"lipsync" help:"Build a lip-sync timeline from text and speech"`
	LongForm LongFormCmd `cmd:"" name:"longform" help:"Build a lip-sync timeline for a long recording"`
	Realtime RealtimeCmd `cmd:"" help:"Estimate vowels by streaming a WAV file"`
	Speak    SpeakCmd    `cmd:"" help:"Synthesize a long script with checkpoints"`
}

// tuiCommands draw a full-screen UI, so logs must stay off stderr.
var tuiCommands = map[string]bool{"clean": true, "speak": true}

// app is the state shared by all commands.
type app struct {
	ctx     context.Context
	cfg     *config.Config
	mainsHz int
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("mouthpiece"),
		kong.Description("Speech cleaning and lip-sync for synthesized voices"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := strings.Fields(kctx.Command())[0]
	a, shutdown, err := setup(ctx, &cliArgs.Globals, tuiCommands[command])
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	err = kctx.Run(a)
	shutdown()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// setup loads configuration and starts logging and telemetry. The returned
// function flushes both.
func setup(ctx context.Context, g *Globals, quiet bool) (*app, func(), error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return nil, nil, err
		}
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.Log.File = g.LogFile
	}
	if g.MetricsAddr != "" {
		cfg.Metrics.Addr = g.MetricsAddr
	}

	logCfg := cfg.Log.Logger()
	logCfg.Quiet = quiet
	if err := logger.Init(logCfg); err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Metrics.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	if cfg.Metrics.Addr != "" {
		if err := observe.Serve(ctx, cfg.Metrics.Addr); err != nil {
			return nil, nil, err
		}
		logger.Infof("serving metrics on %s/metrics", cfg.Metrics.Addr)
	}

	a := &app{
		ctx:     ctx,
		cfg:     cfg,
		mainsHz: mains.Resolve(cfg.Cleaning.MainsHz),
	}

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			logger.Warnf("telemetry shutdown: %v", err)
		}
		logger.Sync()
	}
	return a, shutdown, nil
}
