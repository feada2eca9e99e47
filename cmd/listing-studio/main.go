package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/listing-studio/internal/config"
	"github.com/menta2k/listing-studio/internal/logging"
	"github.com/menta2k/listing-studio/internal/server"
	"github.com/menta2k/listing-studio/pkg/batch"
	"github.com/menta2k/listing-studio/pkg/client"
	"github.com/menta2k/listing-studio/pkg/detection"
	"github.com/menta2k/listing-studio/pkg/llamacpp"
	"github.com/menta2k/listing-studio/pkg/ollama"
	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/session"
	"github.com/menta2k/listing-studio/pkg/types"
	"github.com/menta2k/listing-studio/pkg/warp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("listing-studio"),
		kong.Description("Prepare marketplace listing photos from one source image."),
		kong.UsageOnError(),
	)
	return cliCtx.Run(&args.Globals)
}

type Globals struct {
	Config  string `help:"Path to the JSON config file" type:"path"`
	Verbose bool   `help:"Enable verbose logging" short:"v"`
}

// load reads the config file and sets up logging from it.
func (g *Globals) load() (*config.Config, func(), error) {
	path := g.Config
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Verbose:    g.Verbose,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, func() { _ = closer.Close() }, nil
}

// VisionFlags override the vision section of the config file.
type VisionFlags struct {
	Vision  bool   `help:"Enable wall detection through a vision model"`
	Backend string `help:"Vision backend: ollama or llamacpp"`
	URL     string `help:"Vision server URL" name:"vision-url"`
	Model   string `help:"Vision model name"`
}

func (f VisionFlags) apply(cfg *config.VisionConfig) {
	if f.Vision {
		cfg.Enabled = true
	}
	if f.Backend != "" {
		cfg.Backend = f.Backend
	}
	if f.URL != "" {
		cfg.URL = f.URL
	}
	if f.Model != "" {
		cfg.Model = f.Model
	}
}

type serveCmd struct {
	Host   string `help:"Address to bind"`
	Port   int    `help:"Port to listen on, 0 picks a free one" default:"-1"`
	NoOpen bool   `help:"Do not open the browser when the server starts"`

	VisionFlags `embed:""`
}

func (cmd *serveCmd) Run(g *Globals) error {
	cfg, closeLog, err := g.load()
	if err != nil {
		return err
	}
	defer closeLog()

	if cmd.Host != "" {
		cfg.Server.Host = cmd.Host
	}
	if cmd.Port >= 0 {
		cfg.Server.Port = cmd.Port
	}
	if cmd.NoOpen {
		cfg.Server.OpenBrowser = false
	}
	cmd.VisionFlags.apply(&cfg.Vision)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	enc, err := cfg.Output.EncodeOptions()
	if err != nil {
		return err
	}
	proc := processing.NewProcessor()
	estimator, err := newEstimator(cfg.Vision, proc)
	if err != nil {
		return err
	}

	store := session.NewStore(session.Config{
		Processor:    proc,
		Orchestrator: batch.New(proc, cfg.Batch.MaxWorkers),
		Estimator:    estimator,
		Encode:       enc,
		PreviewWidth: cfg.Preview.Width,
	})

	srv := server.New(server.Config{
		Store:          store,
		Processor:      proc,
		FilePrefix:     cfg.Output.Prefix,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cfg.Server.OpenBrowser {
				if err := openBrowser(addr); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	return srv.Run(ctx, addr)
}

// newEstimator returns nil when vision is disabled, so sessions fall back to
// the default inset quad.
func newEstimator(cfg config.VisionConfig, proc *processing.Processor) (warp.CornerEstimator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	vc, err := newVisionClient(cfg)
	if err != nil {
		return nil, err
	}
	det := detection.NewDetector(vc, cfg.Model,
		detection.WithImageSize(cfg.SendSize),
		detection.WithQuality(cfg.SendQuality),
		detection.WithProcessor(proc),
	)
	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		return det, nil
	}
	return warp.EstimatorFunc(func(ctx context.Context, img image.Image) (types.WallCoordinates, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return det.EstimateCorners(ctx, img)
	}), nil
}

func newVisionClient(cfg config.VisionConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case "ollama":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown vision backend %q (use 'ollama' or 'llamacpp')", cfg.Backend)
}

type presetsCmd struct {
	Group bool `help:"Print one line per category instead of one per preset"`
}

func (cmd *presetsCmd) Run() error {
	if cmd.Group {
		groups := presets.Grouped()
		for _, c := range []types.Category{types.CategoryPrimary, types.CategorySecondary, types.CategorySocial} {
			printJSONL([]map[string]any{{"category": c, "presets": groups[c]}})
		}
		return nil
	}
	printJSONL(presets.All())
	return nil
}

type detectCmd struct {
	Image string `arg:"" help:"Image file or URL to locate a wall in"`
	Ping  bool   `help:"Only ask the model to describe the image"`

	VisionFlags `embed:""`
}

func (cmd *detectCmd) Run(g *Globals) error {
	cfg, closeLog, err := g.load()
	if err != nil {
		return err
	}
	defer closeLog()

	cmd.VisionFlags.apply(&cfg.Vision)
	cfg.Vision.Enabled = true
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	proc := processing.NewProcessor()
	img, err := proc.LoadImageSmart(ctx, cmd.Image)
	if err != nil {
		return err
	}

	if cmd.Ping {
		vc, err := newVisionClient(cfg.Vision)
		if err != nil {
			return err
		}
		det := detection.NewDetector(vc, cfg.Vision.Model, detection.WithProcessor(proc))
		answer, err := det.TestVision(ctx, img)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	est, err := newEstimator(cfg.Vision, proc)
	if err != nil {
		return err
	}
	wc, err := est.EstimateCorners(ctx, img)
	if err != nil {
		return err
	}
	printJSONL([]types.WallCoordinates{wc})
	return nil
}

type initConfigCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (cmd *initConfigCmd) Run(g *Globals) error {
	path := g.Config
	if path == "" {
		path = config.GetConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type cliArgs struct {
	Globals

	Serve      serveCmd      `cmd:"" default:"withargs" help:"Start the local studio server"`
	Presets    presetsCmd    `cmd:"" help:"Print the preset catalog as JSON lines"`
	Detect     detectCmd     `cmd:"" help:"Estimate wall corners in an image with the vision model"`
	InitConfig initConfigCmd `cmd:"" name:"init-config" help:"Write the default configuration file"`
}

func printJSONL[T any](data []T) {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}
