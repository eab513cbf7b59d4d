package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"zoom-kiosk/internal/capture"
	"zoom-kiosk/internal/conference"
	"zoom-kiosk/internal/config"
	"zoom-kiosk/internal/controller"
	"zoom-kiosk/internal/logging"
	"zoom-kiosk/internal/realtime"
	"zoom-kiosk/internal/recorder"
	"zoom-kiosk/internal/watcher"
)

const (
	captureFlag     = "--capture"
	shutdownTimeout = 5 * time.Second
)

func main() {
	var (
		configPath  string
		captureMode bool
		mock        bool
	)
	pflag.StringVar(&configPath, "config", "", "path to config file (yaml or json)")
	pflag.BoolVar(&captureMode, "capture", false, "run as the click capture process")
	pflag.BoolVar(&mock, "mock", false, "use the simulated conferencing SDK")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if captureMode {
		os.Exit(runCapture(ctx, configPath))
	}
	if err := run(ctx, configPath, mock); err != nil {
		logging.L().Fatal().Err(err).Msg("kiosk failed")
	}
}

// runCapture is the child side of click capture. Stdout carries records
// only; logs go to stderr.
func runCapture(ctx context.Context, configPath string) int {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logging.Init(cfg.Log, os.Stderr)
	logger := logging.Component("capture")

	sampler, err := capture.NewSampler()
	if err != nil {
		logger.Warn().Err(err).Msg("no pointer sampler")
	}
	poller := capture.NewPoller(sampler, cfg.Capture.Interval(), logger)
	if err := poller.Run(ctx, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("capture stopped")
		return 1
	}
	return 0
}

func run(ctx context.Context, configPath string, mock bool) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log, os.Stdout)
	logger := logging.L()
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}
	logger.Info().Str("file", cfg.File).Msg("config loaded")

	store, err := recorder.NewStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if !mock {
		logger.Warn().Msg("native conferencing SDK is not linked in this build, using simulator")
	}
	sim := conference.NewSimulator(0)
	defer sim.Close()

	var sup controller.CaptureSupervisor
	var supervisor *capture.Supervisor
	if cfg.Capture.Enabled {
		argv, err := capture.SelfCommand(captureFlag)
		if err != nil {
			return err
		}
		if configPath != "" {
			argv = append(argv, "--config", configPath)
		}
		supervisor = capture.NewSupervisor(
			capture.SupervisorConfig{Command: argv},
			capture.NewQueue(cfg.Capture.QueueSize),
			logging.Component("capture"),
		)
		sup = supervisor
	}

	injector, err := recorder.NewInjector()
	if err != nil {
		logger.Warn().Err(err).Msg("input injection unavailable, saved recordings will not be replayed")
	}
	player := recorder.NewPlayer(injector, cfg.Kiosk.PlaybackSpeed, logging.Component("player"))

	hub := realtime.NewHub(logging.Component("hub"))
	ctrl := controller.New(controller.Options{
		Config:    cfg,
		Client:    sim,
		Recorder:  recorder.New(store),
		Capture:   sup,
		Player:    player,
		Publisher: hub,
		Logger:    logger,
	})

	if cfg.File != "" {
		w := watcher.New(0, func(path string) {
			next, warnings, err := config.Load(path)
			if err != nil {
				logger.Warn().Err(err).Msg("config reload failed")
				return
			}
			for _, w := range warnings {
				logger.Warn().Msg(w)
			}
			if err := ctrl.ApplyConfig(ctx, next); err != nil {
				logger.Warn().Err(err).Msg("config reload not fully applied")
				return
			}
			logger.Info().Str("file", path).Msg("config reloaded")
		}, logging.Component("watcher"))
		if err := w.Watch(cfg.File); err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		}
		defer w.Shutdown()
	}

	rt := realtime.New(ctrl, hub, cfg.Server.StaticDir, logging.Component("realtime"))
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler: rt.Handler(),
	}

	ctrlDone := make(chan error, 1)
	go func() { ctrlDone <- ctrl.Run(ctx) }()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("kiosk bridge listening")
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	<-ctrlDone
	if supervisor != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		supervisor.Shutdown(shutdownCtx)
	}
	return nil
}
