// voicebridge streams microphone audio to an OpenAI realtime session
// and plays the responses back through the speaker. Silence ends the
// user's turn; a status server exposes health, stats and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alwell-kevin/voicebridge/internal/config"
	"github.com/alwell-kevin/voicebridge/internal/log"
	"github.com/alwell-kevin/voicebridge/pkg/audioio"
	"github.com/alwell-kevin/voicebridge/pkg/bridge"
	"github.com/alwell-kevin/voicebridge/pkg/session"
	"github.com/alwell-kevin/voicebridge/pkg/web"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		backend    = flag.String("backend", "", "audio backend override (auto, exec, mock)")
		statusAddr = flag.String("status-addr", "", "status server address override")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Audio.Backend = audioio.Backend(*backend)
	}
	if *statusAddr != "" {
		cfg.Web.Addr = *statusAddr
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	apiKey := config.APIKeyRequired()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := audioio.NewSource(cfg.Audio, logger)
	if err != nil {
		logger.Error("create audio source", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	sessOpts := []session.Option{
		session.WithAPIKey(apiKey),
		session.WithLogger(logger),
	}
	if cfg.Session.Model != "" {
		sessOpts = append(sessOpts, session.WithModel(cfg.Session.Model))
	}
	if cfg.Session.Voice != "" {
		sessOpts = append(sessOpts, session.WithVoice(cfg.Session.Voice))
	}
	if cfg.Session.Instructions != "" {
		sessOpts = append(sessOpts, session.WithInstructions(cfg.Session.Instructions))
	}
	sess, err := session.NewOpenAI(sessOpts...)
	if err != nil {
		logger.Error("create session", "error", err)
		os.Exit(1)
	}

	cfg.Bridge.Session.Voice = cfg.Session.Voice
	cfg.Bridge.Session.Instructions = cfg.Session.Instructions

	registry := prometheus.NewRegistry()
	metrics := bridge.NewMetrics(registry)

	sinkFactory := func() (audioio.Sink, error) {
		return audioio.NewSink(cfg.Audio, logger)
	}
	renderer := bridge.NewRenderer(sinkFactory, cfg.Audio, cfg.Bridge.SessionSampleRate, logger, metrics)

	b, err := bridge.New(cfg.Bridge, source, sess, renderer, logger, metrics)
	if err != nil {
		logger.Error("create bridge", "error", err)
		os.Exit(1)
	}

	if !cfg.Web.Disabled {
		server := web.NewServer(cfg.Web.Addr, b, registry, logger)
		if sw, ok := source.(audioio.SourceWithStats); ok {
			server.SourceStats = sw.Stats
		}
		server.StartAsync()
		defer func() { _ = server.Shutdown() }()
	}

	logger.Info("voicebridge starting",
		"backend", string(cfg.Audio.Backend),
		"sample_rate", cfg.Audio.SampleRate,
		"frame_size", cfg.Bridge.FrameSize,
	)

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bridge stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("voicebridge stopped")
}
