// Live Translate - realtime speech-to-speech translation over Gemini Live.
// Speak in the source language and hear the translation in the target one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-livetranslate/internal/config"
	"github.com/teslashibe/go-livetranslate/internal/log"
	"github.com/teslashibe/go-livetranslate/pkg/audioio"
	"github.com/teslashibe/go-livetranslate/pkg/hub"
	"github.com/teslashibe/go-livetranslate/pkg/metrics"
	"github.com/teslashibe/go-livetranslate/pkg/rtc"
	"github.com/teslashibe/go-livetranslate/pkg/translator"
	"github.com/teslashibe/go-livetranslate/pkg/web"
)

type options struct {
	configPath string
	source     string
	target     string
	backend    string
	input      string
	web        string
	transcribe bool
	debug      bool
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	opts.apply(&cfg)
	log.Init(cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("livetranslate stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&o.source, "source", "", "Source language code (overrides SOURCE_LANG)")
	flag.StringVar(&o.target, "target", "", "Target language code (overrides TARGET_LANG)")
	flag.StringVar(&o.backend, "backend", "", "Audio backend: auto, mock, device, wav, webrtc")
	flag.StringVar(&o.input, "input", "", "WAV file used as the microphone (implies -backend wav)")
	flag.StringVar(&o.web, "web", "", "Dashboard address, e.g. :8080 (enables the dashboard)")
	flag.BoolVar(&o.transcribe, "transcribe", false, "Request input and output transcripts")
	flag.BoolVar(&o.debug, "debug", false, "Enable verbose debug logging")
	flag.Parse()
	return o
}

// apply lets flags override the loaded configuration.
func (o options) apply(cfg *config.Config) {
	if o.source != "" {
		cfg.Session.SourceLanguage = o.source
	}
	if o.target != "" {
		cfg.Session.TargetLanguage = o.target
	}
	if o.backend != "" {
		cfg.Audio.Backend = o.backend
	}
	if o.input != "" {
		cfg.Audio.InputFile = o.input
		if o.backend == "" {
			cfg.Audio.Backend = string(audioio.BackendWAV)
		}
	}
	if o.web != "" {
		cfg.Web.Enabled = true
		cfg.Web.Address = o.web
	}
	if o.transcribe {
		cfg.Session.Transcription = true
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
}

// translatorConfig maps the service configuration onto a translator.Config.
func translatorConfig(cfg config.Config, ts oauth2.TokenSource) translator.Config {
	tc := translator.DefaultConfig()
	tc.APIKey = cfg.Gemini.APIKey
	tc.TokenSource = ts
	tc.Endpoint = cfg.Gemini.Endpoint
	tc.Model = cfg.Gemini.Model
	tc.Voice = cfg.Gemini.Voice

	backend := audioio.Backend(cfg.Audio.Backend)
	tc.Input.Backend = backend
	tc.Input.SampleRate = cfg.Audio.InputSampleRate
	tc.Input.FrameSize = cfg.Audio.FrameSize
	tc.Input.Device = cfg.Audio.Device
	tc.Input.Path = cfg.Audio.InputFile

	tc.Output.Backend = backend
	tc.Output.SampleRate = cfg.Audio.OutputSampleRate
	tc.Output.Device = cfg.Audio.Device

	tc.Transcription = cfg.Session.Transcription
	tc.SendQueue = cfg.Audio.SendQueue
	tc.VolumeInterval = cfg.Session.VolumeInterval
	return tc
}

// logCallbacks logs session events and signals ended when a session closes.
func logCallbacks(logger *slog.Logger, ended chan<- struct{}) translator.Callbacks {
	return translator.Callbacks{
		OnConnectionUpdate: func(connected bool) {
			logger.Info("connection update", "connected", connected)
			if !connected {
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		},
		OnTranscription: func(text string, isUser bool) {
			speaker := "translation"
			if isUser {
				speaker = "speaker"
			}
			logger.Info("transcript", "from", speaker, "text", text)
		},
		OnError: func(message string) {
			logger.Error("translator error", "message", message)
		},
	}
}

// chain calls a's callbacks, then b's.
func chain(a, b translator.Callbacks) translator.Callbacks {
	return translator.Callbacks{
		OnConnectionUpdate: func(connected bool) {
			if a.OnConnectionUpdate != nil {
				a.OnConnectionUpdate(connected)
			}
			if b.OnConnectionUpdate != nil {
				b.OnConnectionUpdate(connected)
			}
		},
		OnVolumeUpdate: func(input, output float64) {
			if a.OnVolumeUpdate != nil {
				a.OnVolumeUpdate(input, output)
			}
			if b.OnVolumeUpdate != nil {
				b.OnVolumeUpdate(input, output)
			}
		},
		OnTranscription: func(text string, isUser bool) {
			if a.OnTranscription != nil {
				a.OnTranscription(text, isUser)
			}
			if b.OnTranscription != nil {
				b.OnTranscription(text, isUser)
			}
		},
		OnError: func(message string) {
			if a.OnError != nil {
				a.OnError(message)
			}
			if b.OnError != nil {
				b.OnError(message)
			}
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.L()

	ts, err := cfg.TokenSource(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	clientOpts := []translator.Option{
		translator.WithMetrics(m),
		translator.WithLogger(logger),
	}

	var bridge *rtc.Bridge
	if audioio.Backend(cfg.Audio.Backend) == audioio.BackendWebRTC {
		if !cfg.Web.Enabled {
			return errors.New("webrtc backend needs the dashboard; pass -web")
		}
		if !rtc.OpusAvailable() {
			return errors.New("webrtc backend needs a cgo build with libopus")
		}
		bridge = rtc.NewBridge(rtc.WithLogger(logger.With("component", "rtc")))
		defer bridge.Close()
		clientOpts = append(clientOpts,
			translator.WithMicrophone(bridge.Microphone),
			translator.WithSpeaker(bridge.Speaker),
		)
	}

	ended := make(chan struct{}, 1)
	callbacks := logCallbacks(logger, ended)
	statusHub := hub.New("status", logger)
	if cfg.Web.Enabled {
		callbacks = chain(callbacks, web.Callbacks(statusHub))
	}

	client := translator.New(translatorConfig(cfg, ts), callbacks, clientOpts...)
	defer client.Disconnect()

	source, target := cfg.Session.SourceLanguage, cfg.Session.TargetLanguage

	if !cfg.Web.Enabled {
		if err := client.Connect(ctx, config.LanguageName(source), config.LanguageName(target)); err != nil {
			return err
		}
		logger.Info("translating",
			"source", config.LanguageName(source),
			"target", config.LanguageName(target),
			"backend", cfg.Audio.Backend,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			if msg := client.LastError(); msg != "" {
				return errors.New(msg)
			}
			return nil
		}
	}

	srvOpts := []web.Option{
		web.WithMetrics(m, reg),
		web.WithLanguages(source, target),
		web.WithLogger(logger.With("component", "web")),
	}
	if bridge != nil {
		srvOpts = append(srvOpts, web.WithOfferer(bridge))
	}
	srv := web.NewServer(cfg.Web.Address, client, statusHub, srvOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		statusHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
