// Package main runs a live voice session from the terminal. Audio comes from
// the microphone (builds with -tags portaudio) or a WAV file, and replies
// play on the default speaker while transcripts are printed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"giggleglitch/pkg/audio"
	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/live"
	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/model"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/giggleglitch.yaml", "Path to config file")
	wavPath := flag.String("wav", "", "Replay this WAV file instead of the microphone")
	voice := flag.String("voice", "", "Reply voice (see /api/voices)")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	cleanup, err := logging.Init(&config.LogConfig{Server: config.LogSettings{Level: level}})
	if err != nil {
		return err
	}
	defer cleanup()

	opts, err := sessionOptions(cfg, *voice)
	if err != nil {
		return err
	}

	var capture live.Capture
	switch {
	case *wavPath != "":
		capture = &audio.WAVSource{Path: *wavPath, FrameSize: cfg.Live.FrameSize}
	case audio.MicrophoneAvailable:
		capture = audio.NewMicrophone(cfg.Live.FrameSize)
	default:
		return fmt.Errorf("%w; pass -wav to replay a file", audio.ErrNoMicrophone)
	}

	player := audio.NewScheduledPlayer(audio.DeviceSampleRate)
	if err := player.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended := make(chan live.Status, 1)
	printer := &transcriptPrinter{}
	opts.Notify = func(st live.Status) {
		printer.Print(st)
		if st.State == live.Disconnected {
			select {
			case ended <- st:
			default:
			}
		}
	}

	client := gateway.New(credential.NewEnvProvider(cfg.Gemini.EnvFile, cfg.Gemini.Key), gateway.GenAIFactory, gateway.Options{
		Models: cfg.Gemini.Models,
	})
	ctrl := live.New(live.FromGateway(client), capture, player, opts)

	if err := ctrl.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	fmt.Println("Connected. Speak now, Ctrl-C to quit.")

	select {
	case <-ctx.Done():
		_ = ctrl.Disconnect()
		fmt.Println()
		return nil
	case st := <-ended:
		if st.LastError != "" {
			return fmt.Errorf("session ended: %s", st.LastError)
		}
		return nil
	}
}

func sessionOptions(cfg *config.Config, voice string) (live.Options, error) {
	if voice == "" {
		voice = cfg.Live.Voice
	}
	v, ok := model.LookupVoice(voice)
	if !ok {
		return live.Options{}, fmt.Errorf("unknown voice %q", voice)
	}
	return live.Options{
		Persona:     cfg.Live.Persona,
		Voice:       v.Name,
		SendBuffer:  cfg.Live.SendBuffer,
		Transcripts: cfg.Live.Transcripts,
	}, nil
}

// transcriptPrinter prints transcript lines once each.
type transcriptPrinter struct {
	mu   sync.Mutex
	last string
}

func (p *transcriptPrinter) Print(st live.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(st.Transcripts) == 0 {
		return
	}
	line := st.Transcripts[len(st.Transcripts)-1]
	if line == p.last {
		return
	}
	p.last = line
	fmt.Println(strings.TrimSpace(line))
}
