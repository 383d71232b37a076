// Package main is a command line joke box: it fetches one joke through the
// same generator the server uses, prints it and optionally illustrates,
// explains and reads it aloud.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"giggleglitch/pkg/audio"
	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/generator"
	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/model"
	"giggleglitch/pkg/pcm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/giggleglitch.yaml", "Path to config file")
	vibeName := flag.String("vibe", "", "Joke vibe (clever, absurd, wholesome, witty, surprise)")
	topic := flag.String("topic", "", "Optional joke topic")
	speak := flag.Bool("speak", false, "Read the joke aloud on the speaker")
	wavOut := flag.String("wav", "", "Write the spoken joke to this WAV file")
	imgOut := flag.String("out", "", "Write the joke illustration to this file")
	explain := flag.Bool("explain", false, "Explain why the joke is funny")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Console only, warnings and up.
	cleanup, err := logging.Init(&config.LogConfig{Server: config.LogSettings{Level: "WARN"}})
	if err != nil {
		return err
	}
	defer cleanup()

	vibe := model.Vibe(cfg.Generator.Vibe)
	if *vibeName != "" {
		if vibe, err = model.ParseVibe(*vibeName); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := gateway.New(credential.NewEnvProvider(cfg.Gemini.EnvFile, cfg.Gemini.Key), gateway.GenAIFactory, gateway.Options{
		Models: cfg.Gemini.Models,
		Video:  cfg.Video,
	})
	gen := generator.New(client, generator.Options{Vibe: vibe})
	gen.SetTopic(*topic)

	st := gen.FetchJoke(ctx)
	joke, ok := st.CurrentJoke()
	if !ok {
		return fmt.Errorf("no joke: %s", st.Error)
	}
	fmt.Printf("%s\n\n  %s\n\n", joke.Setup, joke.Punchline)

	if *imgOut != "" {
		if err := writeVisual(st, *imgOut); err != nil {
			return err
		}
		fmt.Println("Illustration written to", *imgOut)
	}

	if *explain {
		st, err = gen.RequestExplanation(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Why it works: %s\n\n", st.Explanation.Value.Text)
	}

	if *speak || *wavOut != "" {
		st, err = gen.RequestAudio(ctx)
		if err != nil {
			return err
		}
		if st.Audio.Err != nil {
			return fmt.Errorf("speech failed: %s", gateway.UserMessage(st.Audio.Err))
		}
		buf := st.Audio.Value.Buffer
		if *wavOut != "" {
			data, err := audio.EncodeWAV(buf)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*wavOut, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", *wavOut, err)
			}
			fmt.Println("Speech written to", *wavOut)
		}
		if *speak {
			return play(ctx, buf)
		}
	}
	return nil
}

func writeVisual(st generator.State, path string) error {
	if st.Visual.Status != generator.Ready {
		if st.Visual.Err != nil {
			return fmt.Errorf("illustration failed: %s", gateway.UserMessage(st.Visual.Err))
		}
		return errors.New("no illustration")
	}
	if err := os.WriteFile(path, st.Visual.Value.Image.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// play blocks until buf has been heard or ctx ends.
func play(ctx context.Context, buf *pcm.AudioBuffer) error {
	mgr := audio.New()
	done := make(chan struct{})
	if err := mgr.Play(buf, func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		mgr.Stop()
		return ctx.Err()
	}
}
