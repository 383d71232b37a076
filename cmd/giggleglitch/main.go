package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"giggleglitch/internal/api"
	"giggleglitch/pkg/audio"
	"giggleglitch/pkg/chat"
	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/db"
	"giggleglitch/pkg/db/maintenance"
	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/generator"
	"giggleglitch/pkg/live"
	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/media"
	"giggleglitch/pkg/model"
	"giggleglitch/pkg/probe"
	"giggleglitch/pkg/tracker"
	"giggleglitch/pkg/version"
)

const defaultConfigPath = "configs/giggleglitch.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("GiggleGlitch Started", "version", version.Version)

	store, err := initMedia(ctx, appCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tr := tracker.New()
	svcs, err := initCoreServices(appCfg, tr, store)
	if err != nil {
		return err
	}

	localLive := initLocalLive(appCfg, svcs.Dialer)
	if localLive != nil {
		defer func() { _ = localLive.Disconnect() }()
	}

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "Media Store",
			Check:    func(c context.Context) error { _, _, err := store.Stats(c); return err },
			Critical: true,
		},
		{
			Name: "API Credential",
			Check: func(c context.Context) error {
				_, err := svcs.Credentials.Credential(c)
				return err
			},
		},
		{
			Name:    "Gemini",
			Check:   svcs.Client.HealthCheck,
			Timeout: 10 * time.Second,
		},
	}

	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, svcs, store, tr, localLive, probes)
}

// initMedia opens the media database and starts its pruning loop.
func initMedia(ctx context.Context, cfg *config.Config) (*media.Store, error) {
	dbConn, err := db.Init(cfg.Media.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media database: %w", err)
	}
	maintenance.Start(ctx, dbConn, cfg.Media.MaxAge.Std())
	return media.NewStore(dbConn), nil
}

// CoreServices holds the long-lived orchestrators.
type CoreServices struct {
	Credentials credential.Provider
	Client      *gateway.Client
	Generator   *generator.Generator
	Chat        *chat.Sessions
	Dialer      live.Dialer
}

func initCoreServices(cfg *config.Config, tr *tracker.Tracker, store *media.Store) (*CoreServices, error) {
	vibe, err := model.ParseVibe(cfg.Generator.Vibe)
	if err != nil {
		return nil, fmt.Errorf("invalid generator vibe: %w", err)
	}

	creds := credential.NewEnvProvider(cfg.Gemini.EnvFile, cfg.Gemini.Key)
	client := gateway.New(creds, gateway.GenAIFactory, gateway.Options{
		Models:  cfg.Gemini.Models,
		Video:   cfg.Video,
		Tracker: tr,
		History: logging.NewPromptHistory(cfg.Log.Gemini.Path),
	})

	gen := generator.New(client, generator.Options{
		Vibe:      vibe,
		Publisher: store,
		Tracker:   tr,
	})

	return &CoreServices{
		Credentials: creds,
		Client:      client,
		Generator:   gen,
		Chat:        chat.NewSessions(client, store, cfg.Chat.SessionTTL.Std()),
		Dialer:      live.FromGateway(client),
	}, nil
}

func liveOptions(cfg *config.Config) live.Options {
	voice := cfg.Live.Voice
	if _, ok := model.LookupVoice(voice); !ok {
		slog.Warn("Unknown live voice, falling back to Zephyr", "voice", voice)
		voice = "Zephyr"
	}
	return live.Options{
		Persona:     cfg.Live.Persona,
		Voice:       voice,
		SendBuffer:  cfg.Live.SendBuffer,
		Transcripts: cfg.Live.Transcripts,
	}
}

// initLocalLive binds a live controller to the host microphone and speaker.
// It returns nil when this build cannot capture or the speaker is missing;
// browsers still get the WebSocket relay.
func initLocalLive(cfg *config.Config, dialer live.Dialer) *live.Controller {
	if !audio.MicrophoneAvailable {
		slog.Info("Live: No microphone support in this build, relay only")
		return nil
	}
	player := audio.NewScheduledPlayer(audio.DeviceSampleRate)
	if err := player.Start(); err != nil {
		slog.Warn("Live: Speaker unavailable, relay only", "error", err)
		return nil
	}
	mic := audio.NewMicrophone(cfg.Live.FrameSize)
	return live.New(dialer, mic, player, liveOptions(cfg))
}

func runServer(ctx context.Context, cfg *config.Config, svcs *CoreServices, store *media.Store, tr *tracker.Tracker, localLive *live.Controller, probes []probe.Probe) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := requestShutdown(quit)

	// A typed nil would turn into a non-nil interface.
	var local api.LiveController
	if localLive != nil {
		local = localLive
	}

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Generator: api.NewGeneratorHandler(svcs.Generator),
		Studio:    api.NewStudioHandler(svcs.Client, store),
		Chat:      api.NewChatHandler(svcs.Chat),
		Live:      api.NewLiveHandler(local, svcs.Dialer, liveOptions(cfg)),
		Media:     api.NewMediaHandler(store),
		Stats:     api.NewStatsHandler(tr, store),
		Health:    api.NewHealthHandler(probes),
		Metrics:   tr.Handler(),
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

// requestShutdown returns a trigger that queues one shutdown. Repeated calls
// while one is pending do nothing.
func requestShutdown(quit chan<- os.Signal) func() {
	return func() {
		select {
		case quit <- syscall.SIGTERM:
		default:
		}
	}
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
