package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat/core"
	"omnichat/factories"
	"omnichat/server"
	"omnichat/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "", "listen address, overrides settings (e.g. :8080)")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}

	settings, err := factories.SettingsConfigFromEnv(core.GetLogger())
	if err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("failed to load settings, using defaults")
		settings = factories.DefaultSettingsConfig()
	}
	if addr != "" {
		settings.Server.Addr = addr
	}

	closeLog := installFileLogger(settings.Logging)
	defer closeLog()
	logger := core.GetLogger().With(map[string]any{"component": "main"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Dir = settings.Logging.TelemetryDir
	telemetryCfg.Rotation = settings.Logging.Rotation
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg, core.GetLogger())
	if err != nil {
		logger.With(map[string]any{"error": err}).Warn("telemetry disabled")
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	keys := factories.APIKeysFromEnv()
	if keys.OpenAI == "" {
		logger.Warn("OPENAI_API_KEY is not set, completions will fail")
	}
	if keys.ElevenLabs == "" {
		logger.Warn("ELEVENLABS_API_KEY is not set, replies will not be spoken")
	}

	srv, err := server.New(settings.Server, factories.NewSessionBuilder(settings, keys, core.GetLogger()), core.GetLogger())
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("failed to create server")
		closeLog()
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			logger.With(map[string]any{"error": err}).Error("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("server shutdown incomplete")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("telemetry shutdown incomplete")
	}
}

// installFileLogger tees the global logger into a rotated JSON-lines file
// when one is configured. The returned func closes the file.
func installFileLogger(cfg factories.LoggingConfig) func() {
	if cfg.File == "" {
		return func() {}
	}
	writer, err := core.NewRotatingLogWriter(cfg.File, cfg.Rotation)
	if err != nil {
		core.GetLogger().With(map[string]any{"error": err, "path": cfg.File}).Warn("file logging disabled")
		return func() {}
	}
	core.SetLogger(*core.NewTeeLogger(core.NewDevelopmentLogger(), writer))
	return writer.Close
}
