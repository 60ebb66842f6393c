// Command server runs the voice diary service: a telephony media stream
// endpoint that converses with the caller and writes a journal entry when
// the call ends.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voice-diary-lab/internal/config"
	"github.com/voice-diary-lab/internal/conversation"
	"github.com/voice-diary-lab/internal/logging"
	"github.com/voice-diary-lab/internal/store"
	"github.com/voice-diary-lab/internal/tts"
	"github.com/voice-diary-lab/internal/voice"
	"github.com/voice-diary-lab/llm"
)

const drainTimeout = 90 * time.Second

func main() {
	logging.Init()
	defer func() { _ = logging.Sync() }()

	if err := config.LoadDotenv(".env"); err != nil {
		logging.Warnw("dotenv load failed", "err", err)
	}
	cfg := config.FromEnv()

	if cfg.Transcribe.APIKey == "" {
		logging.Fatalw("DEEPGRAM_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.FromConfig(ctx, cfg)
	if err != nil {
		logging.Fatalw("llm setup failed", "err", err)
	}
	ttsProvider, err := tts.FromConfig(cfg)
	if err != nil {
		logging.Fatalw("tts setup failed", "err", err)
	}
	logging.Infow("providers ready", "llm", llmClient.Name(), "tts", ttsProvider.Name())

	registry := conversation.NewRegistry()
	synth := conversation.NewSynthesizer(llmClient, ttsProvider)

	var journalStore *store.Store
	if cfg.DatabaseDSN != "" {
		journalStore, err = store.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			logging.Fatalw("store setup failed", "err", err)
		}
		defer journalStore.Close()
	} else {
		logging.Warnw("DATABASE_URL not set, journal persistence disabled")
	}

	// A typed-nil *store.Store must not reach the handler as a non-nil
	// interface.
	var handlerStore voice.JournalStore
	if journalStore != nil {
		handlerStore = journalStore
	}

	mux := http.NewServeMux()
	mux.Handle("/streams/telephony", voice.NewHandler(synth, registry, handlerStore, cfg.Transcribe))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Infow("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalw("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logging.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warnw("server shutdown", "err", err)
	}
	if !registry.Wait(shutdownCtx) {
		logging.Warnw("drain timeout, exiting with live calls", "live", registry.Count())
		os.Exit(1)
	}
	logging.Infow("all calls drained")
}
