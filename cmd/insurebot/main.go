package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/joho/godotenv"

	"github.com/andklim/insurebot/config"
	"github.com/andklim/insurebot/confirm"
	"github.com/andklim/insurebot/dialogue"
	"github.com/andklim/insurebot/extract"
	"github.com/andklim/insurebot/flow"
	"github.com/andklim/insurebot/server"
	"github.com/andklim/insurebot/session"
	"github.com/andklim/insurebot/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	slog.SetLogLoggerLevel(slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if !cfg.Model.Enabled() {
		log.Fatal("OPENAI_API_KEY and OPENAI_MODEL are required")
	}
	if !cfg.Mindee.Enabled() {
		log.Fatal("MINDEE_API_KEY, MINDEE_IDENTITY_MODEL and MINDEE_VEHICLE_MODEL are required")
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Model,
		BaseURL: cfg.Model.BaseURL,
	})
	if err != nil {
		log.Fatalf("init chat model: %v", err)
	}

	interpreter, err := confirm.NewToolBasedInterpreter(ctx, chatModel)
	if err != nil {
		log.Fatalf("init confirmation interpreter: %v", err)
	}
	composer := dialogue.NewModelComposer(chatModel)
	extractor := extract.NewMindeeClient(extract.MindeeConfig{
		APIKey:          cfg.Mindee.APIKey,
		BaseURL:         cfg.Mindee.BaseURL,
		IdentityModelID: cfg.Mindee.IdentityModelID,
		VehicleModelID:  cfg.Mindee.VehicleModelID,
	})

	hub := server.NewHub()
	intake := flow.New(
		session.NewMemoryStore(),
		extractor,
		interpreter,
		composer,
		hub,
		flow.WithPrice(types.Price{Amount: cfg.Flow.PriceAmount, Currency: cfg.Flow.PriceCurrency}),
		flow.WithCollaboratorTimeout(cfg.Flow.CollaboratorTimeout),
	)

	router := server.NewRouter(server.New(intake, hub))
	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("insurebot listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
