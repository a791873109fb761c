// Package wakeupservice assembles the wakeup service: the Pub/Sub ingestion
// pipeline, the per-platform senders and the device registration API.
package wakeupservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-wakeup-service/internal/api"
	"github.com/tinywideclouds/go-wakeup-service/internal/pipeline"
	"github.com/tinywideclouds/go-wakeup-service/internal/sender"
	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
	"github.com/tinywideclouds/go-wakeup-service/wakeupservice/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.WakeupRequest]
	senders         map[string]*sender.Sender
	logger          *slog.Logger
}

// New assembles the service from its collaborators: the message consumer,
// one sender per platform (disabled senders included) and the account store.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	senders map[string]*sender.Sender,
	store wakeup.AccountStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// The processor sees senders through the narrow submission interface.
	wakeupSenders := make(map[string]pipeline.WakeupSender, len(senders))
	for platform, snd := range senders {
		wakeupSenders[platform] = snd
	}
	processor := pipeline.NewProcessor(wakeupSenders, store, logger)

	streamingService, err := messagepipeline.NewStreamingService[pipeline.WakeupRequest](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.WakeupRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	deviceAPI := api.NewDeviceAPI(store, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/devices/register", deviceAPI.RegisterDevice)
	handle("POST /api/v1/devices/unregister", deviceAPI.UnregisterDevice)

	// CORS preflight for the API namespace.
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		senders:         senders,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	// Senders drain their in-flight submissions and reconciliations before
	// the HTTP server goes away.
	for platform, snd := range w.senders {
		w.logger.Info("Closing sender", "platform", platform)
		snd.Close()
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
