package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"eventez-payments/config"
	"eventez-payments/handlers"
	"eventez-payments/internal/services"
	"eventez-payments/internal/services/gateway"
	"eventez-payments/internal/services/gateway/mtn"
	"eventez-payments/internal/services/gateway/orange"
	"eventez-payments/internal/store"
	_ "eventez-payments/migrations"
	"eventez-payments/monitoring"
	"eventez-payments/security"
	"eventez-payments/utils"
)

// Start wires the application together and runs the PocketBase server.
func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PubNub
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUUID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		notifier = services.NewPubNubNotifier(pubnub.NewPubNub(pnConfig))
	}

	// Initialize gateways. An unconfigured provider is skipped, not fatal:
	// the service rejects its method with a 400 instead.
	factory := gateway.NewFactory()
	var gateways []gateway.Gateway

	if cfg.MTN.SubscriptionKey != "" {
		gw, err := factory.Create(ctx, gateway.ProviderMTN, &mtn.Config{
			BaseURL:           cfg.MTN.BaseURL,
			SubscriptionKey:   cfg.MTN.SubscriptionKey,
			APIUser:           cfg.MTN.APIUser,
			APIKey:            cfg.MTN.APIKey,
			TargetEnvironment: cfg.MTN.TargetEnvironment,
			CallbackURL:       cfg.MTN.CallbackURL,
		})
		if err != nil {
			slog.Warn("mtn gateway disabled", "error", err)
		} else {
			gateways = append(gateways, gw)
		}
	}

	if cfg.Orange.MerchantKey != "" {
		gw, err := factory.Create(ctx, gateway.ProviderOrange, &orange.Config{
			BaseURL:        cfg.Orange.BaseURL,
			MerchantKey:    cfg.Orange.MerchantKey,
			ConsumerKey:    cfg.Orange.ConsumerKey,
			ConsumerSecret: cfg.Orange.ConsumerSecret,
			ReturnURL:      cfg.Orange.ReturnURL,
			CancelURL:      cfg.Orange.CancelURL,
			NotifURL:       cfg.Orange.NotifURL,
		})
		if err != nil {
			slog.Warn("orange gateway disabled", "error", err)
		} else {
			gateways = append(gateways, gw)
		}
	}

	// Initialize services
	recordStore := store.NewPocketBaseStore(app)
	settlementService := services.NewSettlementService(recordStore, redisClient)
	paymentService := services.NewPaymentService(
		recordStore,
		redisClient,
		gateway.NewRegistry(gateways...),
		settlementService,
		notifier,
		services.PaymentServiceOpts{
			Currency:       cfg.Currency,
			VerifyInterval: cfg.VerifyInterval,
			VerifyWindow:   cfg.VerifyWindow,
			SessionTTL:     cfg.SessionTTL,
		},
	)

	// Initialize handlers
	rateLimiter := security.NewRateLimiter(redisClient, 10)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, rateLimiter, cfg.OperatorKeyHash)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go serveMetrics(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, paymentService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Payment endpoints
		e.Router.POST("/api/payments/process", paymentHandler.ProcessPayment)
		e.Router.GET("/api/payments/process", paymentHandler.PollPayment)
		e.Router.GET("/api/payments/{paymentId}", paymentHandler.GetPaymentDetails)
		e.Router.POST("/api/payments/{paymentId}/cancel", paymentHandler.CancelPayment)
		e.Router.POST("/api/payments/{paymentId}/refund", paymentHandler.RefundPayment)

		// Orange server-to-server notification
		e.Router.POST("/api/payments/orange/notify", paymentHandler.OrangeNotify)

		// Test endpoint for gateway simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/test/simulate-gateway", paymentHandler.SimulateGateway)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		slog.Info("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics server", "error", err)
	}
}

// handleShutdown drains the verification loops before the process exits.
func handleShutdown(cancel context.CancelFunc, paymentService *services.PaymentService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	paymentService.Shutdown()
	cancel()
}
