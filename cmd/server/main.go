package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coachbooking/internal/api"
	"coachbooking/internal/config"
	"coachbooking/internal/entities"
	"coachbooking/internal/metrics"
	"coachbooking/internal/repository"
	"coachbooking/internal/service"
	"coachbooking/internal/utils"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	loc, _ := cfg.Booking.Location()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	mailer, err := newMailer(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("Failed to configure mail relay", zap.Error(err))
	}

	operator := entities.Contact{Name: cfg.Operator.Name, Email: cfg.Operator.Email}
	svc := service.NewBookingService(
		service.NewStripeService(cfg.Payment.StripeSecretKey, cfg.Payment.Timeout),
		service.NewInviteService(cfg.Operator.ProductID),
		mailer,
		service.NewSenderService(operator),
		service.BookingOptions{
			Secret:          cfg.Booking.Secret,
			Location:        loc,
			DefaultDuration: cfg.Booking.DefaultDuration,
			PaymentTimeout:  cfg.Payment.Timeout,
			InviteTimeout:   5 * time.Second,
			MailTimeout:     cfg.Mail.Timeout,
			OperatorPhone:   cfg.Operator.Phone,
		},
		logger,
	).WithMetrics(m)

	if cfg.SMS.Enabled(cfg.Operator.Phone) {
		svc.WithSMS(service.NewTwilioSMSSender(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.TwilioFromNumber, logger))
	}

	if cfg.Booking.Dedupe {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := repository.NewRedisClient(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		svc.WithSessionGuard(repository.NewSessionGuardRepository(client, cfg.Booking.DedupeTTL))
	}
	if cfg.Booking.Secret == "" {
		logger.Warn("BOOKING_SECRET not set; booking endpoint accepts unauthenticated requests")
	}

	bookingHandler := api.NewBookingHandler(svc, logger)
	limiter := api.NewRateLimiter(cfg.Server.RateLimitPerMinute, logger).WithTrustedProxy(cfg.Server.TrustProxyHeaders)
	router := api.NewRouter(bookingHandler, limiter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Wrap(router, cfg.Server.AllowedOrigin, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	go func() {
		logger.Info("Server running", zap.String("port", cfg.Server.Port), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// newMailer returns the relay named by MAIL_PROVIDER. The log-only stub is
// used only when explicitly requested.
func newMailer(cfg config.MailConfig, logger *zap.Logger) (service.Mailer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER sendgrid requires SENDGRID_API_KEY")
		}
		return service.NewSendGridMailer(cfg.SendGridAPIKey, logger), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER smtp requires SMTP_HOST")
		}
		return service.NewSMTPMailer(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			Timeout:  cfg.Timeout,
		}, logger), nil
	case "stub":
		logger.Warn("MAIL_PROVIDER=stub; emails will only be logged")
		return service.NewStubMailer(logger), nil
	}
	return nil, fmt.Errorf("unsupported MAIL_PROVIDER %q", cfg.Provider)
}
