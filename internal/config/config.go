package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Payment  PaymentConfig
	Booking  BookingConfig
	Operator OperatorConfig
	Mail     MailConfig
	SMS      SMSConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port               string `envconfig:"PORT" default:"8080"`
	AllowedOrigin      string `envconfig:"ALLOWED_ORIGIN" default:"*"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`
}

type PaymentConfig struct {
	StripeSecretKey string        `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	Timeout         time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
}

type BookingConfig struct {
	// Secret is optional; when empty the X-Booking-Key check is skipped.
	Secret          string        `envconfig:"BOOKING_SECRET"`
	TimeZone        string        `envconfig:"BOOKING_TIMEZONE" default:"Local"`
	DefaultDuration int           `envconfig:"BOOKING_DEFAULT_DURATION" default:"60"`
	Dedupe          bool          `envconfig:"BOOKING_DEDUPE" default:"false"`
	DedupeTTL       time.Duration `envconfig:"BOOKING_DEDUPE_TTL" default:"720h"`
}

type OperatorConfig struct {
	Name      string `envconfig:"OPERATOR_NAME" required:"true"`
	Email     string `envconfig:"OPERATOR_EMAIL" required:"true"`
	Phone     string `envconfig:"OPERATOR_PHONE"`
	ProductID string `envconfig:"CALENDAR_PRODUCT_ID" default:"CoachingBooking"`
}

type MailConfig struct {
	Provider       string        `envconfig:"MAIL_PROVIDER" default:"smtp"`
	SMTPHost       string        `envconfig:"SMTP_HOST"`
	SMTPPort       int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser       string        `envconfig:"SMTP_USER"`
	SMTPPass       string        `envconfig:"SMTP_PASS"`
	SendGridAPIKey string        `envconfig:"SENDGRID_API_KEY"`
	Timeout        time.Duration `envconfig:"MAIL_TIMEOUT" default:"15s"`
}

type SMSConfig struct {
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER"`
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

type LogConfig struct {
	Env   string `envconfig:"APP_ENV" default:"development"`
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// Enabled reports whether every Twilio credential plus an operator phone is present.
func (c SMSConfig) Enabled(operatorPhone string) bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != "" && operatorPhone != ""
}

// Location resolves the booking timezone. "Local" and "" mean the host zone.
func (c BookingConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Mail.Provider) {
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("MAIL_PROVIDER smtp requires SMTP_HOST")
		}
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return fmt.Errorf("MAIL_PROVIDER sendgrid requires SENDGRID_API_KEY")
		}
	case "stub":
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", c.Mail.Provider)
	}
	if c.Booking.DefaultDuration <= 0 {
		return fmt.Errorf("BOOKING_DEFAULT_DURATION must be positive, got %d", c.Booking.DefaultDuration)
	}
	if c.Booking.Dedupe && c.Redis.URL == "" {
		return fmt.Errorf("BOOKING_DEDUPE requires REDIS_URL")
	}
	if _, err := c.Booking.Location(); err != nil {
		return err
	}
	return nil
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
