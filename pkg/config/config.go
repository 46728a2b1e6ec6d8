package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// DB
	PGDSN string `envconfig:"PG_DSN" required:"true"`
	// Crypto
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"`
	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	// RabbitMQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	MessageExchange string `envconfig:"MESSAGE_EXCHANGE" default:"message.exchange"`
	PipelineQueue   string `envconfig:"PIPELINE_QUEUE" default:"pipeline.message.q"`
	// Google Calendar OAuth clients
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleIOSClientID  string `envconfig:"GOOGLE_IOS_CLIENT_ID"`
	// Pipeline tuning
	AutoSyncThreshold  float64 `envconfig:"AUTO_SYNC_THRESHOLD" default:"0.8"`
	DedupWindowMin     int     `envconfig:"DEDUP_WINDOW_MIN" default:"5"`
	DefaultDurationMin int     `envconfig:"DEFAULT_DURATION_MIN" default:"60"`
	BookingTimezone    string  `envconfig:"BOOKING_TIMEZONE" default:"America/New_York"`
	SyncTimeoutSec     int     `envconfig:"SYNC_TIMEOUT_SEC" default:"15"`
	// Network
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
