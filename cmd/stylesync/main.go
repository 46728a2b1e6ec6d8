package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/godswillmedia-source/stylesync-pwa/internal/calendar"
	"github.com/godswillmedia-source/stylesync-pwa/internal/events"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
	"github.com/godswillmedia-source/stylesync-pwa/internal/service"
	thttp "github.com/godswillmedia-source/stylesync-pwa/internal/transport/http"
	"github.com/godswillmedia-source/stylesync-pwa/internal/worker"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/config"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/db"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/mq"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/obs"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/vault"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	shutdown := obs.InitTracer("stylesync")
	defer func() { _ = shutdown(context.Background()) }()

	// DB
	gdb := db.Open(cfg.PGDSN)
	must(0, repository.Migrate(gdb))
	messages := repository.NewMessageRepo(gdb)
	fingerprints := repository.NewFingerprintRepo(gdb)
	clients := repository.NewClientRepo(gdb)
	bookings := repository.NewBookingRepo(gdb)
	creds := repository.NewCredentialRepo(gdb)

	// Vault: one explicit instance, passed by reference everywhere
	v := must(vault.New(cfg.EncryptionKey))

	loc := must(time.LoadLocation(cfg.BookingTimezone))

	cal := calendar.NewAdapter(creds, v, calendar.Config{
		WebClientID:     cfg.GoogleClientID,
		WebClientSecret: cfg.GoogleClientSecret,
		IOSClientID:     cfg.GoogleIOSClientID,
		Timezone:        cfg.BookingTimezone,
		Timeout:         time.Duration(cfg.SyncTimeoutSec) * time.Second,
	})

	pipeline := service.NewPipeline(gdb, messages, fingerprints, clients, bookings, cal,
		cfg.AutoSyncThreshold, loc, cfg.DefaultDurationMin)

	// MQ: publisher for ingest, consumer for the pipeline worker
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.MessageExchange))
	defer pub.Close()
	cons := must(mq.NewConsumer(cfg.RabbitURL, cfg.MessageExchange, cfg.PipelineQueue,
		[]string{events.RKMessageStored}, 8))
	defer cons.Close()

	ingest := service.NewIngestor(messages, pub, time.Duration(cfg.DedupWindowMin)*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewConsumer(cons, pipeline)
	go func() {
		log.Println("[stylesync] pipeline worker started")
		if err := w.Run(ctx); err != nil {
			log.Fatalf("[stylesync] worker: %v", err)
		}
	}()

	r := thttp.NewRouter(
		thttp.NewWebhookHandler(ingest, pipeline, messages, creds),
		thttp.NewBookingHandler(pipeline, bookings),
		thttp.NewClientHandler(clients),
		thttp.NewMessageHandler(messages),
	)
	go func() {
		log.Println("[stylesync] http listening on", cfg.HTTPAddr)
		log.Fatal(r.Run(cfg.HTTPAddr))
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
	log.Println("[stylesync] stopped")
}
