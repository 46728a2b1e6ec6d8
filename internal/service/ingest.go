package service

import (
	"context"
	"log"
	"time"

	"github.com/godswillmedia-source/stylesync-pwa/internal/events"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
)

// Publisher is the MQ slice the ingestor needs.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Ingestor is the "never lose a message" boundary: durable write first,
// acknowledge, then hand off to the worker over MQ. Parsing never runs
// on the caller's request.
type Ingestor struct {
	messages *repository.MessageRepo
	pub      Publisher
	window   time.Duration
}

func NewIngestor(messages *repository.MessageRepo, pub Publisher, window time.Duration) *Ingestor {
	return &Ingestor{messages: messages, pub: pub, window: window}
}

// Ingest stores the message and queues it for processing. The store
// write failing is the one loud failure in the system; a publish failure
// is only logged, since re-delivery of the SMS re-queues safely through
// dedup.
func (s *Ingestor) Ingest(ctx context.Context, ownerID, text, sender string) (string, bool, error) {
	m, dup, err := s.messages.Store(ctx, ownerID, text, sender, s.window)
	if err != nil {
		return "", false, err
	}
	if dup {
		return m.ID, true, nil
	}
	if err := s.pub.PublishJSON(ctx, events.RKMessageStored, events.MessageStored{MessageID: m.ID, OwnerID: ownerID}); err != nil {
		log.Printf("[ingest] publish %s failed: %v (message stored, will process on re-delivery)", m.ID, err)
	}
	return m.ID, false, nil
}
