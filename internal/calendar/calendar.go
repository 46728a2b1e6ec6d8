package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/vault"
)

// ErrNotConnected means the owner has no usable calendar credentials;
// the UI surfaces this as "reconnect required".
var ErrNotConnected = errors.New("calendar_not_connected")

const calendarID = "primary"

// Config carries the OAuth client credentials for the two auth methods
// the mobile and web sign-in flows use. The iOS client has no secret
// (PKCE).
type Config struct {
	WebClientID     string
	WebClientSecret string
	IOSClientID     string
	Timezone        string
	Timeout         time.Duration
}

// Adapter performs the external calendar side effect. Credentials are
// decrypted just before the API call; tokens refreshed mid-call by the
// oauth2 transport are re-encrypted and persisted before the call
// returns, under a per-owner lock.
type Adapter struct {
	creds *repository.CredentialRepo
	vault *vault.Vault
	cfg   Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAdapter(creds *repository.CredentialRepo, v *vault.Vault, cfg Config) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}
	return &Adapter{creds: creds, vault: v, cfg: cfg, locks: map[string]*sync.Mutex{}}
}

func (a *Adapter) ownerLock(ownerID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[ownerID] = l
	}
	return l
}

func (a *Adapter) oauthConfig(authMethod string) *oauth2.Config {
	if authMethod == "ios" {
		return &oauth2.Config{ClientID: a.cfg.IOSClientID, Endpoint: google.Endpoint}
	}
	return &oauth2.Config{
		ClientID:     a.cfg.WebClientID,
		ClientSecret: a.cfg.WebClientSecret,
		Endpoint:     google.Endpoint,
	}
}

// service builds a calendar client whose token source persists refreshes
// before any API call proceeds on the new token.
func (a *Adapter) service(ctx context.Context, ownerID string) (*gcal.Service, error) {
	rec, err := a.creds.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: no credential record", ErrNotConnected)
	}
	if rec.AccessTokenCiphertext == "" || rec.RefreshTokenCiphertext == "" {
		return nil, ErrNotConnected
	}

	access, err := a.vault.Decrypt(rec.AccessTokenCiphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := a.vault.Decrypt(rec.RefreshTokenCiphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: rec.TokenExpiry}
	ts := &persistingTokenSource{
		adapter: a,
		ownerID: ownerID,
		base:    a.oauthConfig(rec.AuthMethod).TokenSource(ctx, tok),
		last:    tok,
	}
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("init calendar client: %w", err)
	}
	return svc, nil
}

// persistingTokenSource wraps the refreshing source so a refreshed token
// is encrypted and written back before it is ever used. Losing a
// refreshed token is losing calendar access, so a failed persist fails
// the call.
type persistingTokenSource struct {
	adapter *Adapter
	ownerID string
	base    oauth2.TokenSource
	last    *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	lock := s.adapter.ownerLock(s.ownerID)
	lock.Lock()
	defer lock.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == s.last.AccessToken {
		return tok, nil
	}

	accessCT, err := s.adapter.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = s.last.RefreshToken
	}
	refreshCT, err := s.adapter.vault.Encrypt(refresh)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.adapter.creds.SaveTokens(ctx, s.ownerID, accessCT, refreshCT, tok.Expiry); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	log.Printf("[calendar] owner %s: token refreshed and re-persisted", s.ownerID)
	s.last = tok
	return tok, nil
}

func (a *Adapter) event(b *domain.Booking) *gcal.Event {
	return &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", b.Service, b.CustomerName),
		Description: fmt.Sprintf("StyleSync booking\nService: %s\nClient: %s", b.Service, b.CustomerName),
		Start: &gcal.EventDateTime{
			DateTime: b.AppointmentTime.Format(time.RFC3339),
			TimeZone: a.cfg.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: b.End().Format(time.RFC3339),
			TimeZone: a.cfg.Timezone,
		},
	}
}

// Push creates the event, or updates it in place when the booking
// already carries an event id. Idempotent by ExternalEventID.
func (a *Adapter) Push(ctx context.Context, ownerID string, b *domain.Booking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	svc, err := a.service(ctx, ownerID)
	if err != nil {
		return "", err
	}
	ev := a.event(b)

	if b.ExternalEventID != "" {
		updated, err := svc.Events.Update(calendarID, b.ExternalEventID, ev).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update event %s: %w", b.ExternalEventID, err)
		}
		return updated.Id, nil
	}

	created, err := svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return created.Id, nil
}

func (a *Adapter) Remove(ctx context.Context, ownerID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	svc, err := a.service(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}
