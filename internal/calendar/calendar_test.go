package calendar

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
	"github.com/godswillmedia-source/stylesync-pwa/pkg/vault"
)

var dbSeq atomic.Int64

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cal_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(gdb))
	return gdb
}

// staticTokenSource stands in for the oauth2 refresh transport.
type staticTokenSource struct {
	tok *oauth2.Token
	err error
}

func (s *staticTokenSource) Token() (*oauth2.Token, error) { return s.tok, s.err }

type tokenFixture struct {
	gdb   *gorm.DB
	creds *repository.CredentialRepo
	v     *vault.Vault
	ts    *persistingTokenSource
}

func newTokenFixture(t *testing.T, refreshed *oauth2.Token) *tokenFixture {
	t.Helper()
	gdb := testDB(t)
	creds := repository.NewCredentialRepo(gdb)
	v, err := vault.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	accessCT, err := v.Encrypt("old-access")
	require.NoError(t, err)
	refreshCT, err := v.Encrypt("old-refresh")
	require.NoError(t, err)
	require.NoError(t, creds.Upsert(context.Background(), &domain.CredentialRecord{
		OwnerID:                "owner-1",
		OwnerEmail:             "stylist@example.com",
		AccessTokenCiphertext:  accessCT,
		RefreshTokenCiphertext: refreshCT,
		TokenExpiry:            time.Now().Add(-time.Hour),
		AuthMethod:             "web",
	}))

	a := NewAdapter(creds, v, Config{})
	return &tokenFixture{
		gdb:   gdb,
		creds: creds,
		v:     v,
		ts: &persistingTokenSource{
			adapter: a,
			ownerID: "owner-1",
			base:    &staticTokenSource{tok: refreshed},
			last:    &oauth2.Token{AccessToken: "old-access", RefreshToken: "old-refresh"},
		},
	}
}

func TestTokenRefreshPersistsBeforeReturn(t *testing.T) {
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	f := newTokenFixture(t, &oauth2.Token{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		Expiry:       expiry,
	})

	tok, err := f.ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)

	// by the time Token returned, the refreshed pair is already on disk
	rec, err := f.creds.ByOwner(ctx, "owner-1")
	require.NoError(t, err)
	access, err := f.v.Decrypt(rec.AccessTokenCiphertext)
	require.NoError(t, err)
	refresh, err := f.v.Decrypt(rec.RefreshTokenCiphertext)
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
	assert.Equal(t, "new-refresh", refresh)
	assert.WithinDuration(t, expiry, rec.TokenExpiry, time.Second)

	// ciphertext columns only, never plaintext
	assert.NotContains(t, rec.AccessTokenCiphertext, "new-access")
	assert.NotContains(t, rec.RefreshTokenCiphertext, "new-refresh")
}

func TestTokenUnchangedSkipsPersist(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t, &oauth2.Token{AccessToken: "old-access", RefreshToken: "old-refresh"})

	before, err := f.creds.ByOwner(ctx, "owner-1")
	require.NoError(t, err)

	tok, err := f.ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "old-access", tok.AccessToken)

	after, err := f.creds.ByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, before.AccessTokenCiphertext, after.AccessTokenCiphertext)
	assert.Equal(t, before.RefreshTokenCiphertext, after.RefreshTokenCiphertext)
}

func TestTokenRefreshKeepsOldRefreshToken(t *testing.T) {
	// Google omits the refresh token on refresh responses; the stored
	// one must survive
	ctx := context.Background()
	f := newTokenFixture(t, &oauth2.Token{AccessToken: "new-access"})

	_, err := f.ts.Token()
	require.NoError(t, err)

	rec, err := f.creds.ByOwner(ctx, "owner-1")
	require.NoError(t, err)
	refresh, err := f.v.Decrypt(rec.RefreshTokenCiphertext)
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", refresh)
}

func TestTokenPersistFailureFailsCall(t *testing.T) {
	f := newTokenFixture(t, &oauth2.Token{AccessToken: "new-access", RefreshToken: "new-refresh"})

	require.NoError(t, f.gdb.Migrator().DropTable(&domain.CredentialRecord{}))
	_, err := f.ts.Token()
	assert.Error(t, err, "an unpersistable refresh must not be handed out")
}

func TestTokenRefreshErrorPropagates(t *testing.T) {
	f := newTokenFixture(t, nil)
	f.ts.base = &staticTokenSource{err: assert.AnError}

	_, err := f.ts.Token()
	assert.ErrorIs(t, err, assert.AnError)
}
