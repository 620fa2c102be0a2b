package vespa

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/internal/storage"
)

// Keys under which the credential pair is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Session holds the access/refresh token pair. The two tokens are always
// set and cleared together, in memory and in the backing store.
type Session struct {
	mu             sync.RWMutex
	store          storage.CredentialStore
	accessToken    string
	refreshToken   string
	refreshPending bool
}

// NewSession loads any persisted credentials from store. A nil store keeps
// the credentials in memory only.
func NewSession(ctx context.Context, store storage.CredentialStore) (*Session, error) {
	s := &Session{store: store}
	if store == nil {
		return s, nil
	}

	access, _, err := store.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	}
	refresh, _, err := store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	s.accessToken = access
	s.refreshToken = refresh
	return s, nil
}

// SetCredentials replaces both tokens. A persistence failure is logged and
// the in-memory pair is kept.
func (s *Session) SetCredentials(ctx context.Context, access, refresh string) {
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	err := s.store.SetAll(ctx, map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist credentials")
	}
}

// ClearCredentials removes both tokens. Safe to call when already cleared.
func (s *Session) ClearCredentials(ctx context.Context) {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, KeyAccessToken, KeyRefreshToken); err != nil {
		log.Warn().Err(err).Msg("failed to delete persisted credentials")
	}
}

// Credentials returns the current token pair. Either may be empty.
func (s *Session) Credentials() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.refreshPending:
		return StateRefreshPending
	case s.accessToken != "" || s.refreshToken != "":
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

func (s *Session) setRefreshPending(pending bool) {
	s.mu.Lock()
	s.refreshPending = pending
	s.mu.Unlock()
}
