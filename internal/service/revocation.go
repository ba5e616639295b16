package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type RevocationStore interface {
	RevokeToken(ctx context.Context, tokenHash string, expiresAt, now time.Time) error
	IsTokenRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, time.Time, error)
	PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error)
	SessionCutoff(ctx context.Context, userID int64, now time.Time) (revokedBefore, expiresAt time.Time, found bool, err error)
	PurgeSessionCutoffs(ctx context.Context, now time.Time) (int64, error)
}

// RevocationList is the set of logged-out tokens plus the per-account session
// cutoffs written when an account is deleted. Entries are persisted so they
// survive restarts, and positive lookups are cached in memory until the
// token would have expired anyway.
type RevocationList struct {
	store RevocationStore
	now   func() time.Time

	mu      sync.RWMutex
	cache   map[string]time.Time
	cutoffs map[int64]sessionCutoff
}

type sessionCutoff struct {
	revokedBefore time.Time
	expiresAt     time.Time
}

func NewRevocationList(store RevocationStore) *RevocationList {
	return &RevocationList{
		store:   store,
		now:     time.Now,
		cache:   make(map[string]time.Time),
		cutoffs: make(map[int64]sessionCutoff),
	}
}

// Revoke records token until expiresAt. Tokens that are already past
// expiresAt are not recorded.
func (l *RevocationList) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	now := l.now()
	if !expiresAt.After(now) {
		return nil
	}

	hash := HashToken(token)
	l.remember(hash, expiresAt)
	return l.store.RevokeToken(ctx, hash, expiresAt, now)
}

func (l *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)
	now := l.now()

	l.mu.RLock()
	expiresAt, ok := l.cache[hash]
	l.mu.RUnlock()
	if ok {
		if expiresAt.After(now) {
			return true, nil
		}
		l.forget(hash)
	}

	revoked, expiresAt, err := l.store.IsTokenRevoked(ctx, hash, now)
	if err != nil {
		return false, err
	}
	if revoked {
		l.remember(hash, expiresAt)
	}
	return revoked, nil
}

// IsSessionRevoked reports whether a token of userID issued at issuedAt falls
// under a session cutoff. A token issued in the same second as the cutoff is
// revoked.
func (l *RevocationList) IsSessionRevoked(ctx context.Context, userID int64, issuedAt time.Time) (bool, error) {
	now := l.now()

	l.mu.RLock()
	cutoff, ok := l.cutoffs[userID]
	l.mu.RUnlock()
	if ok && !cutoff.expiresAt.After(now) {
		l.mu.Lock()
		delete(l.cutoffs, userID)
		l.mu.Unlock()
		ok = false
	}

	if !ok {
		revokedBefore, expiresAt, found, err := l.store.SessionCutoff(ctx, userID, now)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		cutoff = sessionCutoff{revokedBefore: revokedBefore, expiresAt: expiresAt}
		l.rememberCutoff(userID, cutoff)
	}

	return !issuedAt.After(cutoff.revokedBefore), nil
}

// Sweep drops expired entries from the cache and the store.
func (l *RevocationList) Sweep(ctx context.Context) (int64, error) {
	now := l.now()

	l.mu.Lock()
	for hash, expiresAt := range l.cache {
		if !expiresAt.After(now) {
			delete(l.cache, hash)
		}
	}
	for userID, cutoff := range l.cutoffs {
		if !cutoff.expiresAt.After(now) {
			delete(l.cutoffs, userID)
		}
	}
	l.mu.Unlock()

	tokens, err := l.store.PurgeRevokedTokens(ctx, now)
	if err != nil {
		return 0, err
	}
	cutoffs, err := l.store.PurgeSessionCutoffs(ctx, now)
	if err != nil {
		return tokens, err
	}
	return tokens + cutoffs, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (l *RevocationList) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := l.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("revocation sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				slog.Info("revocation sweep", "purged", purged)
			}
		}
	}
}

func (l *RevocationList) remember(hash string, expiresAt time.Time) {
	l.mu.Lock()
	l.cache[hash] = expiresAt
	l.mu.Unlock()
}

func (l *RevocationList) rememberCutoff(userID int64, cutoff sessionCutoff) {
	l.mu.Lock()
	l.cutoffs[userID] = cutoff
	l.mu.Unlock()
}

func (l *RevocationList) forget(hash string) {
	l.mu.Lock()
	delete(l.cache, hash)
	l.mu.Unlock()
}
