package auth

import (
	"context"
	"log/slog"
	"sync"

	"grovia-client/pkg/models"
	"grovia-client/pkg/storage"
)

const (
	keyToken = "authToken"
	keyUser  = "authUser"
)

// Credentials is the persisted half of the session. It caches the bearer
// token in memory so the API client can read it on every request, and mirrors
// token and user into the key-value store so sessions survive restarts. The
// user record is sealed before it is written; the token is stored plain, as
// it is already an opaque credential with its own expiry.
type Credentials struct {
	storage *storage.Store
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewCredentials creates a Credentials bound to the given store.
func NewCredentials(store *storage.Store, logger *slog.Logger) *Credentials {
	return &Credentials{storage: store, logger: logger}
}

// Token returns the current bearer token, or empty when signed out. It
// satisfies the API client's token source.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Save persists a new session.
func (c *Credentials) Save(ctx context.Context, token string, user *models.User) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := c.storage.Set(ctx, keyToken, token); err != nil {
		return err
	}
	return c.storage.SetEncrypted(ctx, keyUser, user)
}

// Restore loads the persisted session, if any. A corrupt or unreadable
// record is treated as no session and the stored credentials are cleared.
func (c *Credentials) Restore(ctx context.Context) *models.Session {
	var token string
	ok, err := c.storage.Get(ctx, keyToken, &token)
	if err != nil || !ok || token == "" {
		if err != nil {
			c.logger.Debug("failed to restore token, clearing stored session", "error", err)
			c.Clear(ctx)
		}
		return nil
	}

	user := new(models.User)
	ok, err = c.storage.Get(ctx, keyUser, user)
	if err != nil || !ok {
		if err != nil {
			c.logger.Debug("failed to restore user, clearing stored session", "error", err)
		}
		c.Clear(ctx)
		return nil
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return &models.Session{Token: token, User: user}
}

// Clear drops the in-memory token and removes the persisted session.
func (c *Credentials) Clear(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if err := c.storage.Delete(ctx, keyToken); err != nil {
		c.logger.Debug("failed to delete stored token", "error", err)
	}
	if err := c.storage.Delete(ctx, keyUser); err != nil {
		c.logger.Debug("failed to delete stored user", "error", err)
	}
}
