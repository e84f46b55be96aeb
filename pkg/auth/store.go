// Package auth holds the client's session state: the current user and bearer
// token, their persistence across restarts, and the normalization of the
// backend's several login/registration response envelopes into one canonical
// session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"grovia-client/pkg/api"
	"grovia-client/pkg/models"
	"grovia-client/pkg/normalize"
)

// ErrInvalidResponse means no known envelope shape matched the server reply.
var ErrInvalidResponse = errors.New("invalid response structure")

// ErrIncompleteSession means an envelope matched but token or user was
// missing after all fallbacks.
var ErrIncompleteSession = errors.New("login data incomplete")

// Store is the auth session store. Failures are translated into a
// human-readable message available through Message, and also returned as
// errors so callers can branch programmatically.
type Store struct {
	api    *api.Client
	creds  *Credentials
	logger *slog.Logger

	mu      sync.Mutex
	user    *models.User
	token   string
	message string
	loading bool
}

// NewStore creates an auth store using the given API client and credential
// persistence.
func NewStore(client *api.Client, creds *Credentials, logger *slog.Logger) *Store {
	return &Store{api: client, creds: creds, logger: logger}
}

// Restore initializes session state from persisted credentials at startup.
// It returns true when a session was restored.
func (s *Store) Restore(ctx context.Context) bool {
	session := s.creds.Restore(ctx)
	if session == nil {
		return false
	}

	s.mu.Lock()
	s.token = session.Token
	s.user = session.User
	s.mu.Unlock()
	return true
}

// Login authenticates with email and password. All supported envelope shapes
// yield the same canonical session; an unknown shape fails with
// ErrInvalidResponse and leaves session state untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)
	s.setMessage("")

	resp, err := s.api.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		s.setMessage(loginFailureMessage(err))
		return err
	}

	token, user, err := s.extractSession(resp.Body, email)
	if err != nil {
		if errors.Is(err, ErrIncompleteSession) {
			s.setMessage("Login data is incomplete")
		} else {
			s.setMessage("Server response format is invalid")
		}
		return err
	}

	s.setSession(token, user)
	if err := s.creds.Save(ctx, token, user); err != nil {
		s.logger.Error("failed to persist session", "error", err)
	}
	return nil
}

// RegisterInput is the registration form payload.
type RegisterInput struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates an account. When the backend includes auto-login data the
// session is established immediately; when it does not, registration still
// reports success and the returned bool is false.
func (s *Store) Register(ctx context.Context, input RegisterInput) (bool, error) {
	s.setLoading(true)
	defer s.setLoading(false)
	s.setMessage("")

	resp, err := s.api.Post(ctx, "/auth/register", input)
	if err != nil {
		s.setMessage(registerFailureMessage(err))
		return false, err
	}

	token, user, err := s.extractSession(resp.Body, input.Email)
	if err != nil {
		// Registration succeeded; the backend just sent no auto-login data.
		s.logger.Debug("registration response carried no session", "error", err)
		return false, nil
	}

	s.setSession(token, user)
	if err := s.creds.Save(ctx, token, user); err != nil {
		s.logger.Error("failed to persist session", "error", err)
	}
	return true, nil
}

// Logout invalidates the token server-side (best effort) and always clears
// the local session.
func (s *Store) Logout(ctx context.Context) {
	if _, err := s.api.Post(ctx, "/auth/logout", nil); err != nil {
		s.logger.Debug("server-side logout failed", "error", err)
	}
	s.ClearAuth(ctx)
}

// ClearAuth drops the session from memory and persisted storage.
func (s *Store) ClearAuth(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.message = ""
	s.mu.Unlock()

	s.creds.Clear(ctx)
}

// SessionInvalidated is the subscriber for the API client's 401 signal.
func (s *Store) SessionInvalidated(ctx context.Context) {
	s.mu.Lock()
	hadSession := s.token != ""
	s.mu.Unlock()
	if hadSession {
		s.logger.Info("session invalidated by server, signing out")
	}
	s.ClearAuth(ctx)
}

// CurrentUser refreshes the user record from the backend.
func (s *Store) CurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := s.api.Get(ctx, "/auth/me", nil)
	if err != nil {
		s.setMessage(failureText(err, "Failed to load profile."))
		return nil, err
	}

	obj, err := normalize.Object(resp.Body)
	if err != nil {
		return nil, ErrInvalidResponse
	}

	userValue, err := normalize.FirstMatch(obj,
		func(o map[string]any) (any, bool) {
			data, ok := normalize.AsObject(o["data"])
			if ok && o["success"] == true {
				if u, ok := normalize.AsObject(data["user"]); ok {
					return u, true
				}
				return data, true
			}
			return nil, false
		},
		func(o map[string]any) (any, bool) {
			u, ok := normalize.AsObject(o["user"])
			return u, ok
		},
		func(o map[string]any) (any, bool) {
			return o, true
		},
	)
	if err != nil {
		return nil, ErrInvalidResponse
	}

	user := userFromAny(userValue)
	if user == nil {
		return nil, ErrInvalidResponse
	}

	s.mu.Lock()
	s.user = user
	token := s.token
	s.mu.Unlock()

	if token != "" {
		if err := s.creds.Save(ctx, token, user); err != nil {
			s.logger.Error("failed to persist session", "error", err)
		}
	}
	return user, nil
}

// UpdateProfile sends profile changes to the backend and merges them into
// the local user record on success.
func (s *Store) UpdateProfile(ctx context.Context, updates map[string]any) error {
	if _, err := s.api.Put(ctx, "/auth/profile", updates); err != nil {
		s.setMessage(failureText(err, "Failed to update profile."))
		return err
	}

	s.mu.Lock()
	merged := mergeUser(s.user, updates)
	s.user = merged
	token := s.token
	s.mu.Unlock()

	if token != "" && merged != nil {
		if err := s.creds.Save(ctx, token, merged); err != nil {
			s.logger.Error("failed to persist session", "error", err)
		}
	}
	return nil
}

// ChangePassword replaces the account password.
func (s *Store) ChangePassword(ctx context.Context, current, updated string) error {
	_, err := s.api.Post(ctx, "/auth/change-password", map[string]string{
		"current_password": current,
		"new_password":     updated,
	})
	if err != nil {
		s.setMessage(failureText(err, "Failed to change password."))
	}
	return err
}

// ForgotPassword requests a password-reset email.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.api.Post(ctx, "/auth/forgot-password", map[string]string{"email": email})
	if err != nil {
		s.setMessage(failureText(err, "Failed to request password reset."))
	}
	return err
}

// ResendVerification asks the backend to resend the verification email.
func (s *Store) ResendVerification(ctx context.Context, email string) error {
	_, err := s.api.Post(ctx, "/auth/resend-verification", map[string]string{"email": email})
	if err != nil {
		s.setMessage(failureText(err, "Failed to resend verification email."))
	}
	return err
}

// GoogleSignIn exchanges a Google ID token for a session, using the same
// envelope normalization as Login.
func (s *Store) GoogleSignIn(ctx context.Context, credential string) error {
	s.setLoading(true)
	defer s.setLoading(false)
	s.setMessage("")

	resp, err := s.api.Post(ctx, "/auth/google-signin", map[string]string{"token": credential})
	if err != nil {
		s.setMessage(loginFailureMessage(err))
		return err
	}

	token, user, err := s.extractSession(resp.Body, "")
	if err != nil {
		s.setMessage("Server response format is invalid")
		return err
	}

	s.setSession(token, user)
	if err := s.creds.Save(ctx, token, user); err != nil {
		s.logger.Error("failed to persist session", "error", err)
	}
	return nil
}

// IsTokenExpired reports whether the current token's expiry claim has
// passed. A missing or undecodable token counts as expired.
func (s *Store) IsTokenExpired() bool {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	return TokenExpired(token, time.Now())
}

// RefreshAuth verifies the session is still usable; an expired token clears
// everything and returns false.
func (s *Store) RefreshAuth(ctx context.Context) bool {
	if s.IsTokenExpired() {
		s.ClearAuth(ctx)
		return false
	}
	return true
}

// IsAuthenticated reports whether both token and user are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// Session returns a snapshot of the current session.
func (s *Store) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Session{Token: s.token, User: s.user}
}

// UserName returns the display name of the signed-in user, or empty.
func (s *Store) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	if s.user.Name != "" {
		return s.user.Name
	}
	return s.user.FullName
}

// UserEmail returns the signed-in user's email, or empty.
func (s *Store) UserEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.Email
}

// UserID returns the signed-in user's id, or empty.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID.String()
}

// Message returns the last failure description, empty when the previous
// operation succeeded.
func (s *Store) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// ClearMessage resets the failure description.
func (s *Store) ClearMessage() {
	s.setMessage("")
}

// Loading reports whether an auth operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) setSession(token string, user *models.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
}

func (s *Store) setMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// sessionParts is the canonical record the envelope matchers produce.
type sessionParts struct {
	token string
	user  any
	// synthesizeUser marks the bare access_token shape, where a user record
	// may legitimately be absent and is reconstructed from the login email.
	synthesizeUser bool
}

// extractSession normalizes the four supported auth response envelopes, in
// priority order, into a token and user.
func (s *Store) extractSession(body []byte, email string) (string, *models.User, error) {
	obj, err := normalize.Object(body)
	if err != nil {
		return "", nil, err
	}

	parts, err := normalize.FirstMatch(obj,
		matchSuccessEnvelope,
		matchTokenUser,
		matchAccessToken,
		matchNestedData,
	)
	if err != nil {
		return "", nil, err
	}

	user := userFromAny(parts.user)
	if user == nil && parts.synthesizeUser && email != "" {
		name := normalize.String(obj, "name")
		if name == "" {
			name = emailLocalPart(email)
		}
		user = &models.User{Email: email, Name: name}
	}

	if parts.token == "" || user == nil {
		return "", nil, ErrIncompleteSession
	}
	return parts.token, user, nil
}

// Shape: { success: true, data: { token|access_token, user } }
func matchSuccessEnvelope(obj map[string]any) (sessionParts, bool) {
	data, ok := normalize.AsObject(obj["data"])
	if obj["success"] != true || !ok {
		return sessionParts{}, false
	}
	return sessionParts{
		token: normalize.String(data, "token", "access_token"),
		user:  data["user"],
	}, true
}

// Shape: { token, user }
func matchTokenUser(obj map[string]any) (sessionParts, bool) {
	token := normalize.String(obj, "token")
	if token == "" || obj["user"] == nil {
		return sessionParts{}, false
	}
	return sessionParts{token: token, user: obj["user"]}, true
}

// Shape: { access_token, user? }, where user may be absent and gets
// synthesized.
func matchAccessToken(obj map[string]any) (sessionParts, bool) {
	token := normalize.String(obj, "access_token")
	if token == "" {
		return sessionParts{}, false
	}
	return sessionParts{token: token, user: obj["user"], synthesizeUser: true}, true
}

// Shape: { data: { token, user } } without a success flag.
func matchNestedData(obj map[string]any) (sessionParts, bool) {
	data, ok := normalize.AsObject(obj["data"])
	if !ok {
		return sessionParts{}, false
	}
	token := normalize.String(data, "token")
	if token == "" {
		return sessionParts{}, false
	}
	return sessionParts{token: token, user: data["user"]}, true
}

func userFromAny(v any) *models.User {
	obj, ok := normalize.AsObject(v)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	user := new(models.User)
	if err := json.Unmarshal(raw, user); err != nil {
		return nil
	}
	return user
}

func mergeUser(user *models.User, updates map[string]any) *models.User {
	if user == nil {
		return userFromAny(updates)
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return user
	}
	var current map[string]any
	if err := json.Unmarshal(raw, &current); err != nil {
		return user
	}
	for k, v := range updates {
		current[k] = v
	}
	merged := userFromAny(current)
	if merged == nil {
		return user
	}
	return merged
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func loginFailureMessage(err error) string {
	switch api.StatusOf(err) {
	case 401:
		return "Incorrect email or password"
	case 429:
		return "Too many login attempts. Try again later."
	default:
		return failureText(err, "Login failed. Check your internet connection.")
	}
}

func registerFailureMessage(err error) string {
	switch api.StatusOf(err) {
	case 400:
		return failureText(err, "Registration data is invalid")
	case 409:
		return "This email is already registered"
	case 422:
		return "Data format is not valid"
	default:
		return failureText(err, "Registration failed. Please try again.")
	}
}

// failureText prefers the backend-provided description and falls back to a
// generic message.
func failureText(err error, fallback string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if text := apiErr.Text(); text != "" {
			return text
		}
	}
	return fallback
}
