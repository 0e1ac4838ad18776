// Package auth signs users in with Google and gates the chat pages behind a database-backed browser
// session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Store persists users and their browser sessions.
type Store interface {
	UpsertUser(ctx context.Context, user models.User) (models.User, error)
	User(ctx context.Context, id string) (models.User, error)
	AddSession(ctx context.Context, session models.Session) error
	Session(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

const (
	// SessionCookie holds the session token of a signed-in browser.
	SessionCookie = "streamchat_session"

	stateCookie    = "streamchat_oauth_state"
	callbackCookie = "streamchat_callback"

	// DefaultSessionMaxAge is how long a session stays valid after sign-in.
	DefaultSessionMaxAge = 30 * 24 * time.Hour

	// GoogleUserInfoURL is the OpenID Connect userinfo endpoint of Google.
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	stateMaxAge = 10 * time.Minute
)

// ErrStateMismatch is returned by the callback when the state parameter does not match the cookie
// set when the flow started.
var ErrStateMismatch = errors.New("oauth state mismatch")

// Config configures Google sign-in.
type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is the absolute URL of the callback route registered with Google.
	RedirectURL string
	// BaseURL is the public origin of the server, e.g. https://chat.example.com.
	BaseURL string

	SessionMaxAge time.Duration

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// Google implements the sign-in routes and the session gate.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	baseURL     string
	maxAge      time.Duration
	secure      bool

	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type userContextKey struct{}

// NewGoogle creates the Google sign-in handlers backed by store.
func NewGoogle(cfg Config, store Store, logger *slog.Logger) Google {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}
	maxAge := cfg.SessionMaxAge
	if maxAge == 0 {
		maxAge = DefaultSessionMaxAge
	}

	return Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		baseURL:     cfg.BaseURL,
		maxAge:      maxAge,
		secure:      isHTTPS(cfg.BaseURL),
		store:       store,
		logger:      logger.With(slog.String("module", "auth")),
		now:         time.Now,
	}
}

// HandleSignIn starts the OAuth flow. The optional callbackUrl query parameter is where the browser
// lands after a successful sign-in; it is sanitised with SafeRedirect.
func (g Google) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	g.setShortCookie(w, stateCookie, state)

	callback := r.URL.Query().Get("callbackUrl")
	if callback == "" {
		callback = "/chat"
	}
	g.setShortCookie(w, callbackCookie, SafeRedirect(callback, g.baseURL))

	http.Redirect(w, r, g.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the OAuth flow: it checks the state, exchanges the code, links the Google
// account to a user and opens a session.
func (g Google) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if e := r.URL.Query().Get("error"); e != "" {
		g.logger.Warn("Google sign-in refused", slog.String("error", e))
		http.Redirect(w, r, "/auth/login?error="+url.QueryEscape(e), http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		g.logger.Warn("Invalid sign-in callback", slog.String(errLoggerKey, ErrStateMismatch.Error()))
		http.Error(w, ErrStateMismatch.Error(), http.StatusBadRequest)
		return
	}
	g.clearCookie(w, stateCookie)

	user, err := g.signIn(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		g.logger.Error("Failed to sign in", slog.String(errLoggerKey, err.Error()))
		http.Redirect(w, r, "/auth/login?error=Callback", http.StatusFound)
		return
	}

	session := models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: g.now().Add(g.maxAge),
	}
	if err := g.store.AddSession(r.Context(), session); err != nil {
		g.logger.Error("Failed to add session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(g.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})

	target := g.baseURL
	if cb, err := r.Cookie(callbackCookie); err == nil {
		target = SafeRedirect(cb.Value, g.baseURL)
	}
	g.clearCookie(w, callbackCookie)

	g.logger.Info("Signed in", slog.String("userID", user.ID))
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleSignOut deletes the current session and sends the browser to the landing page.
func (g Google) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := g.store.DeleteSession(r.Context(), c.Value); err != nil {
			g.logger.Error("Failed to delete session", slog.String(errLoggerKey, err.Error()))
		}
	}
	g.clearCookie(w, SessionCookie)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (g Google) signIn(ctx context.Context, code string) (models.User, error) {
	if code == "" {
		return models.User{}, fmt.Errorf("missing authorization code")
	}

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.User{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.User{}, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Subject == "" {
		return models.User{}, fmt.Errorf("userinfo has no subject")
	}

	user, err := g.store.UpsertUser(ctx, models.User{
		ID:            uuid.NewString(),
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		GoogleSubject: info.Subject,
		CreatedAt:     g.now(),
	})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (g Google) setShortCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g Google) clearCookie(w http.ResponseWriter, name string) {
	path := "/auth"
	if name == SessionCookie {
		path = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
