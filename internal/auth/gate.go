package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
)

const errLoggerKey = "err"

// Routes that are always reachable, whether signed in or not.
var ungated = []string{"/static/", "/healthz", "/metrics", "/auth/google", "/auth/callback", "/auth/logout"}

// Gate enforces the routing rules for signed-in and anonymous browsers:
//   - "/", "/auth/login" and "/auth/register" are public;
//   - a signed-in user visiting the login or register page is sent to /chat;
//   - an anonymous request to /api/ gets a 401 JSON error;
//   - any other anonymous request is sent to /auth/login.
//
// The signed-in user is available to later handlers through UserFromContext.
func (g Google) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		for _, p := range ungated {
			if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
				next.ServeHTTP(w, r)
				return
			}
		}

		user, signedIn := g.currentUser(r)
		if signedIn {
			r = r.WithContext(context.WithValue(r.Context(), userContextKey{}, user))
		}

		isAuthRoute := path == "/auth/login" || path == "/auth/register"
		isPublic := path == "/" || isAuthRoute

		switch {
		case signedIn && isAuthRoute:
			http.Redirect(w, r, "/chat", http.StatusFound)
		case !signedIn && strings.HasPrefix(path, "/api/"):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
		case !signedIn && !isPublic:
			http.Redirect(w, r, "/auth/login", http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (g Google) currentUser(r *http.Request) (models.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return models.User{}, false
	}

	session, err := g.store.Session(r.Context(), c.Value)
	if err != nil {
		g.logger.Debug("Session lookup failed", slog.String(errLoggerKey, err.Error()))
		return models.User{}, false
	}
	if session.Expired(g.now()) {
		return models.User{}, false
	}

	user, err := g.store.User(r.Context(), session.UserID)
	if err != nil {
		g.logger.Warn("Session without user",
			slog.String("userID", session.UserID),
			slog.String(errLoggerKey, err.Error()))
		return models.User{}, false
	}
	return user, true
}

// UserFromContext returns the user Gate attached to the request context.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(models.User)
	return u, ok
}
