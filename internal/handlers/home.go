package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/stream-chat-ui/internal/auth"
	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
)

type pageData struct {
	Title       string
	User        *models.User
	AuthEnabled bool

	Models       []models.Model
	DefaultModel string

	// Register switches the sign-in page to its sign-up wording.
	Register bool
	Error    string
}

func (m Main) pageData(r *http.Request) pageData {
	data := pageData{
		AuthEnabled:  m.authEnabled,
		Models:       m.catalog.Models(),
		DefaultModel: m.catalog.Default,
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		data.User = &u
	}
	return data
}

func (m Main) renderPage(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		m.logger.Error("Failed to execute template",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleHome renders the landing page.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	m.renderPage(w, "home.html", m.pageData(r))
}

// HandleChatPage renders the chat interface. Conversations live in the browser only.
func (m Main) HandleChatPage(w http.ResponseWriter, r *http.Request) {
	data := m.pageData(r)
	data.Title = "Chat"
	m.renderPage(w, "chat.html", data)
}

// HandleLogin renders the sign-in page. Without authentication configured it goes straight to the
// chat.
func (m Main) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !m.authEnabled {
		http.Redirect(w, r, "/chat", http.StatusFound)
		return
	}
	data := m.pageData(r)
	data.Title = "Sign in"
	data.Error = r.URL.Query().Get("error")
	m.renderPage(w, "login.html", data)
}

// HandleRegister renders the sign-up variant of the sign-in page.
func (m Main) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !m.authEnabled {
		http.Redirect(w, r, "/chat", http.StatusFound)
		return
	}
	data := m.pageData(r)
	data.Title = "Sign up"
	data.Register = true
	data.Error = r.URL.Query().Get("error")
	m.renderPage(w, "login.html", data)
}
