package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is wrapped by every error caused by a bad request body.
var ErrValidation = errors.New("validation failed")

type errorResponse struct {
	Error string `json:"error"`
}

type modelOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type modelsResponse struct {
	Models  []modelOption `json:"models"`
	Default string        `json:"default"`
}

type renderRequest struct {
	Content string `json:"content"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

// validationError carries a client-facing message and matches ErrValidation.
type validationError struct {
	msg   string
	cause error
}

func (e validationError) Error() string { return e.msg }

func (e validationError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.cause}
}

func invalidRequest(msg string, cause error) error {
	return validationError{msg: msg, cause: cause}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// validateRequest checks payload against its validate tags.
func validateRequest(payload any) error {
	err := validatorInstance().Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequest("Invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()))
	}
	return invalidRequest(strings.Join(msgs, "; "), err)
}

// respondError maps err to a status code and writes it as a JSON error body.
func (m Main) respondError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "Internal server error"
	if errors.Is(err, ErrValidation) {
		code = http.StatusBadRequest
		msg = err.Error()
	}

	m.logger.Warn("Responding with error",
		slog.Int("status", code),
		slog.String(errLoggerKey, err.Error()))
	m.respondJSON(w, code, errorResponse{Error: msg})
}

func (m Main) respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("Failed to marshal response", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		m.logger.Warn("Failed to write response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleModels lists the selectable models and the one used when a request names none.
func (m Main) HandleModels(w http.ResponseWriter, _ *http.Request) {
	ms := m.catalog.Models()
	res := modelsResponse{
		Models:  make([]modelOption, len(ms)),
		Default: m.catalog.Default,
	}
	for i, model := range ms {
		res.Models[i] = modelOption{Value: model.Name, Label: model.Label}
	}
	m.respondJSON(w, http.StatusOK, res)
}

// HandleRender renders a finished assistant message to HTML, with thinking blocks collapsed.
func (m Main) HandleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.respondError(w, invalidRequest("Invalid request body", err))
		return
	}

	html, err := m.renderer.Message(req.Content)
	if err != nil {
		m.respondError(w, fmt.Errorf("failed to render message: %w", err))
		return
	}
	m.respondJSON(w, http.StatusOK, renderResponse{HTML: string(html)})
}

// HandleHealth reports liveness.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	m.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
