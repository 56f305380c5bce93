// Package web exposes the link registry over HTTP: a small JSON API for list
// views and the /{shortCode} redirect entry point.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"clicktracker/internal/domain"
	"clicktracker/internal/registry"
)

// LinkRegistry is the subset of the registry the HTTP layer needs.
type LinkRegistry interface {
	Create(ctx context.Context, req registry.CreateRequest) (domain.Link, error)
	Resolve(code string) (domain.Link, bool)
	RecordClick(ctx context.Context, code string, in registry.ClickInput) (registry.ClickResult, error)
	Delete(ctx context.Context, id string) error
	List() []domain.Link
	Now() time.Time
}

// Handler serves the HTTP routes.
type Handler struct {
	reg             LinkRegistry
	defaultValidity int
	log             logrus.FieldLogger
}

// NewHandler creates a handler. defaultValidity is used when a create
// request omits validityMinutes.
func NewHandler(reg LinkRegistry, defaultValidity int, logger logrus.FieldLogger) *Handler {
	return &Handler{
		reg:             reg,
		defaultValidity: defaultValidity,
		log:             logger.WithField("component", "web_handler"),
	}
}

// CreateLinkRequest is the POST /api/links payload.
type CreateLinkRequest struct {
	OriginalURL     string `json:"originalUrl"`
	CustomShortCode string `json:"customShortCode,omitempty"`
	ValidityMinutes *int   `json:"validityMinutes,omitempty"`
}

// TrackClickRequest is the POST /api/links/{shortCode}/clicks payload.
type TrackClickRequest struct {
	Source string `json:"source,omitempty"`
}

// LinkResponse is a link plus values derived at read time.
type LinkResponse struct {
	domain.Link
	IsExpired     bool   `json:"isExpired"`
	TimeRemaining string `json:"timeRemaining"`
	ClickCount    int    `json:"clickCount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) toResponse(link domain.Link) LinkResponse {
	now := h.reg.Now()
	return LinkResponse{
		Link:          link,
		IsExpired:     link.IsExpired(now),
		TimeRemaining: link.TimeRemaining(now),
		ClickCount:    len(link.Clicks),
	}
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	validity := h.defaultValidity
	if req.ValidityMinutes != nil {
		validity = *req.ValidityMinutes
	}

	link, err := h.reg.Create(r.Context(), registry.CreateRequest{
		OriginalURL:     req.OriginalURL,
		CustomShortCode: req.CustomShortCode,
		ValidityMinutes: validity,
	})
	var pe *registry.PersistenceError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, h.toResponse(link))
	case registry.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "short code already exists, please choose a different one")
	case errors.Is(err, registry.ErrCodeSpaceExhausted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &pe):
		h.log.WithError(err).Error("Link created but not persisted")
		writeError(w, http.StatusInternalServerError, "link could not be saved")
	default:
		h.log.WithError(err).Error("Failed to create link")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ListLinks handles GET /api/links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links := h.reg.List()
	out := make([]LinkResponse, len(links))
	for i, link := range links {
		out[i] = h.toResponse(link)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLink handles GET /api/links/{shortCode}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, ok := h.reg.Resolve(chi.URLParam(r, "shortCode"))
	if !ok {
		writeError(w, http.StatusNotFound, "link not found")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// TrackClick handles POST /api/links/{shortCode}/clicks, used when a link is
// opened from a list view rather than through its short URL.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req TrackClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = registry.SourceInterface
	}

	result, err := h.reg.RecordClick(r.Context(), chi.URLParam(r, "shortCode"), registry.ClickInput{
		Source:    req.Source,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	})
	if err != nil {
		h.log.WithError(err).Error("Click not persisted")
	}
	writeClickResult(w, result, func() { w.WriteHeader(http.StatusNoContent) })
}

// DeleteLink handles DELETE /api/links/{id}. Unknown ids still return 204.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.log.WithError(err).Error("Failed to delete link")
		writeError(w, http.StatusInternalServerError, "link could not be deleted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redirect handles GET /{shortCode}: it records a direct click and sends the
// client on to the original URL.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	link, ok := h.reg.Resolve(code)
	if !ok {
		writeError(w, http.StatusNotFound, "the short link doesn't exist or has been removed")
		return
	}
	if link.IsExpired(h.reg.Now()) {
		writeError(w, http.StatusGone, "this short link has expired")
		return
	}

	result, err := h.reg.RecordClick(r.Context(), code, registry.ClickInput{
		Source:    registry.SourceDirect,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	})
	if err != nil {
		// The click is kept in memory; the redirect should still happen.
		h.log.WithError(err).WithField("short_code", code).Error("Click not persisted")
	}
	writeClickResult(w, result, func() {
		http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	})
}

// writeClickResult covers the race where a link expires or is deleted
// between Resolve and RecordClick.
func writeClickResult(w http.ResponseWriter, result registry.ClickResult, onRecorded func()) {
	switch result {
	case registry.ClickRecorded:
		onRecorded()
	case registry.ClickExpired:
		writeError(w, http.StatusGone, "this short link has expired")
	default:
		writeError(w, http.StatusNotFound, "the short link doesn't exist or has been removed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
