// Package registry holds the authoritative collection of short links and
// their click ledgers. The collection lives in memory and is written to the
// storage repository in full after every mutation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clicktracker/internal/domain"
	"clicktracker/internal/shortcode"
	"clicktracker/internal/storage"
)

const (
	// DefaultMaxAttempts bounds code generation retries on collision.
	DefaultMaxAttempts = 10

	// SourceDirect tags clicks that arrive through the redirect route.
	SourceDirect = "direct"
	// SourceInterface tags clicks triggered from a list view.
	SourceInterface = "interface"
)

// Largest validity that still fits in a time.Duration.
const maxRepresentableMinutes = math.MaxInt64 / int64(time.Minute)

// Config tunes registry behaviour.
type Config struct {
	// BaseURL is the origin short URLs are built on, e.g. http://localhost:8080.
	BaseURL string
	// MaxValidityMinutes caps the validity window. Zero disables the cap.
	MaxValidityMinutes int
	// MaxAttempts bounds generated-code retries. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	OriginalURL     string
	CustomShortCode string
	ValidityMinutes int
}

// ClickInput describes an access being recorded.
type ClickInput struct {
	Source    string
	UserAgent string
	Referrer  string
}

// ClickResult is the outcome of RecordClick.
type ClickResult int

const (
	ClickNotFound ClickResult = iota
	ClickExpired
	ClickRecorded
)

// OK reports whether a click was appended.
func (c ClickResult) OK() bool {
	return c == ClickRecorded
}

func (c ClickResult) String() string {
	switch c {
	case ClickRecorded:
		return "recorded"
	case ClickExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock replaces time.Now. Tests use it to move past expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithGenerator replaces the random code generator.
func WithGenerator(g shortcode.Generator) Option {
	return func(r *Registry) { r.gen = g }
}

// Registry is safe for concurrent use. Each mutation, including its durable
// write, runs under one lock, so effects are observed in call order.
type Registry struct {
	repo        storage.Repository
	gen         shortcode.Generator
	now         func() time.Time
	log         logrus.FieldLogger
	baseURL     string
	maxValidity int
	maxAttempts int

	mu     sync.RWMutex
	links  []*domain.Link // newest first
	byCode map[string]*domain.Link
}

// New creates an empty registry backed by repo. Call Load before serving.
func New(repo storage.Repository, cfg Config, logger logrus.FieldLogger, opts ...Option) *Registry {
	r := &Registry{
		repo:        repo,
		gen:         shortcode.NewRandomGenerator(shortcode.DefaultLength),
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.WithField("component", "registry"),
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		maxValidity: cfg.MaxValidityMinutes,
		maxAttempts: cfg.MaxAttempts,
		byCode:      make(map[string]*domain.Link),
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Load replaces the in-memory state with the repository snapshot.
func (r *Registry) Load(ctx context.Context) error {
	links, err := r.repo.LoadLinks(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.links = make([]*domain.Link, 0, len(links))
	r.byCode = make(map[string]*domain.Link, len(links))
	for i := range links {
		link := links[i].Clone()
		stored := link.ShortCode
		link.ShortCode = normalizeLookup(stored)
		if link.ShortCode == "" {
			r.log.WithField("link_id", link.ID).Warn("Skipping stored link without a short code")
			continue
		}
		if _, err := shortcode.NormalizeCustom(link.ShortCode); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"short_code": stored,
				"link_id":    link.ID,
			}).Warn("Stored link has a short code outside the allowed format")
		}
		if _, dup := r.byCode[link.ShortCode]; dup {
			r.log.WithFields(logrus.Fields{
				"short_code": link.ShortCode,
				"link_id":    link.ID,
			}).Warn("Skipping stored link with duplicate short code")
			continue
		}
		r.links = append(r.links, &link)
		r.byCode[link.ShortCode] = &link
	}

	r.log.WithField("link_count", len(r.links)).Info("Registry loaded")
	return nil
}

// Create validates req, assigns a short code and stores the new link.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (domain.Link, error) {
	originalURL, err := validateURL(req.OriginalURL)
	if err != nil {
		return domain.Link{}, err
	}
	if err := r.validateValidity(req.ValidityMinutes); err != nil {
		return domain.Link{}, err
	}

	var custom string
	if strings.TrimSpace(req.CustomShortCode) != "" {
		custom, err = shortcode.NormalizeCustom(req.CustomShortCode)
		if err != nil {
			return domain.Link{}, &ValidationError{Field: "customShortCode", Reason: err.Error(), Err: err}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := custom
	if code != "" {
		if _, exists := r.byCode[code]; exists {
			r.log.WithField("short_code", code).Info("Rejected duplicate custom short code")
			return domain.Link{}, fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
	} else {
		code, err = r.generateCode()
		if err != nil {
			return domain.Link{}, err
		}
	}

	createdAt := r.now()
	link := &domain.Link{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		ShortCode:   code,
		ShortURL:    r.baseURL + "/" + code,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(time.Duration(req.ValidityMinutes) * time.Minute),
		Clicks:      []domain.Click{},
	}
	r.links = append([]*domain.Link{link}, r.links...)
	r.byCode[code] = link

	r.log.WithFields(logrus.Fields{
		"link_id":    link.ID,
		"short_code": code,
		"custom":     custom != "",
		"expires_at": link.ExpiresAt,
	}).Info("Link created")

	return link.Clone(), r.persist(ctx, "create")
}

// Resolve looks a link up by short code without checking expiry.
func (r *Registry) Resolve(code string) (domain.Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byCode[normalizeLookup(code)]
	if !ok {
		return domain.Link{}, false
	}
	return link.Clone(), true
}

// RecordClick appends a click to an active link. Missing and expired links
// are reported through the result and left untouched; the error is only set
// when the durable write fails.
func (r *Registry) RecordClick(ctx context.Context, code string, in ClickInput) (ClickResult, error) {
	code = normalizeLookup(code)
	log := r.log.WithField("short_code", code)

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byCode[code]
	if !ok {
		log.Debug("Click for unknown short code")
		return ClickNotFound, nil
	}

	now := r.now()
	if link.IsExpired(now) {
		log.Debug("Click for expired short code")
		return ClickExpired, nil
	}

	source := in.Source
	if source == "" {
		source = SourceDirect
	}
	link.Clicks = append(link.Clicks, domain.Click{
		ID:        uuid.NewString(),
		Timestamp: now,
		Source:    source,
		UserAgent: in.UserAgent,
		Referrer:  in.Referrer,
	})

	log.WithFields(logrus.Fields{
		"source":      source,
		"click_count": len(link.Clicks),
	}).Debug("Click recorded")

	return ClickRecorded, r.persist(ctx, "record click")
}

// Delete removes the link with the given id. Unknown ids are a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, link := range r.links {
		if link.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.log.WithField("link_id", id).Debug("Delete of unknown link ignored")
		return nil
	}

	link := r.links[idx]
	delete(r.byCode, link.ShortCode)
	r.links = append(r.links[:idx], r.links[idx+1:]...)

	r.log.WithFields(logrus.Fields{
		"link_id":    id,
		"short_code": link.ShortCode,
	}).Info("Link deleted")

	return r.persist(ctx, "delete")
}

// List returns a snapshot of all links, newest first.
func (r *Registry) List() []domain.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Link, len(r.links))
	for i, link := range r.links {
		out[i] = link.Clone()
	}
	return out
}

// generateCode must be called with mu held.
func (r *Registry) generateCode() (string, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code, err := r.gen.Generate()
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		if _, exists := r.byCode[code]; !exists {
			return code, nil
		}
		r.log.WithFields(logrus.Fields{
			"short_code": code,
			"attempt":    attempt,
		}).Warn("Generated short code collided, retrying")
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, r.maxAttempts)
}

// persist must be called with mu held.
func (r *Registry) persist(ctx context.Context, op string) error {
	snapshot := make([]domain.Link, len(r.links))
	for i, link := range r.links {
		snapshot[i] = link.Clone()
	}
	if err := r.repo.SaveLinks(ctx, snapshot); err != nil {
		r.log.WithError(err).WithField("op", op).Error("Failed to persist registry")
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (r *Registry) validateValidity(minutes int) error {
	if minutes <= 0 {
		return &ValidationError{Field: "validityMinutes", Reason: "must be a positive number of minutes"}
	}
	if r.maxValidity > 0 && minutes > r.maxValidity {
		return &ValidationError{Field: "validityMinutes", Reason: fmt.Sprintf("must not exceed %d minutes", r.maxValidity)}
	}
	if int64(minutes) > maxRepresentableMinutes {
		return &ValidationError{Field: "validityMinutes", Reason: "is too large"}
	}
	return nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "originalUrl", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "originalUrl", Reason: "is not a valid URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: "originalUrl", Reason: "must start with http:// or https://"}
	}
	if u.Hostname() == "" {
		return "", &ValidationError{Field: "originalUrl", Reason: "must include a host"}
	}
	return raw, nil
}

func normalizeLookup(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
