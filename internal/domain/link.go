package domain

import (
	"fmt"
	"time"
)

// Link represents a shortened URL together with its click ledger.
type Link struct {
	// ID is an opaque identifier assigned at creation.
	ID string `json:"id"`

	// OriginalURL is the absolute URL the short code redirects to.
	OriginalURL string `json:"originalUrl"`

	// ShortCode is the token used in the short URL path. Unique per store.
	ShortCode string `json:"shortCode"`

	// ShortURL is ShortCode joined to the base URL at creation time.
	ShortURL string `json:"shortUrl"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	// Clicks is append-only and kept in chronological order.
	Clicks []Click `json:"clicks"`
}

// Click is a single recorded access to a short link.
type Click struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

// IsExpired reports whether the link is past its validity window at now.
// Expiry is never stored; it is always derived from ExpiresAt.
func (l Link) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// TimeRemaining renders the remaining validity the way list views show it.
func (l Link) TimeRemaining(now time.Time) string {
	if l.IsExpired(now) {
		return "Expired"
	}
	diff := l.ExpiresAt.Sub(now)
	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm remaining", hours, minutes)
	}
	return fmt.Sprintf("%dm remaining", minutes)
}

// Clone returns a copy that shares no click storage with l.
func (l Link) Clone() Link {
	c := l
	c.Clicks = make([]Click, len(l.Clicks))
	copy(c.Clicks, l.Clicks)
	return c
}
