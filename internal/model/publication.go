package model

import "time"

// NationalJurisdiction marks records whose source cannot name a state
const NationalJurisdiction = "BR"

// Publication is the canonical, source-agnostic record of one gazette citation
type Publication struct {
	AttorneyName string    `json:"attorney_name"`         // Search key that produced this record
	Title        string    `json:"title"`                 // Publication title
	Content      string    `json:"content"`               // Sanitized body, capped
	PublishedAt  time.Time `json:"published_at"`          // Calendar date (UTC midnight), never zero
	Source       string    `json:"source"`                // Human-readable gazette label
	Jurisdiction string    `json:"jurisdiction"`          // State code or NationalJurisdiction
	Court        string    `json:"court,omitempty"`       // Court or venue
	CaseNumber   string    `json:"case_number,omitempty"` // Free text, may follow the unified pattern
	Kind         string    `json:"kind,omitempty"`        // Publication type (intimação, edital, ...)
	URL          string    `json:"url,omitempty"`         // Link back to the source
}

// Flags are the per-row defaults applied when publications are persisted
type Flags struct {
	Read      bool `json:"read"`
	Important bool `json:"important"`
	Sealed    bool `json:"sealed"`
}

// DefaultFlags returns unread, not important, not under seal
func DefaultFlags() Flags {
	return Flags{}
}

// CachedCredential is a bearer token and the instant it stops being valid
type CachedCredential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the credential can still be used at now.
// A zero ExpiresAt means the backend keeps the token without expiry.
func (c CachedCredential) Valid(now time.Time) bool {
	return c.Token != "" && (c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt))
}
