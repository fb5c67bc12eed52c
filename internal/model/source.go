package model

import "time"

// SourceScope distinguishes national services from state tribunals
type SourceScope string

const (
	ScopeNational SourceScope = "national" // Queried once, filter passed as a parameter
	ScopeRegional SourceScope = "regional" // One tribunal, fixed jurisdiction
)

// SourceDescriptor is the static configuration of one adapter
type SourceDescriptor struct {
	ID           string        `json:"id" yaml:"id"`
	Jurisdiction string        `json:"jurisdiction" yaml:"jurisdiction"`
	Name         string        `json:"name" yaml:"name"`
	Scope        SourceScope   `json:"scope" yaml:"scope"`
	Schema       string        `json:"schema" yaml:"schema"` // Response-shape family (pje, esaj, djen, ...)
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Method       string        `json:"method,omitempty" yaml:"method,omitempty"`
	SearchPath   string        `json:"search_path" yaml:"search_path"`
	RequiresAuth bool          `json:"requires_auth" yaml:"requires_auth"`
	AuthPath     string        `json:"auth_path,omitempty" yaml:"auth_path,omitempty"`
	Pacing       time.Duration `json:"pacing,omitempty" yaml:"pacing,omitempty"`   // Minimum gap between consecutive calls
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Overrides the default per-request timeout
}

// IsNational reports whether the source spans every jurisdiction
func (d SourceDescriptor) IsNational() bool {
	return d.Scope == ScopeNational
}

// SourceReport records what one adapter produced during a run
type SourceReport struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"` // Set when the run deadline abandoned the source
}

// RunSummary is returned to the caller of one orchestration run
type RunSummary struct {
	RunID      string         `json:"run_id"`
	OwnerID    string         `json:"owner_id"`
	Count      int            `json:"count"`   // Deduplicated records persisted
	Sources    []string       `json:"sources"` // Names attempted, in configuration order
	Reports    []SourceReport `json:"reports,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
