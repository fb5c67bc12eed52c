package sources

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/gazette/internal/model"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// Registry validation errors
var (
	ErrMissingSourceID     = errors.New("source id is required")
	ErrDuplicateSource     = errors.New("duplicate source id")
	ErrMissingSourceName   = errors.New("source name is required")
	ErrInvalidBaseURL      = errors.New("source base_url must be an absolute http(s) URL")
	ErrMissingJurisdiction = errors.New("regional source requires a jurisdiction")
	ErrInvalidScope        = errors.New("source scope must be national or regional")
	ErrUnknownSchema       = errors.New("unknown source schema")
	ErrInvalidMethod       = errors.New("source method must be GET or POST")
	ErrMissingAuthPath     = errors.New("authenticated source requires an auth_path")
	ErrEmptyRegistry       = errors.New("source registry is empty")
)

type registryFile struct {
	Sources []model.SourceDescriptor `yaml:"sources"`
}

// Registry holds the source descriptors in configuration order
type Registry struct {
	sources []model.SourceDescriptor
	byID    map[string]int
}

// LoadRegistry reads descriptors from path, or the built-in table when path is empty
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return ParseRegistry(embeddedRegistry)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses a YAML registry table
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}
	return NewRegistry(file.Sources)
}

// NewRegistry validates descriptors and fills in defaults
func NewRegistry(descs []model.SourceDescriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		sources: make([]model.SourceDescriptor, 0, len(descs)),
		byID:    make(map[string]int, len(descs)),
	}

	for i, d := range descs {
		d, err := normalizeDescriptor(d)
		if err != nil {
			return nil, fmt.Errorf("source #%d (%s): %w", i+1, d.ID, err)
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("%s: %w", d.ID, ErrDuplicateSource)
		}
		r.byID[d.ID] = len(r.sources)
		r.sources = append(r.sources, d)
	}

	return r, nil
}

func normalizeDescriptor(d model.SourceDescriptor) (model.SourceDescriptor, error) {
	d.ID = strings.ToLower(strings.TrimSpace(d.ID))
	d.Jurisdiction = strings.ToUpper(strings.TrimSpace(d.Jurisdiction))
	d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
	d.Schema = strings.ToLower(strings.TrimSpace(d.Schema))

	if d.ID == "" {
		return d, ErrMissingSourceID
	}
	if strings.TrimSpace(d.Name) == "" {
		return d, ErrMissingSourceName
	}

	u, err := url.Parse(d.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return d, ErrInvalidBaseURL
	}

	switch d.Scope {
	case model.ScopeNational:
		if d.Jurisdiction == "" {
			d.Jurisdiction = model.NationalJurisdiction
		}
	case model.ScopeRegional:
		if d.Jurisdiction == "" {
			return d, ErrMissingJurisdiction
		}
	default:
		return d, ErrInvalidScope
	}

	if d.Schema == "" {
		d.Schema = SchemaGeneric
	}
	if _, ok := SchemaFor(d.Schema); !ok {
		return d, fmt.Errorf("%w: %q", ErrUnknownSchema, d.Schema)
	}

	switch d.Method {
	case "":
		d.Method = http.MethodGet
	case http.MethodGet, http.MethodPost:
	default:
		return d, ErrInvalidMethod
	}

	if d.RequiresAuth && d.AuthPath == "" {
		return d, ErrMissingAuthPath
	}

	return d, nil
}

// All returns every descriptor in configuration order
func (r *Registry) All() []model.SourceDescriptor {
	out := make([]model.SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// National returns the national sources in configuration order
func (r *Registry) National() []model.SourceDescriptor {
	var out []model.SourceDescriptor
	for _, d := range r.sources {
		if d.IsNational() {
			out = append(out, d)
		}
	}
	return out
}

// Regional returns the regional sources whose jurisdiction is in filter,
// or all of them when filter is empty
func (r *Registry) Regional(filter []string) []model.SourceDescriptor {
	wanted := make(map[string]bool, len(filter))
	for _, f := range filter {
		if code := strings.ToUpper(strings.TrimSpace(f)); code != "" {
			wanted[code] = true
		}
	}

	var out []model.SourceDescriptor
	for _, d := range r.sources {
		if d.IsNational() {
			continue
		}
		if len(wanted) > 0 && !wanted[d.Jurisdiction] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Select returns the sources of one run: national first, then the filtered regionals
func (r *Registry) Select(filter []string) []model.SourceDescriptor {
	return append(r.National(), r.Regional(filter)...)
}

// Lookup finds a descriptor by id
func (r *Registry) Lookup(id string) (model.SourceDescriptor, bool) {
	idx, ok := r.byID[strings.ToLower(id)]
	if !ok {
		return model.SourceDescriptor{}, false
	}
	return r.sources[idx], true
}

// Len returns the number of registered sources
func (r *Registry) Len() int {
	return len(r.sources)
}
