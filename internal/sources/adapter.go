package sources

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/gazette/internal/logger"
	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/normalize"
	"github.com/ppiankov/gazette/internal/worker"
)

// DefaultTimeout bounds one request when neither the descriptor nor the options set one
const DefaultTimeout = 25 * time.Second

// Adapter searches one external source.
// Search never fails: every error reduces to zero records for the affected name.
type Adapter interface {
	Descriptor() model.SourceDescriptor
	Search(ctx context.Context, names []string, jurisdictions []string) []model.Publication
}

// Options are the dependencies shared by all adapters
type Options struct {
	Client       *Client
	Auth         *Authenticator  // Required only for sources with requires_auth
	Limiter      *worker.Limiter // Paces sources that declare a pacing interval
	Logger       *slog.Logger
	Timeout      time.Duration
	LookbackDays int
	MaxContent   int
	MaxTitle     int
	Now          func() time.Time
}

// NewAdapter builds the adapter for desc
func NewAdapter(desc model.SourceDescriptor, opts Options) Adapter {
	schema, ok := SchemaFor(desc.Schema)
	if !ok {
		schema = genericSchema{}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxContent <= 0 {
		opts.MaxContent = normalize.DefaultMaxContent
	}
	if opts.MaxTitle <= 0 {
		opts.MaxTitle = normalize.DefaultMaxTitle
	}

	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if desc.Pacing > 0 && opts.Limiter != nil {
		opts.Limiter.SetInterval(desc.ID, desc.Pacing)
	}

	s := searcher{
		desc:    desc,
		schema:  schema,
		opts:    opts,
		timeout: timeout,
		log:     logger.OrDiscard(opts.Logger).With("source", desc.ID),
	}

	if desc.IsNational() {
		return &NationalAdapter{searcher: s}
	}
	return &TribunalAdapter{searcher: s}
}

// TribunalAdapter queries one regional tribunal; its jurisdiction is fixed
type TribunalAdapter struct {
	searcher
}

// Search implements Adapter. The jurisdiction filter is not sent.
func (a *TribunalAdapter) Search(ctx context.Context, names []string, _ []string) []model.Publication {
	return a.search(ctx, names, nil)
}

// NationalAdapter queries a national service, passing the jurisdiction
// filter as a query parameter instead of issuing one call per state
type NationalAdapter struct {
	searcher
}

// Search implements Adapter
func (a *NationalAdapter) Search(ctx context.Context, names []string, jurisdictions []string) []model.Publication {
	return a.search(ctx, names, jurisdictions)
}

type searcher struct {
	desc    model.SourceDescriptor
	schema  Schema
	opts    Options
	timeout time.Duration
	log     *slog.Logger
}

// Descriptor returns the static configuration of the source
func (s *searcher) Descriptor() model.SourceDescriptor {
	return s.desc
}

func (s *searcher) search(ctx context.Context, names []string, jurisdictions []string) []model.Publication {
	var out []model.Publication
	for _, name := range names {
		if ctx.Err() != nil {
			return out
		}

		// read per name so an invalidated or expired token is replaced mid-run
		var token string
		if s.desc.RequiresAuth {
			tok, err := s.token(ctx)
			if err != nil {
				s.log.Warn("authentication failed", "err", err)
				return out
			}
			token = tok
		}

		if s.desc.Pacing > 0 && s.opts.Limiter != nil {
			if err := s.opts.Limiter.Wait(ctx, s.desc.ID); err != nil {
				return out
			}
		}

		q := NewQuery(name, s.opts.Now(), s.opts.LookbackDays, jurisdictions)
		pubs, err := s.searchName(ctx, q, token)
		if err != nil {
			s.log.Warn("search failed", "name", name, "err", err)
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized && s.opts.Auth != nil {
				s.opts.Auth.Invalidate(ctx, s.desc.ID)
			}
			continue
		}
		out = append(out, pubs...)
	}

	return out
}

func (s *searcher) token(ctx context.Context) (string, error) {
	if s.opts.Auth == nil {
		return "", ErrNoCredentials
	}

	authCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.opts.Auth.Token(authCtx, s.desc)
}

// searchName performs one bounded request; its timeout never affects other sources
func (s *searcher) searchName(ctx context.Context, q Query, token string) ([]model.Publication, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.opts.Client.Search(reqCtx, s.desc, q, token)
	if err != nil {
		return nil, err
	}

	records, skipped, err := s.schema.Decode(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Debug("skipped malformed items", "name", q.Name, "skipped", skipped)
	}
	if records == nil {
		s.log.Debug("no result list in response", "name", q.Name, "schema", s.schema.Name())
	}

	now := s.opts.Now()
	pubs := make([]model.Publication, 0, len(records))
	for _, rec := range records {
		pubs = append(pubs, s.publication(q.Name, rec, now))
	}
	return pubs, nil
}

// publication maps a record to its canonical form
func (s *searcher) publication(name string, rec Record, now time.Time) model.Publication {
	content := normalize.SanitizeText(rec.Content, s.opts.MaxContent)

	title := normalize.SanitizeText(rec.Title, s.opts.MaxTitle)
	if title == "" {
		title = normalize.Truncate(content, s.opts.MaxTitle)
	}

	caseNumber := strings.TrimSpace(rec.CaseNumber)
	if caseNumber == "" {
		caseNumber = normalize.ExtractCaseNumber(content)
	}

	return model.Publication{
		AttorneyName: name,
		Title:        title,
		Content:      content,
		PublishedAt:  normalize.ParseDateAt(rec.Date, now),
		Source:       s.desc.Name,
		Jurisdiction: s.jurisdiction(rec.Jurisdiction),
		Court:        normalize.SanitizeText(rec.Court, s.opts.MaxTitle),
		CaseNumber:   caseNumber,
		Kind:         normalize.SanitizeText(rec.Kind, s.opts.MaxTitle),
		URL:          normalize.NormalizeURL(rec.URL),
	}
}

// jurisdiction is fixed for tribunals; national items carry their own code
// when they have one and fall back to the national marker
func (s *searcher) jurisdiction(fromItem string) string {
	if !s.desc.IsNational() && s.desc.Jurisdiction != "" {
		return s.desc.Jurisdiction
	}
	if code := strings.ToUpper(strings.TrimSpace(fromItem)); code != "" && len(code) <= 3 {
		return code
	}
	if s.desc.Jurisdiction != "" {
		return s.desc.Jurisdiction
	}
	return model.NationalJurisdiction
}
