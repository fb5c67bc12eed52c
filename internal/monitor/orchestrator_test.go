package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/sources"
	"github.com/ppiankov/gazette/internal/store"
)

type fakeAdapter struct {
	desc      model.SourceDescriptor
	pubs      []model.Publication
	delay     time.Duration
	panicWith string

	calls atomic.Int32

	mu               sync.Mutex
	gotNames         []string
	gotJurisdictions []string

	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
}

func (f *fakeAdapter) Descriptor() model.SourceDescriptor {
	return f.desc
}

func (f *fakeAdapter) Search(ctx context.Context, names []string, jurisdictions []string) []model.Publication {
	f.calls.Add(1)
	f.mu.Lock()
	f.gotNames = names
	f.gotJurisdictions = jurisdictions
	f.mu.Unlock()

	if f.panicWith != "" {
		panic(f.panicWith)
	}

	if f.inFlight != nil {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			peak := f.maxInFlight.Load()
			if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
				break
			}
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.pubs
}

func national(id, name string, pubs ...model.Publication) *fakeAdapter {
	return &fakeAdapter{
		desc: model.SourceDescriptor{ID: id, Name: name, Scope: model.ScopeNational, Jurisdiction: "BR"},
		pubs: pubs,
	}
}

func tribunal(id, name, jurisdiction string, pubs ...model.Publication) *fakeAdapter {
	return &fakeAdapter{
		desc: model.SourceDescriptor{ID: id, Name: name, Scope: model.ScopeRegional, Jurisdiction: jurisdiction},
		pubs: pubs,
	}
}

func publication(source, jurisdiction, content string) model.Publication {
	return model.Publication{
		AttorneyName: "Jane Doe",
		Title:        "Intimação",
		Content:      content,
		PublishedAt:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Source:       source,
		Jurisdiction: jurisdiction,
	}
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  int
	owner  string
	pubs   []model.Publication
	flags  model.Flags
	ctxErr error
	err    error
}

func (g *fakeGateway) InsertPublications(ctx context.Context, ownerID string, pubs []model.Publication, flags model.Flags) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.ctxErr = ctx.Err()
	if g.err != nil {
		return g.err
	}
	g.owner = ownerID
	g.pubs = append(g.pubs, pubs...)
	g.flags = flags
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	summary *model.RunSummary
	err     error
}

func (r *fakeRecorder) RecordRun(_ context.Context, summary *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
	return r.err
}

func newOrchestrator(t *testing.T, adapters []sources.Adapter, gw store.Gateway, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(adapters, gw, opts)
	require.NoError(t, err)
	return o
}

func TestNew_RequiresGateway(t *testing.T) {
	_, err := New(nil, nil, Options{})
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestNew_ClampsWorkers(t *testing.T) {
	gw := &fakeGateway{}
	assert.Equal(t, DefaultWorkers, newOrchestrator(t, nil, gw, Options{}).opts.Workers)
	assert.Equal(t, MaxWorkers, newOrchestrator(t, nil, gw, Options{Workers: 500}).opts.Workers)
	assert.Equal(t, 3, newOrchestrator(t, nil, gw, Options{Workers: 3}).opts.Workers)
}

func TestRun_NoNames(t *testing.T) {
	a := national("djen", "DJEN")
	gw := &fakeGateway{}
	o := newOrchestrator(t, []sources.Adapter{a}, gw, Options{})

	for _, names := range [][]string{nil, {}, {"", "   "}} {
		summary, err := o.Run(context.Background(), names, nil, "owner-1")
		assert.ErrorIs(t, err, ErrNoNames)
		assert.Nil(t, summary)
	}

	assert.Zero(t, a.calls.Load(), "no adapter may be called without names")
	assert.Zero(t, gw.calls)
}

func TestRun_MergesDedupesAndPersists(t *testing.T) {
	shared := publication("DJEN", "SP", "Fica intimada a advogada Jane Doe")
	dup := shared
	dup.Source = "DJE-SP"

	djen := national("djen", "DJEN", shared)
	tjsp := tribunal("tjsp", "DJE-SP", "SP", dup, publication("DJE-SP", "SP", "Pauta de julgamento"))
	tjrj := tribunal("tjrj", "DJE-RJ", "RJ")

	gw := &fakeGateway{}
	rec := &fakeRecorder{}
	o := newOrchestrator(t, []sources.Adapter{tjsp, djen, tjrj}, gw, Options{Recorder: rec})

	summary, err := o.Run(context.Background(), []string{" Jane  Doe ", "Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, "owner-1", summary.OwnerID)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"DJEN", "DJE-SP", "DJE-RJ"}, summary.Sources, "national sources run first")
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	for _, a := range []*fakeAdapter{djen, tjsp, tjrj} {
		assert.Equal(t, []string{"Jane Doe"}, a.gotNames)
	}

	require.Equal(t, 1, gw.calls)
	assert.Equal(t, "owner-1", gw.owner)
	assert.Equal(t, model.DefaultFlags(), gw.flags)
	require.Len(t, gw.pubs, 2)
	assert.Equal(t, "DJEN", gw.pubs[0].Source, "first occurrence in source order is kept")

	require.Len(t, summary.Reports, 3)
	assert.Equal(t, 1, summary.Reports[0].Records)
	assert.Equal(t, 2, summary.Reports[1].Records)
	assert.Empty(t, summary.Reports[2].Error)

	assert.Same(t, summary, rec.summary)
}

func TestRun_MergeOrderIgnoresCompletionOrder(t *testing.T) {
	shared := publication("DJEN", "SP", "mesmo conteúdo")
	dup := shared
	dup.Source = "DJE-SP"

	// the national source finishes last but still wins the duplicate
	djen := national("djen", "DJEN", shared)
	djen.delay = 80 * time.Millisecond
	tjsp := tribunal("tjsp", "DJE-SP", "SP", dup)

	for i := 0; i < 5; i++ {
		gw := &fakeGateway{}
		o := newOrchestrator(t, []sources.Adapter{djen, tjsp}, gw, Options{Workers: 2})

		summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Count)
		require.Len(t, gw.pubs, 1)
		assert.Equal(t, "DJEN", gw.pubs[0].Source)
	}
}

func TestRun_JurisdictionFilter(t *testing.T) {
	djen := national("djen", "DJEN")
	tjsp := tribunal("tjsp", "DJE-SP", "SP")
	tjrj := tribunal("tjrj", "DJE-RJ", "RJ")
	tjmg := tribunal("tjmg", "DJE-MG", "MG")

	o := newOrchestrator(t, []sources.Adapter{djen, tjsp, tjrj, tjmg}, &fakeGateway{}, Options{})

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, []string{" sp", "MG", "sp", ""}, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"DJEN", "DJE-SP", "DJE-MG"}, summary.Sources)
	assert.Equal(t, []string{"SP", "MG"}, djen.gotJurisdictions, "national sources receive the filter")
	assert.EqualValues(t, 1, tjsp.calls.Load())
	assert.EqualValues(t, 0, tjrj.calls.Load())
	assert.EqualValues(t, 1, tjmg.calls.Load())
}

func TestRun_EmptyResultSkipsInsert(t *testing.T) {
	gw := &fakeGateway{}
	rec := &fakeRecorder{}
	o := newOrchestrator(t, []sources.Adapter{national("djen", "DJEN"), tribunal("tjsp", "DJE-SP", "SP")}, gw, Options{Recorder: rec})

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)

	assert.Zero(t, summary.Count)
	assert.Equal(t, []string{"DJEN", "DJE-SP"}, summary.Sources)
	assert.Zero(t, gw.calls)
	assert.NotNil(t, rec.summary, "empty runs are still logged")
}

func TestRun_PersistFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	gw := &fakeGateway{err: dbErr}
	rec := &fakeRecorder{}
	o := newOrchestrator(t, []sources.Adapter{tribunal("tjsp", "DJE-SP", "SP", publication("DJE-SP", "SP", "a"))}, gw, Options{Recorder: rec})

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, gw.pubs)
	assert.Nil(t, rec.summary)
}

func TestRun_RecorderFailureIsNotFatal(t *testing.T) {
	o := newOrchestrator(t,
		[]sources.Adapter{tribunal("tjsp", "DJE-SP", "SP", publication("DJE-SP", "SP", "a"))},
		&fakeGateway{},
		Options{Recorder: &fakeRecorder{err: errors.New("run_log missing")}},
	)

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
}

func TestRun_DeadlineAbandonsSlowSources(t *testing.T) {
	fast := tribunal("tjsp", "DJE-SP", "SP", publication("DJE-SP", "SP", "rápido"))
	slow := tribunal("tjrj", "DJE-RJ", "RJ", publication("DJE-RJ", "RJ", "lento"))
	slow.delay = 5 * time.Second

	gw := &fakeGateway{}
	o := newOrchestrator(t, []sources.Adapter{fast, slow}, gw, Options{Workers: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	summary, err := o.Run(ctx, []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, []string{"DJE-SP", "DJE-RJ"}, summary.Sources)
	assert.Empty(t, summary.Reports[0].Error)
	assert.Equal(t, abandonedReason, summary.Reports[1].Error)

	require.Len(t, gw.pubs, 1)
	assert.Equal(t, "DJE-SP", gw.pubs[0].Source)
	assert.NoError(t, gw.ctxErr, "persistence must outlive the run deadline")
}

func TestRun_PanickingAdapterCountsAsZero(t *testing.T) {
	broken := tribunal("tjba", "DJE-BA", "BA", publication("DJE-BA", "BA", "nunca"))
	broken.panicWith = "nil map write"
	healthy := tribunal("tjsp", "DJE-SP", "SP", publication("DJE-SP", "SP", "ok"))

	gw := &fakeGateway{}
	o := newOrchestrator(t, []sources.Adapter{broken, healthy}, gw, Options{Workers: 1})

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, []string{"DJE-BA", "DJE-SP"}, summary.Sources)
	assert.Zero(t, summary.Reports[0].Records)
	assert.Contains(t, summary.Reports[0].Error, "adapter panicked")
	assert.Contains(t, summary.Reports[0].Error, "nil map write")
	assert.Empty(t, summary.Reports[1].Error)

	require.Len(t, gw.pubs, 1)
	assert.Equal(t, "DJE-SP", gw.pubs[0].Source)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var adapters []sources.Adapter
	for i := 0; i < 8; i++ {
		a := tribunal(fmt.Sprintf("tj%d", i), fmt.Sprintf("TJ%d", i), fmt.Sprintf("J%d", i))
		a.delay = 20 * time.Millisecond
		a.inFlight = &inFlight
		a.maxInFlight = &maxInFlight
		adapters = append(adapters, a)
	}

	o := newOrchestrator(t, adapters, &fakeGateway{}, Options{Workers: 2})
	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)

	assert.Len(t, summary.Sources, 8)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

// End to end over HTTP: a national source with nothing, a tribunal with two
// publications and a tribunal that outlives its per-request timeout.
func TestRun_HTTPSources(t *testing.T) {
	nationalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer nationalSrv.Close()

	tribunalX := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"publicacoes":[
			{"titulo":"Intimação","conteudo":"Fica intimada Jane Doe","dataPublicacao":"05/03/2024"},
			{"titulo":"Pauta","conteudo":"Pauta de julgamento com Jane Doe","dataPublicacao":"06/03/2024"}
		]}`)
	}))
	defer tribunalX.Close()

	tribunalY := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, `{"publicacoes":[{"titulo":"tarde","conteudo":"tarde demais"}]}`)
	}))
	defer tribunalY.Close()

	opts := sources.Options{
		Client:       sources.NewClientWithHTTP(&http.Client{}, "gazette-test"),
		LookbackDays: 7,
		Timeout:      100 * time.Millisecond,
	}
	adapters := []sources.Adapter{
		sources.NewAdapter(model.SourceDescriptor{ID: "a", Name: "NationalA", Scope: model.ScopeNational, Jurisdiction: "BR", Schema: sources.SchemaDJEN, BaseURL: nationalSrv.URL, SearchPath: "/"}, opts),
		sources.NewAdapter(model.SourceDescriptor{ID: "x", Name: "TribunalX", Scope: model.ScopeRegional, Jurisdiction: "SP", Schema: sources.SchemaESAJ, BaseURL: tribunalX.URL, SearchPath: "/"}, opts),
		sources.NewAdapter(model.SourceDescriptor{ID: "y", Name: "TribunalY", Scope: model.ScopeRegional, Jurisdiction: "RJ", Schema: sources.SchemaESAJ, BaseURL: tribunalY.URL, SearchPath: "/"}, opts),
	}

	db, err := store.New(context.Background(), "sqlite3", "file:orchestrator_http?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	o := newOrchestrator(t, adapters, db, Options{Recorder: db})

	summary, err := o.Run(context.Background(), []string{"Jane Doe"}, nil, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, []string{"NationalA", "TribunalX", "TribunalY"}, summary.Sources)
	for _, rep := range summary.Reports {
		assert.Empty(t, rep.Error, "a per-request timeout is not an abandoned source")
	}

	rows, err := db.ListPublications(context.Background(), "owner-1", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "SP", r.Jurisdiction)
		assert.Equal(t, "TribunalX", r.Source)
		assert.Equal(t, "Jane Doe", r.AttorneyName)
	}
}

func TestCleanNames(t *testing.T) {
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, cleanNames([]string{"  Jane   Doe", "", "John Roe", "Jane Doe"}))
	assert.Empty(t, cleanNames([]string{" ", "\t"}))
}
