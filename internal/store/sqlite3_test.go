package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gazette/internal/model"
)

// openSqlite returns a store over a private in-memory database.
// A named shared-cache database keeps the tables visible to every pooled connection.
func openSqlite(t *testing.T, name string) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetConnMaxLifetime(-1)
	db.SetMaxIdleConns(2)

	s, err := NewFromDB(context.Background(), "sqlite3", db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSqlite3_InsertAndList(t *testing.T) {
	s := openSqlite(t, "insert_and_list")
	ctx := context.Background()

	flags := model.DefaultFlags()
	require.NoError(t, s.InsertPublications(ctx, "owner-1", samplePubs(), flags))
	require.NoError(t, s.InsertPublications(ctx, "owner-2", samplePubs()[:1], flags))

	rows, err := s.ListPublications(ctx, "owner-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// newest first
	assert.Equal(t, "Citação", rows[0].Title)
	assert.Equal(t, "Intimação", rows[1].Title)
	assert.True(t, rows[0].PublishedAt.Equal(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "0001234-56.2024.8.26.0100", rows[0].CaseNumber)
	assert.Equal(t, "owner-1", rows[0].OwnerID)
	assert.NotEmpty(t, rows[0].ID)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
	assert.False(t, rows[0].Flags.Read || rows[0].Flags.Important || rows[0].Flags.Sealed)

	since, err := s.ListPublications(ctx, "owner-1", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Len(t, since, 1)

	limited, err := s.ListPublications(ctx, "owner-1", time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSqlite3_FailedBatchLeavesNoRows(t *testing.T) {
	s := openSqlite(t, "failed_batch")
	ctx := context.Background()

	// a repeated primary key makes the second insert fail
	s.newID = func() string { return "same-id" }

	err := s.InsertPublications(ctx, "owner-1", samplePubs(), model.DefaultFlags())
	require.Error(t, err)

	rows, err := s.ListPublications(ctx, "owner-1", time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "no partial insert expected")
}

func TestSqlite3_RecordRun(t *testing.T) {
	s := openSqlite(t, "record_run")
	ctx := context.Background()

	start := time.Now().UTC()
	summary := &model.RunSummary{
		RunID:      "run-1",
		OwnerID:    "owner-1",
		Count:      3,
		Sources:    []string{"DJEN", "TJSP"},
		Reports:    []model.SourceReport{{ID: "tjsp", Name: "TJSP", Records: 3}},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	}
	require.NoError(t, s.RecordRun(ctx, summary))

	var count int
	var sources string
	err := s.db.QueryRowContext(ctx, "SELECT record_count, sources FROM run_log WHERE run_id = ?", "run-1").Scan(&count, &sources)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.JSONEq(t, `["DJEN","TJSP"]`, sources)

	// run ids are unique
	assert.Error(t, s.RecordRun(ctx, summary))
}

func TestNew_Sqlite3File(t *testing.T) {
	path := t.TempDir() + "/gazette.db"
	s, err := New(context.Background(), "sqlite3", "file:"+path+"?_foreign_keys=on")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.InsertPublications(context.Background(), "owner-1", samplePubs(), model.DefaultFlags()))
}
