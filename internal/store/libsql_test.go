package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/actionwait/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedSuspension(t *testing.T, s *LibSQLStore, runID, path string, deadline time.Time) *Suspension {
	t.Helper()
	sp := &Suspension{
		CorrelationID: uuid.New().String(),
		RunID:         runID,
		Path:          path,
		Deadline:      deadline,
	}
	require.NoError(t, s.UpsertSuspension(context.Background(), sp))
	return sp
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

// --- Wait record tests ---

func TestPutAndGetWait(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	deadline := time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)

	rec := &schema.WaitRecord{Path: "approve/0", CorrelationID: "corr-1", Deadline: deadline}
	require.NoError(t, s.PutWait(ctx, "run-1", "wait:approve/0", rec))

	got, err := s.GetWait(ctx, "run-1", "wait:approve/0")
	require.NoError(t, err)
	assert.Equal(t, "approve/0", got.Path)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.True(t, deadline.Equal(got.Deadline))
}

func TestGetWait_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWait(context.Background(), "run-1", "wait:missing")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestGetWait_ScopedByRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := &schema.WaitRecord{Path: "p1", CorrelationID: "c1", Deadline: time.Now().UTC()}
	require.NoError(t, s.PutWait(ctx, "run-a", "wait:p1", rec))

	_, err := s.GetWait(ctx, "run-b", "wait:p1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestPutWait_SameKeyReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutWait(ctx, "run-1", "k", &schema.WaitRecord{Path: "p", CorrelationID: "old", Deadline: time.Now().UTC()}))
	require.NoError(t, s.PutWait(ctx, "run-1", "k", &schema.WaitRecord{Path: "p", CorrelationID: "new", Deadline: time.Now().UTC()}))

	got, err := s.GetWait(ctx, "run-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got.CorrelationID)
}

func TestPutWait_Nil(t *testing.T) {
	s := newTestStore(t)
	err := s.PutWait(context.Background(), "run-1", "k", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRunScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := ForRun(s, "run-7")
	assert.Equal(t, "run-7", scope.RunID())

	rec := &schema.WaitRecord{Path: "p1", CorrelationID: "c1", Deadline: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, scope.Put(ctx, "wait:p1", rec))

	got, err := scope.Get(ctx, "wait:p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CorrelationID)

	direct, err := s.GetWait(ctx, "run-7", "wait:p1")
	require.NoError(t, err)
	assert.Equal(t, got, direct)
}

// --- Suspension tests ---

func TestUpsertAndGetSuspension(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sp := seedSuspension(t, s, "run-1", "p1", deadline)

	got, err := s.GetSuspension(ctx, sp.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "p1", got.Path)
	assert.Equal(t, schema.SuspensionParked, got.Status)
	assert.True(t, deadline.Equal(got.Deadline))
	assert.Nil(t, got.ResolvedAt)
	assert.Nil(t, got.Outcome)
}

func TestUpsertSuspension_ReparkKeepsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sp := seedSuspension(t, s, "run-1", "p1", time.Now().UTC().Add(time.Hour))

	require.NoError(t, s.UpsertSuspension(ctx, sp))
	list, err := s.ListSuspensions(ctx, SuspensionFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, schema.SuspensionParked, list[0].Status)
}

func TestGetSuspension_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSuspension(context.Background(), "nope")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestResolveSuspension_SingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sp := seedSuspension(t, s, "run-1", "p1", time.Now().UTC().Add(time.Hour))

	outcome := json.RawMessage(`{"action":"Approve","actor":"alice","isExpired":false}`)
	require.NoError(t, s.ResolveSuspension(ctx, sp.CorrelationID, schema.SuspensionResolved, outcome))

	got, err := s.GetSuspension(ctx, sp.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, schema.SuspensionResolved, got.Status)
	assert.JSONEq(t, string(outcome), string(got.Outcome))
	assert.NotNil(t, got.ResolvedAt)

	err = s.ResolveSuspension(ctx, sp.CorrelationID, schema.SuspensionResolved, outcome)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConflict))

	err = s.ResolveSuspension(ctx, "unknown", schema.SuspensionResolved, nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestListSuspensions_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	late := seedSuspension(t, s, "run-1", "late", now.Add(2*time.Hour))
	due := seedSuspension(t, s, "run-1", "due", now.Add(-time.Minute))
	other := seedSuspension(t, s, "run-2", "other", now.Add(-2*time.Minute))
	done := seedSuspension(t, s, "run-2", "done", now.Add(-3*time.Minute))
	require.NoError(t, s.ResolveSuspension(ctx, done.CorrelationID, schema.SuspensionResolved, nil))

	byRun, err := s.ListSuspensions(ctx, SuspensionFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	assert.Equal(t, due.CorrelationID, byRun[0].CorrelationID, "ordered by deadline")
	assert.Equal(t, late.CorrelationID, byRun[1].CorrelationID)

	dueBefore := now
	parkedDue, err := s.ListSuspensions(ctx, SuspensionFilter{Status: schema.SuspensionParked, DueBefore: &dueBefore})
	require.NoError(t, err)
	require.Len(t, parkedDue, 2)
	assert.Equal(t, other.CorrelationID, parkedDue[0].CorrelationID)
	assert.Equal(t, due.CorrelationID, parkedDue[1].CorrelationID)

	limited, err := s.ListSuspensions(ctx, SuspensionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutWait(ctx, "run-1", "wait:p1", &schema.WaitRecord{Path: "p1", CorrelationID: "c1", Deadline: time.Now().UTC()}))
	seedSuspension(t, s, "run-1", "p1", time.Now().UTC())
	require.NoError(t, s.AppendEvent(ctx, &Event{RunID: "run-1", Path: "p1", Type: schema.EventWaitParked}))
	require.NoError(t, s.PutWait(ctx, "run-2", "wait:p1", &schema.WaitRecord{Path: "p1", CorrelationID: "c2", Deadline: time.Now().UTC()}))

	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	_, err := s.GetWait(ctx, "run-1", "wait:p1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	list, err := s.ListSuspensions(ctx, SuspensionFilter{RunID: "run-1"})
	require.NoError(t, err)
	assert.Empty(t, list)
	events, err := s.GetEvents(ctx, "run-1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = s.GetWait(ctx, "run-2", "wait:p1")
	assert.NoError(t, err)
}
