package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/actionwait/pkg/schema"
)

func TestWaitKey_Deterministic(t *testing.T) {
	assert.Equal(t, WaitKey("approve/0"), WaitKey("approve/0"))
	assert.NotEqual(t, WaitKey("approve/0"), WaitKey("approve/1"))
}

func TestBeginWait_PersistsAndSuspends(t *testing.T) {
	f := newFixture()
	deadline := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

	res, err := f.coordinator().BeginWait(context.Background(), "p1", deadline)
	require.NoError(t, err)

	stored, ok := f.store.records[WaitKey("p1")]
	require.True(t, ok)
	assert.Equal(t, schema.WaitRecord{Path: "p1", CorrelationID: "corr-1", Deadline: deadline}, stored)

	require.Len(t, f.engine.suspended, 1)
	assert.Equal(t, stored, f.engine.suspended[0].Record)

	assert.IsType(t, Pending{}, res.Outcome)
	require.NotNil(t, res.Suspend)
	assert.Equal(t, stored, res.Suspend.Record)
	assert.Nil(t, res.IsExpired(), "pending is distinct from false")
	assert.Equal(t, "", res.Action())
	assert.Equal(t, "", res.Actor())
	assert.Nil(t, res.Artifact)
}

func TestBeginWait_DoesNotTouchArtifact(t *testing.T) {
	f := newFixture()
	_, err := f.coordinator().BeginWait(context.Background(), "p1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, f.artifact.Updates())
}

func TestBeginWait_NormalizesDeadlineToUTC(t *testing.T) {
	f := newFixture()
	loc := time.FixedZone("UTC+3", 3*60*60)
	deadline := time.Date(2026, 10, 18, 18, 0, 0, 0, loc)

	res, err := f.coordinator().BeginWait(context.Background(), "p1", deadline)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, res.Suspend.Record.Deadline.Location())
	assert.True(t, deadline.Equal(res.Suspend.Record.Deadline))
}

func TestBeginWait_EmptyPath(t *testing.T) {
	f := newFixture()
	_, err := f.coordinator().BeginWait(context.Background(), "  ", time.Now())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Equal(t, 0, f.store.accesses())
	assert.Equal(t, 0, f.engine.minted)
}

func TestBeginWait_StoreFailure(t *testing.T) {
	f := newFixture()
	f.store.putErr = errBoom

	_, err := f.coordinator().BeginWait(context.Background(), "p1", time.Now())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.engine.suspended, "must not park without a durable record")
}

func TestBeginWait_SuspendFailure(t *testing.T) {
	f := newFixture()
	f.engine.suspendErr = errBoom

	_, err := f.coordinator().BeginWait(context.Background(), "p1", time.Now())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeSuspend))
	assert.ErrorIs(t, err, errBoom)
}

func TestBeginWait_DistinctPathsDistinctRecords(t *testing.T) {
	f := newFixture()
	c := f.coordinator()
	deadline := time.Now().UTC().Add(time.Hour)

	for _, p := range []string{"loop/0/approve", "loop/1/approve"} {
		_, err := c.BeginWait(context.Background(), p, deadline)
		require.NoError(t, err)
	}
	require.Len(t, f.store.records, 2)
	assert.NotEqual(t,
		f.store.records[WaitKey("loop/0/approve")].CorrelationID,
		f.store.records[WaitKey("loop/1/approve")].CorrelationID)
}
