package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSyncer struct {
	calls   atomic.Int32
	updated int
	err     error
}

func (f *fakeSyncer) SyncSnapshots(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return f.updated, f.err
}

func TestSnapshotScheduler_RunNow(t *testing.T) {
	syncer := &fakeSyncer{updated: 3}
	s := NewSnapshotScheduler(syncer, zap.NewNop())

	assert.Equal(t, 3, s.RunNow(context.Background()))

	syncer.updated = 1
	syncer.err = errors.New("drv-9: database is locked")
	assert.Equal(t, 1, s.RunNow(context.Background()), "partial progress is still reported")
	assert.Equal(t, int32(2), syncer.calls.Load())
}

func TestSnapshotScheduler_StartRunsImmediately(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewSnapshotScheduler(syncer, nil)
	s.CheckInterval = time.Hour

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestSnapshotScheduler_Ticks(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewSnapshotScheduler(syncer, zap.NewNop())
	s.CheckInterval = 10 * time.Millisecond

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotScheduler_Disabled(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewSnapshotScheduler(syncer, zap.NewNop())
	s.CheckInterval = 0

	s.Start()
	s.Stop()
	assert.Zero(t, syncer.calls.Load())
}
