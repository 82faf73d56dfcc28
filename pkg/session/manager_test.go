package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
	"github.com/goflowspace/goflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string]*domain.Project
	saves int
	mu    sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, projectID string, p *domain.Project) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Project)
	}
	s.data[projectID] = p.Clone()
	s.saves++
	return nil
}

func (s *SlowStore) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.data[projectID]; ok {
		return p.Clone(), nil
	}
	return nil, domain.ErrProjectNotFound
}

func (s *SlowStore) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, projectID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_LoadOrCreateIsAtomic(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := manager.LoadOrCreate(ctx, "atomic-init")
			assert.NoError(t, err)
			assert.NotNil(t, p)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.saves, "only the first caller creates the project")
	p, err := manager.Load(ctx, "atomic-init")
	require.NoError(t, err)
	assert.Equal(t, domain.RootLayerID, p.RootLayerID)
	assert.Equal(t, session.DefaultTimeline, p.TimelineID)
}

func TestManager_EditSerialisesAndPersists(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Edit(ctx, "p1", func(ctx context.Context, ed *goflow.Editor) error {
				_, err := ed.AddNode(ctx, domain.NewNarrative("", domain.Coordinates{}, domain.NodeData{Text: "x"}))
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := manager.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.NodeCount())

	err = manager.View(ctx, "p1", func(_ context.Context, ed *goflow.Editor) error {
		assert.Len(t, ed.History().UndoStack(), 10, "the open editor keeps its history")
		return nil
	})
	require.NoError(t, err)
}

func TestManager_FailedEditIsNotSaved(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := manager.Edit(ctx, "p1", func(context.Context, *goflow.Editor) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.saves, "only the creation was persisted")
}

func TestManager_DeleteClosesEditor(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, manager.Edit(ctx, "p1", func(ctx context.Context, ed *goflow.Editor) error {
		_, err := ed.AddLayer(ctx, domain.Coordinates{}, "")
		return err
	}))
	require.NoError(t, manager.Delete(ctx, "p1"))

	_, err := manager.Load(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	require.NoError(t, manager.View(ctx, "p1", func(_ context.Context, ed *goflow.Editor) error {
		assert.Empty(t, ed.History().UndoStack())
		assert.Equal(t, 0, ed.Snapshot().NodeCount())
		return nil
	}))
}

type fakeLocker struct {
	locks   atomic.Int32
	unlocks atomic.Int32
	lockErr error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.locks.Add(1)
	return func(context.Context) error {
		f.unlocks.Add(1)
		return errors.New("already expired")
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	ctx := context.Background()
	locker := &fakeLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(time.Second))

	_, err := manager.LoadOrCreate(ctx, "p1")
	require.NoError(t, err, "a failed unlock is only logged")
	assert.Equal(t, int32(1), locker.locks.Load())
	assert.Equal(t, int32(1), locker.unlocks.Load())

	locker.lockErr = errors.New("held elsewhere")
	_, err = manager.Load(ctx, "p1")
	assert.ErrorIs(t, err, locker.lockErr)
}

func TestManager_WithTimeline(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store, session.WithTimeline("draft"))

	p, err := mgr.LoadOrCreate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "draft", p.TimelineID)
}
