package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed project lock may be held.
const DefaultLockTTL = 30 * time.Second

// DefaultTimeline is the timeline of projects created by the manager.
const DefaultTimeline = "main"

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates project access: it serialises work per project,
// keeps one open editor per project and persists snapshots.
// Unused locks are garbage collected by reference counting.
type Manager struct {
	store ports.ProjectStore

	mu      sync.Mutex
	locks   map[string]*lockEntry
	editors map[string]*goflow.Editor

	locker     ports.DistributedLocker
	lockTTL    time.Duration
	timeline   string
	editorOpts []goflow.Option
	perProject func(projectID string) []goflow.Option
	logger     *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithTimeline sets the timeline of projects created by the manager.
func WithTimeline(timelineID string) Option {
	return func(m *Manager) {
		if timelineID != "" {
			m.timeline = timelineID
		}
	}
}

// WithEditorOptions sets the options every opened editor is created with.
func WithEditorOptions(opts ...goflow.Option) Option {
	return func(m *Manager) {
		m.editorOpts = append(m.editorOpts, opts...)
	}
}

// WithProjectOptions adds options computed for each opened project, such as
// a notifier owned by that project's clients.
func WithProjectOptions(fn func(projectID string) []goflow.Option) Option {
	return func(m *Manager) {
		m.perProject = fn
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given project store.
func NewManager(store ports.ProjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		editors:  make(map[string]*goflow.Editor),
		lockTTL:  DefaultLockTTL,
		timeline: DefaultTimeline,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release after unlocking.
func (m *Manager) acquire(projectID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		entry = &lockEntry{}
		m.locks[projectID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, projectID)
	}
}

// WithLock executes fn while holding the lock for the project.
func (m *Manager) WithLock(ctx context.Context, projectID string, fn func(context.Context) error) error {
	entry := m.acquire(projectID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(projectID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, projectID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"project_id", projectID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves a stored project snapshot.
func (m *Manager) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	var p *domain.Project
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		p, err = m.store.Load(ctx, projectID)
		return err
	})
	return p, err
}

// LoadOrCreate loads a project, creating and persisting an empty one if it
// does not exist yet.
func (m *Manager) LoadOrCreate(ctx context.Context, projectID string) (*domain.Project, error) {
	var p *domain.Project
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		p, err = m.loadOrCreate(ctx, projectID)
		return err
	})
	return p, err
}

func (m *Manager) loadOrCreate(ctx context.Context, projectID string) (*domain.Project, error) {
	p, err := m.store.Load(ctx, projectID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrProjectNotFound) {
		return nil, fmt.Errorf("failed to check project existence: %w", err)
	}

	p = domain.NewProject(projectID, m.timeline)
	if err := m.store.Save(ctx, projectID, p); err != nil {
		return nil, fmt.Errorf("failed to initialize project: %w", err)
	}
	m.logger.Info("project created", "project_id", projectID)
	return p, nil
}

// Save persists a project snapshot.
func (m *Manager) Save(ctx context.Context, projectID string, p *domain.Project) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		return m.store.Save(ctx, projectID, p)
	})
}

// Delete removes the project from the store and closes its editor.
func (m *Manager) Delete(ctx context.Context, projectID string) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.editors, projectID)
		m.mu.Unlock()
		return m.store.Delete(ctx, projectID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying project store.
func (m *Manager) Store() ports.ProjectStore {
	return m.store
}

// Edit runs fn against the open editor of the project while holding the
// project lock, opening the editor first if needed. The snapshot is saved
// when fn succeeds.
func (m *Manager) Edit(ctx context.Context, projectID string, fn func(context.Context, *goflow.Editor) error) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		ed, err := m.open(ctx, projectID)
		if err != nil {
			return err
		}
		if err := fn(ctx, ed); err != nil {
			return err
		}
		return m.store.Save(ctx, projectID, ed.Snapshot())
	})
}

// View runs fn against the open editor of the project without saving.
func (m *Manager) View(ctx context.Context, projectID string, fn func(context.Context, *goflow.Editor) error) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		ed, err := m.open(ctx, projectID)
		if err != nil {
			return err
		}
		return fn(ctx, ed)
	})
}

// open must be called with the project lock held.
func (m *Manager) open(ctx context.Context, projectID string) (*goflow.Editor, error) {
	m.mu.Lock()
	ed, ok := m.editors[projectID]
	m.mu.Unlock()
	if ok {
		return ed, nil
	}

	p, err := m.loadOrCreate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	opts := append([]goflow.Option{
		goflow.WithProject(p.ID, p.TimelineID),
		goflow.WithLogger(m.logger),
	}, m.editorOpts...)
	if m.perProject != nil {
		opts = append(opts, m.perProject(projectID)...)
	}
	ed = goflow.New(opts...)
	if err := ed.Load(p); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.editors[projectID] = ed
	m.mu.Unlock()
	m.logger.Debug("editor opened", "project_id", projectID)
	return ed, nil
}

// Close forgets the open editor of a project, discarding its history.
func (m *Manager) Close(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.editors, projectID)
}
