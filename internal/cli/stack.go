package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/loam"
	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/adapters/file"
	"github.com/goflowspace/goflow/internal/config"
	httpAdapter "github.com/goflowspace/goflow/pkg/adapters/http"
	loamAdapter "github.com/goflowspace/goflow/pkg/adapters/loam"
	"github.com/goflowspace/goflow/pkg/adapters/memory"
	redisAdapter "github.com/goflowspace/goflow/pkg/adapters/redis"
	"github.com/goflowspace/goflow/pkg/observability"
	"github.com/goflowspace/goflow/pkg/persistence/middleware"
	"github.com/goflowspace/goflow/pkg/ports"
	"github.com/goflowspace/goflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Stack is the wired set of components behind every goflow command.
type Stack struct {
	Config    config.Config
	Store     ports.ProjectStore
	OpLog     ports.OperationLog
	Streams   *httpAdapter.StreamManager
	Notifiers *memory.Notifiers
	Manager   *session.Manager
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry

	closers []func() error
}

// NewStack builds the components selected by cfg.
func NewStack(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	s := &Stack{
		Config:    cfg,
		Streams:   httpAdapter.NewStreamManager(logger),
		Notifiers: memory.NewNotifiers(),
	}

	var locker ports.DistributedLocker
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		s.Store = memory.NewStore()
		s.OpLog = memory.NewOperationLog()
	case config.DriverFile:
		s.Store = file.New(cfg.Storage.Path, file.Format(cfg.Storage.Format))
		s.OpLog = memory.NewOperationLog()
	case config.DriverRedis:
		rc := cfg.Storage.Redis
		store := redisAdapter.New(rc.Addr, rc.Password, rc.DB,
			redisAdapter.WithPrefix(rc.Prefix),
			redisAdapter.WithTTL(rc.TTL),
		)
		s.closers = append(s.closers, store.Close)
		s.Store = store
		s.OpLog = redisAdapter.NewOperationLog(store.Client(), rc.Prefix)
		locker = redisAdapter.NewLocker(store.Client(), rc.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	var mws []middleware.Middleware
	if len(cfg.Storage.RedactKeys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Storage.RedactKeys))
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	s.Store = middleware.Chain(s.Store, mws...)

	schemas, err := cfg.ConditionSchemas()
	if err != nil {
		return nil, err
	}

	hooks := observability.LoggingHooks(logger)
	if cfg.Metrics.Enabled {
		s.Registry = prometheus.NewRegistry()
		s.Metrics = observability.NewMetrics(s.Registry)
		hooks = observability.Chain(hooks, s.Metrics.Hooks())
	}

	editorOpts := []goflow.Option{
		goflow.WithHistoryCapacity(cfg.HistoryCapacity),
		goflow.WithConditionSchemas(schemas),
		goflow.WithLifecycleHooks(hooks),
		goflow.WithSink(ports.Tee(s.Streams, s.OpLog)),
	}
	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithTimeline(cfg.TimelineID),
		session.WithEditorOptions(editorOpts...),
		session.WithProjectOptions(func(projectID string) []goflow.Option {
			return []goflow.Option{goflow.WithNotifier(s.Notifiers.For(projectID))}
		}),
	}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	s.Manager = session.NewManager(s.Store, sessionOpts...)
	return s, nil
}

// Close releases backend connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewImporter picks an importer for path: a directory is read as a loam
// repository of flow documents, a file as a JSON {"nodes","edges"} document.
func NewImporter(path string) (ports.Importer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import source: %w", err)
	}
	if !info.IsDir() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read import source: %w", err)
		}
		return memory.NewImporter(raw), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Read only, so loam never writes into the source directory.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.NodeMetadata](repo)), nil
}

// ImportInto runs importer against a project, from the given layer, and saves
// the result.
func ImportInto(ctx context.Context, mgr *session.Manager, projectID, layerID string, importer ports.Importer) ([]string, error) {
	var ids []string
	err := mgr.Edit(ctx, projectID, func(ctx context.Context, ed *goflow.Editor) error {
		if layerID != "" {
			if err := ed.Navigate(layerID); err != nil {
				return err
			}
		}
		var err error
		ids, err = ed.Import(ctx, importer)
		return err
	})
	return ids, err
}
