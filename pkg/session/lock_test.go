package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/goflowspace/goflow/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, *domain.Project) error { return nil }
func (nopStore) Load(context.Context, string) (*domain.Project, error) {
	return nil, domain.ErrProjectNotFound
}
func (nopStore) Delete(context.Context, string) error   { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 5000

	for i := 0; i < count; i++ {
		pid := fmt.Sprintf("project-%d", i)
		_ = mgr.Save(ctx, pid, domain.NewProject(pid, "main"))
		_ = mgr.Delete(ctx, pid)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("memory leak: %d locks remaining after delete", n)
	}
}
