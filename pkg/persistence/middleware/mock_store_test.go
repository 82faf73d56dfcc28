package middleware_test

import (
	"context"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Project
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Project),
	}
}

func (s *MockStore) Save(ctx context.Context, projectID string, p *domain.Project) error {
	s.data[projectID] = p
	return nil
}

func (s *MockStore) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	p, ok := s.data[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

func (s *MockStore) Delete(ctx context.Context, projectID string) error {
	delete(s.data, projectID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.ProjectStore = (*MockStore)(nil)

// projectWithSecret builds root: a -> b with a condition holding credentials.
func projectWithSecret() *domain.Project {
	p := domain.NewProject("p1", "main")
	root := p.Layers[p.RootLayerID]
	root.PutNode(domain.NewNarrative("a", domain.Coordinates{}, domain.NodeData{Text: "my-secret-sauce"}))
	root.PutNode(domain.NewNarrative("b", domain.Coordinates{X: 100}, domain.NodeData{Text: "b"}))
	root.Edges["e1"] = &domain.Edge{
		ID: "e1", StartNodeID: "a", EndNodeID: "b",
		Conditions: []domain.ConditionGroup{{ID: "g1", Operator: "and", Conditions: []domain.Condition{{
			ID:   "c1",
			Type: "webhook",
			Params: map[string]any{
				"url":       "https://example.test",
				"api_token": "tok-123",
				"auth":      map[string]any{"user": "jdoe", "user_password": "hunter2"},
			},
		}}}},
	}
	return p
}
