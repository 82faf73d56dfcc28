package middleware

import (
	"context"
	"regexp"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ProjectStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks edge condition parameters
// whose keys match one of the patterns before the project is stored.
// Nested parameter maps are masked too.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ProjectStore) ports.ProjectStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, projectID string, p *domain.Project) error {
	// The editor keeps using p, so mask a copy.
	masked := p.Clone()
	for _, l := range masked.Layers {
		for _, e := range l.Edges {
			for _, g := range e.Conditions {
				for _, c := range g.Conditions {
					maskMap(c.Params, m.patterns)
				}
			}
		}
	}
	return m.next.Save(ctx, projectID, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	return m.next.Load(ctx, projectID)
}

func (m *piiMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(params map[string]any, patterns []*regexp.Regexp) {
	for k, v := range params {
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
			continue
		}
		for _, p := range patterns {
			if p.MatchString(k) {
				params[k] = Mask
				break
			}
		}
	}
}
