package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Grid used for documents without a position.
const (
	gridColumns = 5
	gridX       = 250.0
	gridY       = 150.0
)

// ExpressionCondition is the condition type produced for string conditions.
const ExpressionCondition = "expression"

// Importer adapts a Loam repository of story documents to ports.Importer.
// Each document becomes a node; its content is the node text.
type Importer struct {
	Repo *loam.TypedRepository[NodeMetadata]
}

// New creates a new Loam importer.
func New(repo *loam.TypedRepository[NodeMetadata]) *Importer {
	return &Importer{
		Repo: repo,
	}
}

var _ ports.Importer = (*Importer)(nil)

// Import reads every document and wires transitions into edges.
// Nodes are returned in id order so repeated imports lay out identically.
func (i *Importer) Import(ctx context.Context) (*ports.Imported, error) {
	docs, err := i.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	type entry struct {
		meta    NodeMetadata
		content string
	}
	seen := make(map[string]string, len(docs))
	entries := make(map[string]entry, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)
		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		entries[id] = entry{meta: doc.Data, content: strings.TrimSpace(doc.Content)}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := &ports.Imported{}
	kinds := make(map[string]domain.NodeKind, len(ids))
	for idx, id := range ids {
		e := entries[id]
		kind, err := parseKind(e.meta.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		at := domain.Coordinates{X: float64(idx%gridColumns) * gridX, Y: float64(idx/gridColumns) * gridY}
		if e.meta.Position != nil {
			at = *e.meta.Position
		}
		out.Nodes = append(out.Nodes, &domain.Node{
			ID:          id,
			Kind:        kind,
			Coordinates: at,
			Data:        &domain.NodeData{Text: e.content, Title: e.meta.Title, Color: e.meta.Color},
		})
		kinds[id] = kind
	}

	link := func(from, to string, cond any) error {
		to = trimExtension(to)
		if _, ok := kinds[to]; !ok {
			return fmt.Errorf("%w: %s leads to unknown node %q", domain.ErrInvalidEdge, from, to)
		}
		if kinds[from] == domain.KindChoice && kinds[to] == domain.KindChoice {
			return fmt.Errorf("%w: %s -> %s", domain.ErrChoiceToChoice, from, to)
		}
		groups, err := decodeCondition(cond)
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", from, to, err)
		}
		out.Edges = append(out.Edges, &domain.Edge{StartNodeID: from, EndNodeID: to, Conditions: groups})
		return nil
	}

	for _, id := range ids {
		meta := entries[id].meta
		if meta.To != "" {
			if err := link(id, meta.To, nil); err != nil {
				return nil, err
			}
		}
		for _, t := range meta.Transitions {
			if err := link(id, t.target(), t.Condition); err != nil {
				return nil, err
			}
		}
		for n, opt := range meta.Options {
			choiceID := fmt.Sprintf("%s#%d", id, n+1)
			if _, taken := kinds[choiceID]; taken {
				return nil, fmt.Errorf("collision detected: option node '%s'", choiceID)
			}
			owner := nodeByID(out.Nodes, id)
			out.Nodes = append(out.Nodes, domain.NewChoice(choiceID, domain.Coordinates{
				X: owner.Coordinates.X + gridX/2,
				Y: owner.Coordinates.Y + float64(n)*gridY/2,
			}, domain.NodeData{Text: opt.Text}))
			kinds[choiceID] = domain.KindChoice
			if err := link(id, choiceID, opt.Condition); err != nil {
				return nil, err
			}
			if target := opt.target(); target != "" {
				if err := link(choiceID, target, nil); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func parseKind(t string) (domain.NodeKind, error) {
	switch strings.ToLower(t) {
	case "", "text", string(domain.KindNarrative):
		return domain.KindNarrative, nil
	case string(domain.KindChoice), "option":
		return domain.KindChoice, nil
	case string(domain.KindNote):
		return domain.KindNote, nil
	}
	return "", fmt.Errorf("%w: unsupported document type %q", domain.ErrInvalidNode, t)
}

// decodeCondition turns a frontmatter condition into a single "and" group.
func decodeCondition(raw any) ([]domain.ConditionGroup, error) {
	var c domain.Condition
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		c = domain.Condition{Type: ExpressionCondition, Params: map[string]any{"expr": v}}
	case map[string]any, map[any]any:
		if err := mapstructure.Decode(v, &c); err != nil {
			return nil, fmt.Errorf("failed to decode condition: %w", err)
		}
		if c.Type == "" {
			return nil, fmt.Errorf("condition missing type")
		}
	default:
		return nil, fmt.Errorf("invalid condition type: %T", raw)
	}
	return []domain.ConditionGroup{{Operator: "and", Conditions: []domain.Condition{c}}}, nil
}

func nodeByID(nodes []*domain.Node, id string) *domain.Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
