package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/ports"
)

// ErrInvalidFlow is returned when a flow has structural problems.
var ErrInvalidFlow = errors.New("invalid flow")

// Report summarizes a flow read from an import source.
type Report struct {
	Nodes    int
	Edges    int
	Starting []string
	Ending   []string
	Problems []string
}

// ValidateFlow reads importer and checks what the editor would refuse on
// insert, plus nodes that no starting port can reach.
func ValidateFlow(ctx context.Context, importer ports.Importer) (*Report, error) {
	in, err := importer.Import(ctx)
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	// The fragment is checked as the layer it would become.
	l := domain.NewLayer("flow", "", "", 0)
	for _, n := range in.Nodes {
		l.PutNode(n)
	}

	report := &Report{Nodes: len(l.Nodes), Edges: len(in.Edges)}
	seen := make(map[domain.EdgeKey]bool)
	outgoing := make(map[string][]string)
	for i, e := range in.Edges {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		start, okStart := l.Nodes[e.StartNodeID]
		end, okEnd := l.Nodes[e.EndNodeID]
		if !okStart || !okEnd {
			report.Problems = append(report.Problems, fmt.Sprintf("edge %s: missing endpoint", id))
			continue
		}
		if start.Kind == domain.KindChoice && end.Kind == domain.KindChoice {
			report.Problems = append(report.Problems, fmt.Sprintf("edge %s: choice %s cannot lead to choice %s", id, start.ID, end.ID))
		}
		if seen[e.Key()] {
			report.Problems = append(report.Problems, fmt.Sprintf("edge %s: duplicates %s -> %s", id, start.ID, end.ID))
		}
		seen[e.Key()] = true
		l.Edges[id] = e
		outgoing[e.StartNodeID] = append(outgoing[e.StartNodeID], e.EndNodeID)
	}

	starting, ending := graph.ComputePorts(l)
	for _, p := range starting {
		report.Starting = append(report.Starting, p.ID)
	}
	for _, p := range ending {
		report.Ending = append(report.Ending, p.ID)
	}

	// Crawl from every starting port.
	visited := make(map[string]bool)
	queue := append([]string{}, report.Starting...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, next := range outgoing[current] {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	for _, n := range l.OrderedNodes() {
		if !visited[n.ID] {
			report.Problems = append(report.Problems, fmt.Sprintf("node %s: unreachable from any starting node", n.ID))
		}
	}

	if len(report.Problems) > 0 {
		return report, fmt.Errorf("%w: found %d problems:\n- %s", ErrInvalidFlow, len(report.Problems), strings.Join(report.Problems, "\n- "))
	}
	return report, nil
}
