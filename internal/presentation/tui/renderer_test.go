package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goflowspace/goflow/pkg/domain"
)

func TestLayerMarkdown(t *testing.T) {
	l := domain.NewLayer("l1", "Chapter", "root", 1)
	l.Description = "The first chapter"
	l.PutNode(domain.NewNarrative("a", domain.Coordinates{X: 1, Y: 2}, domain.NodeData{Text: "left | right"}))
	l.PutNode(domain.NewChoice("b", domain.Coordinates{}, domain.NodeData{Title: "Go"}))
	l.Edges["e1"] = &domain.Edge{ID: "e1", StartNodeID: "a", EndNodeID: "b"}

	md := LayerMarkdown(l, []string{"root", "l1"})
	for _, want := range []string{
		"# Chapter",
		"`root / l1`",
		"The first chapter",
		`| a | narrative | left \| right | 1, 2 |`,
		"| b | choice | Go | 0, 0 |",
		"| e1 | a | b | 0 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q\nGot:\n%s", want, md)
		}
	}

	empty := LayerMarkdown(domain.NewLayer("root", "", "", 0), nil)
	if !strings.Contains(empty, "# root") || !strings.Contains(empty, "_empty_") {
		t.Errorf("Unexpected markdown for empty layer:\n%s", empty)
	}
	if strings.Contains(empty, "## Edges") {
		t.Error("Expected no edge table for a layer without edges")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if lines := strings.Count(buf.String(), "\n"); lines != len(bannerLines)+2 {
		t.Errorf("Expected %d lines, got %d", len(bannerLines)+2, lines)
	}
}
