/*
Package goflow is the editing core of a branching-narrative graph editor.

A story is a graph of typed nodes (narrative, choice, note) joined by
conditioned edges. A layer node folds a whole sub-graph into one node of its
parent; layers nest to any depth, and every layer node exposes the entry
(starting) and exit (ending) nodes of its sub-graph as ports that edges in
the parent can target.

# Concept

Every user action is a command. The Editor runs commands against the layer
repository, records them in a bounded history and emits one operation record
per logical change to the configured sink. Undo and redo are refused while
the user is looking at another layer than the one a command changed, or when
replaying it would delete the layer being viewed.

Copy, cut, paste and duplicate capture a fragment of the graph with
everything nested under it and insert a fresh copy: every node, edge and
layer gets a new id and all references between them are rewritten.

# Key Features

  - Port synchronization: layer ports follow the inner topology and keep
    their connection state across edits.
  - Exact undo: deletions remember cascaded layers, edges and ports.
  - Safety gates: view affinity and structural checks before undo or redo.
  - Pluggable boundaries: operation sink, notifier, view refresher and id
    generator are small interfaces in pkg/ports.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/goflowspace/goflow"
		"github.com/goflowspace/goflow/pkg/domain"
		"github.com/goflowspace/goflow/pkg/graph"
	)

	func main() {
		ctx := context.Background()
		ed := goflow.New()

		start, err := ed.AddNode(ctx, domain.NewNarrative("", domain.Coordinates{}, domain.NodeData{Text: "You wake up."}))
		if err != nil {
			log.Fatal(err)
		}
		pick, err := ed.AddNode(ctx, domain.NewChoice("", domain.Coordinates{X: 250}, domain.NodeData{Text: "Get up?"}))
		if err != nil {
			log.Fatal(err)
		}
		if _, err := ed.Connect(ctx, graph.ConnectParams{Source: start, Target: pick}); err != nil {
			log.Fatal(err)
		}

		if _, err := ed.Undo(ctx); err != nil {
			log.Fatal(err)
		}
	}
*/
package goflow
