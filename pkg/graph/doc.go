// Package graph implements the layer repository and the port
// synchronization engine.
//
// A Store owns every layer of a project as a flat map keyed by layer id;
// parent/child relations are id references only. Each structural mutation
// recomputes the entry (starting) and exit (ending) ports that the mutated
// layer exposes to its parent and propagates the refresh up the ancestor
// chain, emitting a "layer.endings.updated" operation per refreshed layer node.
package graph
