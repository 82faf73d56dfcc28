/*
Package domain contains the entity model of the goflow editor core.

It defines the hierarchical narrative graph: typed nodes, conditioned edges,
layers (sub-graphs that are themselves represented as nodes in their parent)
and the ports a layer exposes to its parent. The package is pure: no I/O, no
persistence, no locking.

# Key Entities

  - Node: a tagged variant over narrative, choice, note and layer kinds.
  - Edge: a link between two nodes of the same layer, optionally anchored on a
    layer node's entry or exit port.
  - Layer: a graph of nodes and edges with an insertion-ordered node list.
  - Port: the projection of an internal node with no incoming (starting) or no
    outgoing (ending) internal edge, as seen from the parent layer.
  - Project: a serialisable snapshot of all layers of one document.
  - Operation: the change record emitted to persistence after each mutation.
*/
package domain
