/*
Package ports defines the boundary contracts of the goflow editor core.

These interfaces decouple the graph/command engine from its collaborators:
persistence and multi-client replication, user notifications, the rendering
layer, identity generation and document import.

# Key Interfaces

  - OperationSink: receives one ordered change record per committed mutation.
  - Notifier: surfaces user-facing outcomes (errors, successes, navigation hints).
  - ViewRefresher: asks the rendering layer to resynchronise given layers.
  - IDGenerator: produces collision-free identifiers for new entities.
  - ProjectStore: persists whole project snapshots.
  - DistributedLocker: coordinates access to a project across replicas.
  - Importer: produces nodes and edges from an external document source.
*/
package ports
