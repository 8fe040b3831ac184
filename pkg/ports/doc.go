/*
Package ports defines the driven ports (interfaces) of the vine engine and its collaborators.

These interfaces decouple the reactive core from external implementations, allowing
persistence to work with various storage backends and the notification pass to hand its
callbacks to any UI batching primitive.

# Key Interfaces

  - Storage: A string key/value backend used by the persistence collaborator.
  - DistributedLocker: Provides distributed locking so replicas do not interleave flushes.
  - Batcher: Runs the callbacks collected by one finalize pass as a single UI update.
  - Scheduler: Defers the finalize continuation to the next microtask boundary.
*/
package ports
