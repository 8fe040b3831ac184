/*
Package domain contains the types shared between the vine engine and its collaborators.

It is kept free of I/O and of the engine internals, following Hexagonal Architecture
principles: adapters, observers and the persistence layer only depend on this package
and on the ports.

# Key Entities

  - Callback: A comparable handle around a notification function (Go funcs are not comparable).
  - LifecycleHooks: Observability callbacks fired by the engine (writes, computed evaluations, finalize passes).
  - Errors: Sentinel errors for protocol violations and collaborator failures.
  - Diff: Top-level delta between two plain snapshots.
*/
package domain
