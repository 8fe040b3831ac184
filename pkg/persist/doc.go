/*
Package persist mirrors a store's top-level state into a ports.Storage backend.

On start it restores a versioned envelope written by a previous process, then
listens for committed changes and writes them back, throttled by a flush
interval. Writes to one key are serialized in-process and, when a
ports.DistributedLocker is configured, across replicas sharing a backend.
*/
package persist
