/*
Package observability turns engine lifecycle hooks into Prometheus metrics
and structured log lines.

Hooks from several consumers are combined with an Aggregator and installed
with vine.WithLifecycleHooks.
*/
package observability
