package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/internal/adapters/file"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/adapters/memory"
	"github.com/aretw0/vine/pkg/adapters/redis"
	"github.com/aretw0/vine/pkg/adapters/sqlite"
	"github.com/aretw0/vine/pkg/definition"
	"github.com/aretw0/vine/pkg/formula"
	"github.com/aretw0/vine/pkg/persist"
	"github.com/aretw0/vine/pkg/persistence/middleware"
	"github.com/aretw0/vine/pkg/ports"
	"github.com/spf13/cobra"
)

// encryptionKeyEnv holds a base64 AES-256 key; when set, stored items are encrypted.
const encryptionKeyEnv = "VINE_ENCRYPTION_KEY"

// backend bundles the storage selected by flags with what must be closed.
type backend struct {
	storage ports.Storage
	locker  ports.DistributedLocker
	closer  io.Closer
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.New(logging.ParseLevel(level))
}

func openBackend(cmd *cobra.Command) (*backend, error) {
	kind, _ := cmd.Flags().GetString("backend")
	data, _ := cmd.Flags().GetString("data")
	namespace, _ := cmd.Flags().GetString("namespace")
	useLock, _ := cmd.Flags().GetBool("lock")

	b := &backend{}
	switch kind {
	case "file":
		b.storage = file.New(data)
	case "memory":
		b.storage = memory.NewStore()
	case "sqlite":
		path := data
		if filepath.Ext(path) == "" {
			path = filepath.Join(data, "vine.db")
			if err := os.MkdirAll(data, 0755); err != nil {
				return nil, err
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		b.storage, b.closer = store, store
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		store := redis.New(addr, os.Getenv("VINE_REDIS_PASSWORD"), 0)
		b.storage, b.closer = store, store
		if useLock {
			b.locker = redis.NewLocker(store.Client(), redis.DefaultPrefix)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}

	var mws []middleware.Middleware
	if namespace != "" {
		mws = append(mws, middleware.NewPrefixMiddleware(namespace))
	}
	if raw := os.Getenv(encryptionKeyEnv); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("%s must be a base64 encoded 32 byte key", encryptionKeyEnv)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	b.storage = middleware.Chain(b.storage, mws...)
	return b, nil
}

// app is a loaded definition file with its stores and persisters.
type app struct {
	def        *definition.File
	stores     []*vine.Store // aligned with def.Stores
	engine     *vine.Engine
	persisters []*persist.Persister
	backend    *backend
}

// loadApp builds the engine from --file and starts persistence for every
// store that declares it. It runs before the engine loop starts, so it may
// touch stores directly.
func loadApp(ctx context.Context, cmd *cobra.Command, opts ...vine.Option) (*app, error) {
	path, _ := cmd.Flags().GetString("file")
	logger := newLogger(cmd)

	def, err := definition.Load(path)
	if err != nil {
		return nil, err
	}

	eng := vine.New(append([]vine.Option{vine.WithLogger(logger)}, opts...)...)
	stores, err := def.Build(eng.Core(), formula.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{def: def, stores: stores, engine: eng}
	for i, spec := range def.Stores {
		if spec.Persist == nil {
			continue
		}
		if a.backend == nil {
			if a.backend, err = openBackend(cmd); err != nil {
				return nil, err
			}
		}
		interval, err := spec.Persist.Interval()
		if err != nil {
			return nil, err
		}
		key := spec.Persist.Key
		if key == "" {
			key = spec.Name
		}
		p, err := persist.Persist(ctx, stores[i], persist.Options{
			Key:           key,
			Version:       spec.Persist.Version,
			Storage:       a.backend.storage,
			AllowList:     spec.Persist.Allow,
			DenyList:      spec.Persist.Deny,
			FlushInterval: interval,
			Locker:        a.backend.locker,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		a.persisters = append(a.persisters, p)
	}
	return a, nil
}

// Close flushes pending writes and releases the backend.
func (a *app) Close(ctx context.Context) error {
	var firstErr error
	for _, p := range a.persisters {
		if err := p.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
