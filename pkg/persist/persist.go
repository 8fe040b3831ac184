package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/ports"
)

// DefaultFlushInterval is the minimum spacing between two writes of one store.
const DefaultFlushInterval = 200 * time.Millisecond

// Envelope is the stored representation of a store.
type Envelope struct {
	Store   bool           `json:"__store__"`
	Version int            `json:"ver"`
	Data    map[string]any `json:"data"`
}

// VersionUpdateFunc migrates data written under an older version.
type VersionUpdateFunc func(oldVersion int, data map[string]any) (map[string]any, error)

// Options configures Persist.
type Options struct {
	// Key names the storage item.
	Key string
	// Version is written into every envelope. A stored envelope with another
	// version goes through OnVersionUpdate before it is restored.
	Version int
	Storage ports.Storage
	// AllowList, when non-empty, selects the persisted top-level props and
	// takes precedence over DenyList.
	AllowList []string
	DenyList  []string

	OnVersionUpdate VersionUpdateFunc

	// FlushInterval defaults to DefaultFlushInterval. A negative value
	// disables throttling.
	FlushInterval time.Duration

	Locker  ports.DistributedLocker
	LockTTL time.Duration

	// Strict makes an unreadable stored item fail Persist instead of being
	// logged and ignored.
	Strict bool

	Logger *slog.Logger
}

// Persister keeps one store in sync with its storage item.
type Persister struct {
	store  *core.Store
	opts   Options
	guard  *Guard
	logger *slog.Logger
	filter func(prop string) bool

	unsubscribe func()

	writeMu sync.Mutex // held for the whole write, like an in-flight promise

	mu         sync.Mutex
	pending    []byte
	changed    bool
	throttling bool
	done       chan struct{}
	closed     bool
}

// Persist restores store from opts.Storage and starts mirroring its changes.
// It must be called on the goroutine that owns the store's engine, like any
// other store access.
func Persist(ctx context.Context, store *core.Store, opts Options) (*Persister, error) {
	if opts.Key == "" {
		return nil, errors.New("persist: key is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("persist: storage is required")
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = DefaultFlushInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With("persist", opts.Key)

	p := &Persister{
		store:  store,
		opts:   opts,
		logger: logger,
		filter: selector(opts.AllowList, opts.DenyList),
		guard: NewGuard(opts.Storage,
			WithLocker(opts.Locker),
			WithLockTTL(opts.LockTTL),
			WithGuardLogger(logger),
		),
		done: make(chan struct{}),
	}
	if err := p.restore(ctx); err != nil {
		logger.Warn("read storage data error", "err", err)
		if opts.Strict {
			return nil, err
		}
	}

	p.unsubscribe = store.Subscribe(p.onChange)
	return p, nil
}

// selector builds the top-level prop filter; the allow-list wins.
func selector(allow, deny []string) func(string) bool {
	switch {
	case len(allow) > 0:
		return func(prop string) bool { return slices.Contains(allow, prop) }
	case len(deny) > 0:
		return func(prop string) bool { return !slices.Contains(deny, prop) }
	default:
		return func(string) bool { return true }
	}
}

func (p *Persister) filtered() bool {
	return len(p.opts.AllowList) > 0 || len(p.opts.DenyList) > 0
}

// Decode parses a stored item into an Envelope.
func Decode(raw string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}
	if !env.Store {
		return nil, fmt.Errorf("%w: missing __store__ marker", domain.ErrInvalidEnvelope)
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	return &env, nil
}

func (p *Persister) restore(ctx context.Context) error {
	raw, err := p.guard.Load(ctx, p.opts.Key)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && raw == "") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %q: %w", p.opts.Key, err)
	}
	p.logger.Debug("read from storage", "bytes", len(raw))

	env, err := Decode(raw)
	if err != nil {
		return err
	}

	data := env.Data
	if env.Version != p.opts.Version && p.opts.OnVersionUpdate != nil {
		data, err = p.opts.OnVersionUpdate(env.Version, data)
		if err != nil {
			return fmt.Errorf("migrate %q from version %d: %w", p.opts.Key, env.Version, err)
		}
		p.logger.Info("migrated stored data", "from", env.Version, "to", p.opts.Version)
	}

	return p.store.Produce(func(inner *core.View) error {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !p.filter(k) {
				continue
			}
			if err := inner.Set(k, data[k]); err != nil {
				// Props that became computed or invalid are skipped, not fatal.
				p.logger.Warn("skip stored prop", "prop", k, "err", err)
			}
		}
		return nil
	})
}

// onChange runs on the engine goroutine, so the snapshot is taken here and
// only the write happens elsewhere.
func (p *Persister) onChange(names []string) {
	if p.filtered() && !shouldStore(names, p.filter) {
		return
	}

	data, err := json.Marshal(p.capture())
	if err != nil {
		p.logger.Error("encode store data", "err", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = data
	p.changed = true
	if !p.throttling {
		p.throttling = true
		go p.throttle()
	}
}

// capture builds the envelope from the latest committed state.
func (p *Persister) capture() Envelope {
	data := map[string]any{}
	if snap, ok := p.store.View().Snapshot().(map[string]any); ok {
		for k, v := range snap {
			if p.filter(k) {
				data[k] = v
			}
		}
	}
	return Envelope{Store: true, Version: p.opts.Version, Data: data}
}

// throttle writes immediately, then at most once per FlushInterval while
// changes keep coming.
func (p *Persister) throttle() {
	for {
		err := p.Flush(context.Background())
		if err != nil {
			p.logger.Warn("flush failed", "err", err)
		}

		if p.opts.FlushInterval > 0 {
			timer := time.NewTimer(p.opts.FlushInterval)
			select {
			case <-timer.C:
			case <-p.done:
				timer.Stop()
			}
		}

		p.mu.Lock()
		// Without an interval a failing backend would be retried in a tight loop.
		if !p.changed || p.closed || (err != nil && p.opts.FlushInterval < 0) {
			p.throttling = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Flush writes the latest captured state if it was not written yet.
// It is safe to call from any goroutine.
func (p *Persister) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if !p.changed {
		p.mu.Unlock()
		return nil
	}
	data := p.pending
	p.changed = false
	p.mu.Unlock()

	p.logger.Debug("set storage", "bytes", len(data))
	if err := p.guard.Save(ctx, p.opts.Key, string(data)); err != nil {
		p.mu.Lock()
		p.changed = true
		p.mu.Unlock()
		return fmt.Errorf("write %q: %w", p.opts.Key, err)
	}
	return nil
}

// Cancel stops listening for changes. Captured but unwritten changes stay
// available to Flush. Like Persist, it must run on the engine goroutine.
func (p *Persister) Cancel() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.unsubscribe()
}

// Key returns the storage key.
func (p *Persister) Key() string {
	return p.opts.Key
}

// shouldStore reports whether any changed name falls under a selected
// top-level prop. Names look like "<store>.<prop>[.<rest>]".
func shouldStore(names []string, filter func(string) bool) bool {
	for _, name := range names {
		parts := strings.SplitN(name, ".", 3)
		if len(parts) > 1 && filter(parts[1]) {
			return true
		}
	}
	return false
}
