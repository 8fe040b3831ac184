package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // Store name -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(store string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[store]; !ok {
		sm.subscribers[store] = make(map[chan<- string]struct{})
	}
	sm.subscribers[store][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[store]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, store)
			}
		}
	}
}

// Broadcast never blocks: a slow client drops messages.
func (sm *StreamManager) Broadcast(store string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[store] {
		select {
		case ch <- msg:
		default:
			slog.Warn("SSE: Client buffer full, dropping message", "store", store)
		}
	}
}

// watch installs, once per store, a listener that broadcasts the top-level
// diff of every committed pass.
func (s *Server) watch(store *vine.Store) {
	name := store.Name()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched[name] {
		return
	}
	s.watched[name] = true

	s.last[name] = snapshotMap(store)
	store.Subscribe(func(names []string) {
		next := snapshotMap(store)
		diff := domain.Diff(name, s.last[name], next)
		s.last[name] = next
		if diff.IsEmpty() {
			return
		}
		bytes, err := json.Marshal(diff)
		if err != nil {
			s.logger.Error("encode diff", "store", name, "err", err)
			return
		}
		s.Streams.Broadcast(name, string(bytes))
	})
}

func snapshotMap(store *vine.Store) map[string]any {
	m, _ := store.View().Snapshot().(map[string]any)
	return m
}

// SubscribeEvents handles GET /stores/{name}/events (SSE). The first message
// is the full snapshot; later ones carry changed top-level keys. A "watch"
// query parameter restricts messages to the listed keys.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	name := chi.URLParam(r, "name")
	var initial *domain.SnapshotDiff
	ch, cancel := s.Streams.Subscribe(name)
	defer cancel()

	err := s.withStore(r.Context(), name, func(store *vine.Store) error {
		s.watch(store)
		initial = domain.Diff(name, nil, snapshotMap(store))
		return nil
	})
	if err != nil {
		s.fail(w, "subscribe", err)
		return
	}

	var watchList []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			watchList = append(watchList, strings.TrimSpace(field))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if initial != nil {
		if bytes, err := json.Marshal(filterDiff(initial, watchList)); err == nil {
			fmt.Fprintf(w, "data: %s\n\n", bytes)
		}
	}
	flusher.Flush()
	s.logger.Info("SSE: Subscribing to store updates", "store", name)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "store", name)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 {
				var diff domain.SnapshotDiff
				if err := json.Unmarshal([]byte(msg), &diff); err == nil {
					filtered := filterDiff(&diff, watchList)
					if filtered.IsEmpty() {
						continue
					}
					if bytes, err := json.Marshal(filtered); err == nil {
						msg = string(bytes)
					}
				}
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func filterDiff(diff *domain.SnapshotDiff, watch []string) *domain.SnapshotDiff {
	if len(watch) == 0 || diff == nil {
		return diff
	}
	out := &domain.SnapshotDiff{Store: diff.Store, Changes: map[string]any{}}
	for _, key := range watch {
		if v, ok := diff.Changes[key]; ok {
			out.Changes[key] = v
		}
	}
	return out
}
