package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/dto"
	"github.com/crmkit/genwatch/internal/state/broadcast"
	"github.com/crmkit/genwatch/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber receives every new value for a subscribed key.
type Subscriber func(value any)

// Store is the observable key/value state shared by all tabs in one
// broadcast scope. Set updates the local value, synchronously notifies local
// subscribers, and asynchronously fans the change out to sibling tabs.
// Updates arriving from siblings are applied and notified locally but never
// re-broadcast: the only publish path is Set.
type Store struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	transport broadcast.Transport
	origin    string

	mu      sync.RWMutex
	values  map[cnst.StateKey]any
	subs    map[cnst.StateKey]map[int]Subscriber
	nextSub int

	outbox chan *broadcast.Update
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// New creates a store bound to the given broadcast transport and starts
// listening for sibling updates. Close must be called on tab teardown.
func New(logger *zap.Logger, transport broadcast.Transport, m *metrics.Metrics) (*Store, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		logger:    logger.Named("state.store"),
		metrics:   m,
		transport: transport,
		origin:    uuid.NewString(),
		values:    defaults(),
		subs:      make(map[cnst.StateKey]map[int]Subscriber),
		outbox:    make(chan *broadcast.Update, 64),
		cancel:    cancel,
	}

	inbox, err := transport.Watch(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	s.done.Add(2)
	go s.publishLoop(ctx)
	go s.watchLoop(inbox)

	return s, nil
}

// defaults holds the declared initial value for every key; Get falls back to
// these after a reload until the status resolver and live events repopulate.
func defaults() map[cnst.StateKey]any {
	return map[cnst.StateKey]any{
		cnst.KeySessionID:         "",
		cnst.KeyWSConnected:       false,
		cnst.KeyLoading:           false,
		cnst.KeyStatus:            "",
		cnst.KeyStatusType:        "",
		cnst.KeyCompanies:         []dto.Company{},
		cnst.KeyReconnectAttempts: 0,
		cnst.KeyProgress:          dto.JobProgress{Phase: dto.PhaseIdle},
	}
}

// Origin returns the store's unique origin identifier.
func (s *Store) Origin() string {
	return s.origin
}

// Get returns the current value for key, or its declared default.
func (s *Store) Get(key cnst.StateKey) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set updates the value for key, notifies local subscribers synchronously
// and queues a broadcast to sibling tabs.
func (s *Store) Set(key cnst.StateKey, value any) {
	s.mu.Lock()
	s.values[key] = value
	subs := make([]Subscriber, 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to marshal value for broadcast",
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	update := &broadcast.Update{Origin: s.origin, Key: key.String(), Value: data}
	select {
	case s.outbox <- update:
	default:
		s.logger.Warn("broadcast outbox is full, dropping update",
			zap.String("key", key.String()))
	}
}

// Subscribe registers a callback for every subsequent value of key and
// returns an unsubscribe handle.
func (s *Store) Subscribe(key cnst.StateKey, fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[key] == nil {
		s.subs[key] = make(map[int]Subscriber)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}
}

// Close stops the broadcast loops. It does not close the transport; the
// owner that injected it tears it down.
func (s *Store) Close() {
	s.cancel()
	s.done.Wait()
}

// publishLoop drains the outbox in order, one publisher per store so sibling
// tabs observe this tab's updates in Set order.
func (s *Store) publishLoop(ctx context.Context) {
	defer s.done.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.outbox:
			if err := s.transport.Publish(ctx, u); err != nil {
				s.logger.Error("failed to broadcast update",
					zap.String("key", u.Key),
					zap.Error(err))
				continue
			}
			s.metrics.BroadcastSent()
		}
	}
}

// watchLoop applies sibling updates. It never publishes.
func (s *Store) watchLoop(inbox <-chan *broadcast.Update) {
	defer s.done.Done()
	for u := range inbox {
		if u.Origin == s.origin {
			// Our own echo from the transport.
			continue
		}
		key := cnst.StateKey(u.Key)
		value, err := decodeValue(key, u.Value)
		if err != nil {
			s.logger.Error("failed to decode sibling update",
				zap.String("key", u.Key),
				zap.Error(err))
			continue
		}
		s.metrics.BroadcastReceived()
		s.applyRemote(key, value)
	}
}

func (s *Store) applyRemote(key cnst.StateKey, value any) {
	s.mu.Lock()
	s.values[key] = value
	subs := make([]Subscriber, 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// decodeValue maps a broadcast payload back to the typed value a key holds
// locally. The key set is closed; unknown keys decode generically.
func decodeValue(key cnst.StateKey, raw json.RawMessage) (any, error) {
	switch key {
	case cnst.KeyCompanies:
		var v []dto.Company
		err := json.Unmarshal(raw, &v)
		return v, err
	case cnst.KeyProgress:
		var v dto.JobProgress
		err := json.Unmarshal(raw, &v)
		return v, err
	case cnst.KeyWSConnected, cnst.KeyLoading:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case cnst.KeyReconnectAttempts:
		var v int
		err := json.Unmarshal(raw, &v)
		return v, err
	case cnst.KeySessionID, cnst.KeyStatus, cnst.KeyStatusType:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		var v any
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}
