package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crmkit/genwatch/internal/channel"
	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/dispatch"
	"github.com/crmkit/genwatch/internal/session"
	"github.com/crmkit/genwatch/internal/state"
	"github.com/crmkit/genwatch/internal/status"
	"github.com/crmkit/genwatch/pkg/metrics"

	"go.uber.org/zap"
)

// Watcher is one tab: a session identity, a duplex connection to the
// generation backend and a dispatcher feeding the shared state store. The
// store (and its broadcast transport) is injected so sibling watchers can
// share a scope; everything else is owned by the watcher and torn down by
// Close.
type Watcher struct {
	logger   *zap.Logger
	cfg      *config.WatcherConfig
	registry *session.Registry
	store    *state.Store
	status   *status.Client
	channel  *channel.Channel

	sessionID string
	closeOnce sync.Once
}

// New wires a watcher around the injected store.
func New(logger *zap.Logger, cfg *config.WatcherConfig, store *state.Store, m *metrics.Metrics) (*Watcher, error) {
	registry, err := session.New(logger, cfg.Address)
	if err != nil {
		return nil, err
	}
	sessionID := registry.Resolve()
	store.Set(cnst.KeySessionID, sessionID)

	dispatcher := dispatch.New(logger, m, store)

	cfg.Channel.SetDefaults()
	maxAttempts := cfg.Channel.MaxReconnectAttempts
	ch := channel.New(logger, m, cfg.Channel, cfg.Server.WSURL, sessionID, channel.Callbacks{
		OnOpen: func() {
			store.Set(cnst.KeyWSConnected, true)
			store.Set(cnst.KeyReconnectAttempts, 0)
		},
		OnMessage: dispatcher.Handle,
		OnClose: func() {
			store.Set(cnst.KeyWSConnected, false)
		},
		OnReconnecting: func(attempt int) {
			store.Set(cnst.KeyReconnectAttempts, attempt)
			store.SetStatus(fmt.Sprintf("Connection lost, reconnecting (%d/%d)...", attempt, maxAttempts), cnst.StatusTypeInfo)
		},
		OnError: func(err error) {
			if errors.Is(err, channel.ErrReconnectExhausted) {
				store.SetStatus("Connection failed. Reload the tab to retry.", cnst.StatusTypeError)
			}
		},
	})

	return &Watcher{
		logger:    logger.Named("watcher"),
		cfg:       cfg,
		registry:  registry,
		store:     store,
		status:    status.NewClient(logger, cfg.Server.BaseURL),
		channel:   ch,
		sessionID: sessionID,
	}, nil
}

// SessionID returns the tab's resolved session identifier.
func (w *Watcher) SessionID() string {
	return w.sessionID
}

// Address returns the tab address with the session identifier embedded.
func (w *Watcher) Address() string {
	return w.registry.Address()
}

// Store returns the injected state store.
func (w *Watcher) Store() *state.Store {
	return w.store
}

// Start reconciles against the backend's job status and opens the
// connection. Status reconciliation runs first so a tab attaching to an
// in-flight job shows correct state before the first live event.
func (w *Watcher) Start(ctx context.Context) error {
	w.status.Prime(ctx, w.sessionID, w.store)
	return w.channel.Connect()
}

// Run starts the watcher and blocks until ctx is cancelled, then tears the
// tab down.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	w.logger.Info("watcher running",
		zap.String("session", w.sessionID),
		zap.String("address", w.Address()))
	<-ctx.Done()
	w.Close()
	return nil
}

// Trigger asks the backend to start the generation job for this session.
func (w *Watcher) Trigger(ctx context.Context) error {
	return w.status.Trigger(ctx, w.sessionID, w.store)
}

// Close tears down the connection (with both of its timers) and stops the
// store's broadcast loops. Safe to call more than once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.channel.Close()
		w.store.Close()
	})
}
