package session

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/crmkit/genwatch/internal/common/cnst"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry derives the tab's stable session identifier from its address.
// The identifier lives in the address's query parameters so it survives a
// reload and is copied along with the address into new tabs. Once resolved
// it is fixed for the registry's lifetime.
type Registry struct {
	logger *zap.Logger

	mu   sync.Mutex
	addr *url.URL
	id   string
}

// New creates a registry for the given tab address.
func New(logger *zap.Logger, address string) (*Registry, error) {
	addr, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tab address: %w", err)
	}
	return &Registry{
		logger: logger.Named("session"),
		addr:   addr,
	}, nil
}

// Resolve returns the current session identifier, recovering it from the
// address or generating and embedding a fresh one. Repeated calls return the
// same value.
func (r *Registry) Resolve() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.id != "" {
		return r.id
	}

	q := r.addr.Query()
	if id := q.Get(cnst.SessionQueryParam); id != "" {
		r.id = id
		r.logger.Debug("recovered session from address",
			zap.String("session", shorten(id)))
		return r.id
	}

	r.id = uuid.NewString()
	q.Set(cnst.SessionQueryParam, r.id)
	r.addr.RawQuery = q.Encode()
	r.logger.Debug("generated new session",
		zap.String("session", shorten(r.id)))
	return r.id
}

// Address returns the tab address with the session identifier embedded, so
// it round-trips unchanged through a reload.
func (r *Registry) Address() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr.String()
}

// shorten truncates an identifier for log output.
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
