package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/dto"
	"github.com/crmkit/genwatch/internal/state"

	"go.uber.org/zap"
)

// Client talks to the generation backend's trigger and status endpoints.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a status client for the backend at baseURL.
func NewClient(logger *zap.Logger, baseURL string) *Client {
	return &Client{
		logger:     logger.Named("status"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CheckStatus queries the per-session generation status.
func (c *Client) CheckStatus(ctx context.Context, sessionID string) (*dto.GenerationStatus, error) {
	url := fmt.Sprintf("%s/generation-status/%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var st dto.GenerationStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &st, nil
}

// Prime reconciles the store with the backend's view of the session before
// any live event arrives, so a tab opened mid-job shows correct state
// immediately. A failed status request is logged and treated as unknown: it
// never downgrades a running job to idle.
func (c *Client) Prime(ctx context.Context, sessionID string, store *state.Store) {
	st, err := c.CheckStatus(ctx, sessionID)
	if err != nil {
		c.logger.Warn("status check failed, leaving state unchanged",
			zap.Error(err))
		return
	}

	if !st.GenerationActive {
		return
	}

	store.SetLoading(true)
	if st.GenerationPaused {
		store.SetStatus("Generation paused, waiting for reconnection...", cnst.StatusTypeLoading)
	} else {
		store.SetStatus("Generation in progress...", cnst.StatusTypeLoading)
	}
	c.logger.Info("attached to in-flight generation",
		zap.Bool("paused", st.GenerationPaused))
}

// Trigger asks the backend to start a generation job for the session. An
// already-running job is not an error: the store is put into loading state
// with an informational status. Any other failure surfaces as an error
// status and clears loading.
func (c *Client) Trigger(ctx context.Context, sessionID string, store *state.Store) error {
	store.SetLoading(true)
	store.SetStatus("Creating test data...", cnst.StatusTypeLoading)

	body, err := json.Marshal(dto.TriggerRequest{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal trigger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create-test-data", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		store.SetLoading(false)
		store.SetStatus("Failed to start generation: "+err.Error(), cnst.StatusTypeError)
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		store.SetLoading(false)
		store.SetStatus(fmt.Sprintf("Failed to start generation (HTTP %d)", resp.StatusCode), cnst.StatusTypeError)
		return fmt.Errorf("trigger request returned %d", resp.StatusCode)
	}

	var tr dto.TriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		store.SetLoading(false)
		store.SetStatus("Failed to start generation: bad response", cnst.StatusTypeError)
		return fmt.Errorf("failed to decode trigger response: %w", err)
	}

	if tr.Status == cnst.TriggerStatusAlreadyRunning {
		store.SetLoading(true)
		store.SetStatus("Generation is already running for this session", cnst.StatusTypeInfo)
		c.logger.Info("generation already running",
			zap.String("session", sessionID))
		return nil
	}

	// The acceptance response arrives when the job finishes; live events
	// have normally completed the store by then, but the statistics line is
	// still worth surfacing.
	if tr.ContactsCreated > 0 || tr.CompaniesCreated > 0 {
		store.SetStatus(fmt.Sprintf("Done! Contacts: %d, Companies: %d, Links: %d",
			tr.ContactsCreated, tr.CompaniesCreated, tr.SuccessfulLinks), cnst.StatusTypeSuccess)
	}
	return nil
}
