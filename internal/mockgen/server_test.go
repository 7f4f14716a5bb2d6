package mockgen

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/common/dto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func smallConfig() *config.MockServerConfig {
	return &config.MockServerConfig{
		Companies:  4,
		Contacts:   6,
		BatchSize:  2,
		BatchPause: time.Millisecond,
		PauseGrace: 100 * time.Millisecond,
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(zap.NewNop(), smallConfig(), nil)
	router := gin.New()
	srv.RegisterRoutes(router)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(cnst.SessionAnnouncePrefix+sessionID)))
	return conn
}

func triggerJSON(t *testing.T, ts *httptest.Server, sessionID string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(dto.TriggerRequest{SessionID: sessionID})
	resp, err := http.Post(ts.URL+"/create-test-data", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWS_HeartbeatReply(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// A heartbeat before the session announcement is still answered.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestWS_AnnouncementBindsSession(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialWS(t, ts, "sess-1")

	require.Eventually(t, func() bool { return srv.Manager().Exists("sess-1") }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestStatus_UnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/generation-status/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrigger_BadRequest(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/create-test-data", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrigger_UnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	resp := triggerJSON(t, ts, "ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrigger_AlreadyRunning(t *testing.T) {
	srv, ts := newTestServer(t)
	dialWS(t, ts, "sess-1")
	require.Eventually(t, func() bool { return srv.Manager().Exists("sess-1") }, time.Second, 5*time.Millisecond)
	require.NoError(t, srv.Manager().StartGeneration("sess-1"))

	resp := triggerJSON(t, ts, "sess-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tr dto.TriggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Equal(t, cnst.TriggerStatusAlreadyRunning, tr.Status)
}

func TestTrigger_PausedConflict(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Manager().Attach("sess-1", nil)
	require.NoError(t, srv.Manager().StartGeneration("sess-1"))
	srv.Manager().Detach("sess-1", nil)

	resp := triggerJSON(t, ts, "sess-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTrigger_FullRun(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialWS(t, ts, "sess-1")
	require.Eventually(t, func() bool { return srv.Manager().Exists("sess-1") }, time.Second, 5*time.Millisecond)

	// Collect streamed events while the trigger request runs.
	events := make(chan dto.Event, 256)
	go func() {
		defer close(events)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev dto.Event
			if json.Unmarshal(data, &ev) == nil {
				events <- ev
			}
		}
	}()

	resp := triggerJSON(t, ts, "sess-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr dto.TriggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Equal(t, 4, tr.CompaniesCreated)
	assert.Equal(t, 6, tr.ContactsCreated)
	assert.Equal(t, 6, tr.SuccessfulLinks)

	var types []string
	var complete *dto.Event
	deadline := time.After(5 * time.Second)
collect:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break collect
			}
			types = append(types, ev.Type)
			if ev.Type == cnst.EventComplete.String() {
				e := ev
				complete = &e
				break collect
			}
		case <-deadline:
			t.Fatal("timed out waiting for completion event")
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, cnst.EventStart.String(), types[0])
	assert.Contains(t, types, cnst.EventCompaniesStart.String())
	assert.Contains(t, types, cnst.EventCompaniesProgress.String())
	assert.Contains(t, types, cnst.EventCompaniesComplete.String())
	assert.Contains(t, types, cnst.EventCompanyWithContact.String())
	assert.Contains(t, types, cnst.EventContactAdded.String())

	require.NotNil(t, complete)
	require.Len(t, complete.Companies, 4)
	total := 0
	for _, c := range complete.Companies {
		total += len(c.Contacts)
	}
	assert.Equal(t, 6, total)

	// The job is finished; the session reports inactive.
	st, ok := srv.Manager().Status("sess-1")
	require.True(t, ok)
	assert.False(t, st.GenerationActive)
}

func TestSessionInfo(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Manager().Attach("sess-1", nil)
	require.NoError(t, srv.Manager().StartGeneration("sess-1"))

	resp, err := http.Get(ts.URL + "/session-info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info struct {
		ActiveSessions      int  `json:"active_sessions"`
		HasConnections      bool `json:"has_connections"`
		AnyActiveGeneration bool `json:"any_active_generation"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 1, info.ActiveSessions)
	assert.False(t, info.HasConnections)
	assert.True(t, info.AnyActiveGeneration)
}
