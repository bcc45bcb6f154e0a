package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/ChitLaq/ChitLaq-sub005/internal/config"
	"github.com/ChitLaq/ChitLaq-sub005/internal/runtime"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

func openTestServer(t *testing.T, mutate func(*cfgpkg.Config)) *Server {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "always"
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt, logpkg.NewNop())
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func connect(t *testing.T, s *Server, userID string) string {
	t.Helper()
	w := do(s, http.MethodPost, "/v1/connect", `{"userId":"`+userID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["connectionId"])
	return resp["connectionId"]
}

func TestHealthHandler(t *testing.T) {
	s := openTestServer(t, nil)
	w := do(s, http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestConnectTrustedMode(t *testing.T) {
	s := openTestServer(t, nil)
	connID := connect(t, s, "u1")
	require.NotEmpty(t, connID)

	w := do(s, http.MethodPost, "/v1/connect", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectWithJWT(t *testing.T) {
	s := openTestServer(t, func(c *cfgpkg.Config) { c.JWTSecret = "test-secret" })

	token, err := s.auth.GenerateToken("u1", s.rt.Config().ConnectionTTL())
	require.NoError(t, err)

	w := do(s, http.MethodPost, "/v1/connect", `{"token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "u1", resp["userId"])

	w = do(s, http.MethodPost, "/v1/connect", `{"token":"garbage"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// trusted-mode declaration is ignored when a secret is set
	w = do(s, http.MethodPost, "/v1/connect", `{"userId":"u1"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscribeFlow(t *testing.T) {
	s := openTestServer(t, nil)
	connID := connect(t, s, "u1")

	w := do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var sub map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	require.Equal(t, "u1", sub["userId"])
	require.NotEmpty(t, sub["subscriptionId"])

	// unknown connection carries no identity
	w = do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"nope","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// invalid input
	w = do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":[],"channels":["livePush"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeCapReturns429(t *testing.T) {
	s := openTestServer(t, func(c *cfgpkg.Config) { c.MaxSubscriptionsPerUser = 1 })
	connID := connect(t, s, "u1")

	w := do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["comment_added"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUnsubscribeHandler(t *testing.T) {
	s := openTestServer(t, nil)
	connID := connect(t, s, "u1")

	w := do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(s, http.MethodPost, "/v1/unsubscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"]}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, 0, s.rt.Subscriptions().LiveCount())
}

func TestDisconnectCleansUp(t *testing.T) {
	s := openTestServer(t, nil)
	connID := connect(t, s, "u1")

	w := do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(s, http.MethodPost, "/v1/disconnect", `{"connectionId":"`+connID+`"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	// the connection binding is gone, so the id no longer authenticates
	w = do(s, http.MethodPost, "/v1/subscribe",
		`{"connectionId":"`+connID+`","eventTypes":["post_created"],"channels":["livePush"]}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// the livePush-only subscription went with it
	require.Equal(t, 0, s.rt.Subscriptions().LiveCount())
}

func TestPublishHandler(t *testing.T) {
	s := openTestServer(t, nil)

	w := do(s, http.MethodPost, "/v1/events/publish",
		`{"type":"post_created","originUserId":"u1","payload":{"postId":"p1"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])

	// published event is readable back
	w = do(s, http.MethodGet, "/v1/events/get?id="+resp["id"], "")
	require.Equal(t, http.StatusOK, w.Code)

	// and shows up in the origin user's history
	w = do(s, http.MethodGet, "/v1/users/events?userId=u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Events []json.RawMessage `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Events, 1)
}

func TestPublishValidation(t *testing.T) {
	s := openTestServer(t, nil)

	w := do(s, http.MethodPost, "/v1/events/publish", `{"originUserId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/v1/events/publish",
		`{"type":"post_created","originUserId":"u1","priority":"critical"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventGetNotFound(t *testing.T) {
	s := openTestServer(t, nil)
	w := do(s, http.MethodGet, "/v1/events/get?id=missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownConnectionIsUnauthorized(t *testing.T) {
	s := openTestServer(t, nil)
	for _, tt := range []struct {
		method, target, body string
	}{
		{http.MethodPost, "/v1/unsubscribe", `{"connectionId":"nope","eventTypes":["follow"],"channels":["livePush"]}`},
		{http.MethodPost, "/v1/disconnect", `{"connectionId":"nope"}`},
		{http.MethodGet, "/v1/stream?connectionId=nope", ""},
	} {
		w := do(s, tt.method, tt.target, tt.body)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tt.method, tt.target)
	}
}
