package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/memory"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/httpapi"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/logging"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/redisx"
)

const (
	resident = "resident-1"
	guard    = "guard-1"
)

type testEnv struct {
	ts *httptest.Server
}

// newTestServer wires the full dependency graph on in-memory stores.
func newTestServer(t *testing.T, mut ...func(*httpapi.Dependencies)) *testEnv {
	t.Helper()

	dir := memory.NewDirectory().
		AddFlat("F-101", "S-1", resident).
		AddGuard("S-1", guard).
		AddFlat("F-201", "S-2", "resident-9").
		AddGuard("S-2", "guard-9")
	engine := service.NewEngine(memory.NewAccessRequestStore(), dir, nil, logging.Nop(), service.EngineConfig{})
	devices := service.NewDeliveryRegistry(memory.NewDeliveryTargetStore(), memory.NewNotificationLogStore(), logging.Nop())

	d := httpapi.Dependencies{
		Logger:  logging.Nop(),
		Addr:    ":0",
		Engine:  engine,
		Devices: devices,
	}
	for _, m := range mut {
		m(&d)
	}
	srv := httpapi.NewServer(d)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path, actor, role, body string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
		req.Header.Set("X-Actor-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, "POST", "/v1/visitors", guard, "guard",
		`{"visitor_name":"Raj Kumar","phone":"+911234567890","flat_id":"F-101"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["access_request"].(map[string]any)["id"].(string)
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func TestVisitorLifecycle(t *testing.T) {
	env := newTestServer(t)
	id := env.create(t)

	resp, body := env.do(t, "GET", "/v1/visitors/pending?flat_id=F-101", resident, "resident", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["requests"], 1)

	resp, body = env.do(t, "POST", "/v1/visitors/"+id+"/respond", resident, "resident", `{"decision":"accept"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])

	resp, body = env.do(t, "POST", "/v1/visits/checkin", guard, "guard", `{"access_request_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "checked_in", body["access_request"].(map[string]any)["status"])
	assert.Equal(t, "manual", body["visit"].(map[string]any)["checkin_method"])

	resp, _ = env.do(t, "GET", "/v1/visits/"+id, guard, "guard", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "POST", "/v1/visits/checkout", guard, "guard", `{"access_request_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["visit"].(map[string]any)["checkout_time"])

	resp, body = env.do(t, "POST", "/v1/visits/checkin", guard, "guard", `{"access_request_id":"`+id+`"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "checked_out", body["current_status"])

	resp, body = env.do(t, "GET", "/v1/visitors/"+id+"/history", guard, "guard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["decisions"], 1)
}

func TestCreateVisitor_IdempotencyHeader(t *testing.T) {
	env := newTestServer(t)
	payload := `{"visitor_name":"Raj Kumar","phone":"+911234567890","flat_id":"F-101"}`

	req := func() (*http.Response, map[string]any) {
		r, err := http.NewRequest("POST", env.ts.URL+"/v1/visitors", strings.NewReader(payload))
		require.NoError(t, err)
		r.Header.Set("X-Actor-ID", guard)
		r.Header.Set("X-Actor-Role", "guard")
		r.Header.Set("Idempotency-Key", "tablet-42-0001")
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out
	}

	first, a := req()
	second, b := req()
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, false, b["created"])
	assert.Equal(t, a["access_request"].(map[string]any)["id"], b["access_request"].(map[string]any)["id"])
}

func TestGuardRespond_Override(t *testing.T) {
	env := newTestServer(t)
	id := env.create(t)

	resp, body := env.do(t, "POST", "/v1/visitors/"+id+"/guard-respond", resident, "resident", `{"decision":"accept"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])

	resp, body = env.do(t, "POST", "/v1/visitors/"+id+"/guard-respond", guard, "guard", `{"decision":"approve","note":"resident unreachable"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["auto_approved"])

	resp, body = env.do(t, "POST", "/v1/visitors/"+id+"/respond", resident, "resident", `{"decision":"deny"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "accepted", body["current_status"])
}

func TestGuestPass_RedeemWindow(t *testing.T) {
	env := newTestServer(t)
	start := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)

	resp, body := env.do(t, "POST", "/v1/visitors/guest-pass", resident, "resident",
		`{"visitor_name":"Anita","phone":"+919876543210","flat_id":"F-101","qr_code":"QR-1","expected_start":"`+start+`","expected_end":"`+end+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["access_request"].(map[string]any)["access_code"].(string)
	require.Len(t, code, 6)

	resp, body = env.do(t, "GET", "/v1/visitors/lookup?code="+code, guard, "guard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "QR-1", body["qr_code"])

	resp, body = env.do(t, "POST", "/v1/visitors/redeem", guard, "guard", `{"code":"QR-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "not_yet_valid", body["error"])

	resp, body = env.do(t, "GET", "/v1/societies/S-1/expected-visitors", guard, "guard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["visitors"], 1)
}

func TestErrorMapping(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.do(t, "POST", "/v1/visitors", guard, "guard", `{"visitor_name":"","phone":"+911234567890","flat_id":"F-101"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "visitor_name", body["field"])

	resp, body = env.do(t, "POST", "/v1/visitors", guard, "guard", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_json", body["error"])

	resp, _ = env.do(t, "GET", "/v1/visitors/does-not-exist", guard, "guard", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, "GET", "/v1/visitors/pending", guard, "guard", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := env.create(t)
	resp, body = env.do(t, "POST", "/v1/visitors/"+id+"/respond", resident, "resident", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "decision", body["field"])
}

func TestRequiresActor(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.do(t, "GET", "/v1/visitors/pending?flat_id=F-101", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["error"])

	resp, _ = env.do(t, "GET", "/v1/visitors/pending?flat_id=F-101", "x", "system", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "system is not a client role")

	resp, _ = env.do(t, "GET", "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForeignSocietyIsForbidden(t *testing.T) {
	env := newTestServer(t)
	id := env.create(t)

	start := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	resp, body := env.do(t, "POST", "/v1/visitors/guest-pass", resident, "resident",
		`{"visitor_name":"Anita","phone":"+919876543210","flat_id":"F-101","expected_start":"`+start+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["access_request"].(map[string]any)["access_code"].(string)

	cases := []struct {
		name, method, path, actor, role, body string
	}{
		{"respond", "POST", "/v1/visitors/" + id + "/respond", "guard-9", "guard", `{"decision":"accept"}`},
		{"get", "GET", "/v1/visitors/" + id, "guard-9", "guard", ""},
		{"history", "GET", "/v1/visitors/" + id + "/history", "resident-9", "resident", ""},
		{"pending", "GET", "/v1/visitors/pending?flat_id=F-101", "resident-9", "resident", ""},
		{"pending-count", "GET", "/v1/visitors/pending-count?flat_id=F-101", "guard-9", "guard", ""},
		{"lookup", "GET", "/v1/visitors/lookup?code=" + code, "guard-9", "guard", ""},
		{"redeem", "POST", "/v1/visitors/redeem", "guard-9", "guard", `{"code":"` + code + `"}`},
		{"expected", "GET", "/v1/societies/S-1/expected-visitors", "guard-9", "guard", ""},
		{"visit", "GET", "/v1/visits/" + id, "resident-9", "resident", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, tc.method, tc.path, tc.actor, tc.role, tc.body)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, "forbidden", body["error"])
		})
	}

	resp, body = env.do(t, "GET", "/v1/visitors/"+id, guard, "guard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"], "foreign decisions left the request untouched")
}

func TestPurgeDenied(t *testing.T) {
	env := newTestServer(t)
	id := env.create(t)
	resp, _ := env.do(t, "POST", "/v1/visitors/"+id+"/respond", resident, "resident", `{"decision":"reject"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, "DELETE", "/v1/visitors/denied?society_id=S-1", guard, "guard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["deleted"])

	resp, body = env.do(t, "GET", "/v1/visitors/pending-count?flat_id=F-101", resident, "resident", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
}

// ── Devices ─────────────────────────────────────────────────────────────────

func TestDevices(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.do(t, "POST", "/v1/devices", resident, "resident", `{"token":"fcm-abc","device_type":"android"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_active"])

	resp, body = env.do(t, "GET", "/v1/devices", resident, "resident", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["devices"], 1)

	resp, _ = env.do(t, "DELETE", "/v1/devices", resident, "resident", `{"token":"fcm-abc"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, "DELETE", "/v1/devices", resident, "resident", `{"token":"fcm-abc"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, "GET", "/v1/notifications?limit=10", resident, "resident", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["notifications"])
}

// ── Middleware ──────────────────────────────────────────────────────────────

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	env := newTestServer(t, func(d *httpapi.Dependencies) {
		d.Limiter = redisx.NewRateLimiter(rc, 2, time.Minute)
	})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, "GET", "/v1/devices", resident, "resident", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "1m0s", resp.Header.Get("X-RateLimit-Duration"))
	}
	resp, body := env.do(t, "GET", "/v1/devices", resident, "resident", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["error"])

	resp, _ = env.do(t, "GET", "/v1/devices", guard, "guard", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "budgets are per actor")
}

func TestHealthz_NotReady(t *testing.T) {
	env := newTestServer(t, func(d *httpapi.Dependencies) {
		d.Ready = func(context.Context) error { return errors.New("db closed") }
	})
	resp, body := env.do(t, "GET", "/healthz", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", body["error"])
}
