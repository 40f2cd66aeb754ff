package www

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"orderlink/client"
	"orderlink/config"
	"orderlink/protocol"
	"orderlink/store"
)

type testEnv struct {
	srv  *httptest.Server
	http *http.Client
	db   *store.DB
	cli  *client.Client
}

// newTestEnv stands up the console against a client that never connects
// and an order API that is unreachable, so submissions queue locally.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Role = protocol.RoleAdmin
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	api.Close()
	cfg.Orders.APIBaseURL = api.URL

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c, err := client.New(cfg, db, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Disconnect)

	router, stop := NewRouter(c, db, cfg)
	t.Cleanup(stop)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{srv: srv, http: &http.Client{Jar: jar}, db: db, cli: c}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := e.http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := e.http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp := e.post(t, "/login", loginRequest{Username: "op", Password: "secret"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func TestFirstLoginCreatesOperator(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/login", loginRequest{Username: "op", Password: "secret"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bootstrap login status = %d", resp.StatusCode)
	}
	var body map[string]bool
	json.NewDecoder(resp.Body).Decode(&body)
	if !body["created"] {
		t.Error("first login did not create the operator")
	}

	op, err := e.db.GetOperator("op")
	if err != nil {
		t.Fatalf("operator not persisted: %v", err)
	}
	if op.PasswordHash == "secret" {
		t.Error("password stored in plaintext")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	jar, _ := cookiejar.New(nil)
	e.http = &http.Client{Jar: jar}
	resp := e.post(t, "/login", loginRequest{Username: "op", Password: "wrong"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestOperatorEndpointsRequireLogin(t *testing.T) {
	e := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/offline/1", nil)
	resp, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newTestEnv(t)

	var snap client.Snapshot
	resp := e.get(t, "/api/status", &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if snap.Status != "disconnected" {
		t.Errorf("connection status = %q, want disconnected", snap.Status)
	}
	if snap.Role != protocol.RoleAdmin {
		t.Errorf("role = %q, want admin", snap.Role)
	}
}

func TestSubmitOrderQueuesOffline(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/api/orders", map[string]any{"items": []string{"espresso"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var res struct {
		Queued   bool   `json:"queued"`
		LocalRef string `json:"local_ref"`
	}
	json.NewDecoder(resp.Body).Decode(&res)
	if !res.Queued || res.LocalRef == "" {
		t.Fatalf("result = %+v, want queued with local ref", res)
	}

	var pending struct {
		Pending []*store.PendingOrder `json:"pending"`
	}
	e.get(t, "/api/offline/pending", &pending)
	if len(pending.Pending) != 1 || pending.Pending[0].LocalRef != res.LocalRef {
		t.Errorf("pending = %+v, want one record %s", pending.Pending, res.LocalRef)
	}
}

func TestSubmitOrderRejectsGarbage(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.http.Post(e.srv.URL+"/api/orders", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDiscardPendingRequiresRetiredRecord(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	id, err := e.db.InsertPendingOrder("ref-live", []byte(`{}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/offline/%d", e.srv.URL, id), nil)
	resp, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 for still-queued record", resp.StatusCode)
	}

	e.db.MarkSyncFailed(id)
	req, _ = http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/offline/%d", e.srv.URL, id), nil)
	resp2, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("delete retired: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after failure", resp2.StatusCode)
	}
}

func TestUpdateRealtimeConfig(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	req, _ := http.NewRequest(http.MethodPut, e.srv.URL+"/api/config/realtime",
		bytes.NewReader([]byte(`{"backend":"mqtt","mqtt_broker":"localhost","mqtt_port":1883}`)))
	resp, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap client.Snapshot
	e.get(t, "/api/status", &snap)
	if snap.Backend != "mqtt" {
		t.Errorf("backend = %q, want mqtt", snap.Backend)
	}
}

func TestUpdateRealtimeRejectsUnknownBackend(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	req, _ := http.NewRequest(http.MethodPut, e.srv.URL+"/api/config/realtime",
		bytes.NewReader([]byte(`{"backend":"carrier-pigeon"}`)))
	resp, err := e.http.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/api/notifications/nope/read", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
