package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jobledger/internal/config"
	"jobledger/internal/db"
	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/migrate"
	"jobledger/internal/repo"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("site-ledger"))
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func agreeBody() map[string]any {
	day0 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	gbp := func(q int64) map[string]any { return map[string]any{"currency": "GBP", "quantity": q} }
	return map[string]any{
		"developer":            "ortho-developments",
		"contractor":           "hammer-and-sons",
		"contract_amount":      gbp(1500000),
		"retention_percentage": 5,
		"milestones": []map[string]any{
			{
				"reference":             "M1",
				"amount":                gbp(10000),
				"expected_end_date":     day0.AddDate(0, 0, 5).Format(time.RFC3339),
				"requested_amount":      gbp(0),
				"payment_on_account":    gbp(0),
				"net_milestone_payment": gbp(0),
				"status":                "NOT_STARTED",
				"tasks": []map[string]any{
					{
						"reference":              "M1/T1",
						"amount":                 gbp(8000),
						"expected_start_date":    day0.Format(time.RFC3339),
						"expected_duration_days": 3,
						"requested_amount":       gbp(0),
						"status":                 "NOT_STARTED",
					},
					{
						"reference":              "M1/T2",
						"amount":                 gbp(2000),
						"expected_start_date":    day0.AddDate(0, 0, 3).Format(time.RFC3339),
						"expected_duration_days": 2,
						"requested_amount":       gbp(0),
						"status":                 "NOT_STARTED",
					},
				},
			},
		},
		"signers": []string{"ortho-developments", "hammer-and-sons"},
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: testJWTSecret, AllowAnonymousActor: "tester"})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", agreeBody(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("agree status %d: %s", res.StatusCode, string(data))
	}
	var created SnapshotResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if created.Version != 1 || created.JobID == "" {
		t.Fatalf("unexpected snapshot: %+v", created)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+created.JobID+"/transitions", map[string]any{
		"command":         "start-task",
		"milestone_index": 0,
		"task_index":      0,
		"signers":         []string{"ortho-developments", "hammer-and-sons"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start-task status %d: %s", res.StatusCode, string(data))
	}
	var next SnapshotResponse
	if err := json.Unmarshal(data, &next); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if next.Version != 2 {
		t.Fatalf("expected version 2, got %d", next.Version)
	}
	if next.State.Milestones[0].Tasks[0].Status != domain.TaskStarted {
		t.Fatalf("task not started: %s", next.State.Milestones[0].Tasks[0].Status)
	}

	// Finishing the milestone now must be refused and surface the reason.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+created.JobID+"/transitions", map[string]any{
		"command":         "finish-milestone",
		"milestone_index": 0,
		"signers":         []string{"hammer-and-sons"},
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("finish-milestone status %d: %s", res.StatusCode, string(data))
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "transition_rejected" {
		t.Fatalf("unexpected error code %q: %s", envelope.Error.Code, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/"+created.JobID+"/history", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var history []SnapshotResponse
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(history))
	}
}

func TestUnknownCommandAndJob(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowAnonymousActor: "tester"})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/no-such-job", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", agreeBody(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("agree status %d", res.StatusCode)
	}
	var created SnapshotResponse
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, nil)
	var jobs []domain.JobRecord
	if err := json.Unmarshal(data, &jobs); err != nil || len(jobs) != 1 {
		t.Fatalf("list jobs: %v (%s)", err, string(data))
	}
	created.JobID = jobs[0].ID

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+created.JobID+"/transitions", map[string]any{
		"command":         "demolish-job",
		"milestone_index": 0,
		"signers":         []string{"ortho-developments"},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown command status %d: %s", res.StatusCode, string(data))
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unrecognised_command" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestRegisterDocumentOverHTTP(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowAnonymousActor: "tester"})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/documents", map[string]any{
		"name": "structural-survey.pdf",
		"hash": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.Owner != "tester" {
		t.Fatalf("expected owner to default to the actor, got %q", doc.Owner)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/documents/"+doc.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get document status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: testJWTSecret})
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ortho-developments"}).
		SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: testJWTSecret})
	client := srv.Client()

	key := domain.APIKey{
		ID:      "key-1",
		ActorID: "hammer-and-sons",
		Name:    "site office",
		KeyHash: repo.HashAPIKey("swordfish"),
	}
	if err := srv.Engine.Repo.InsertAPIKey(context.Background(), nil, key); err != nil {
		t.Fatalf("insert api key: %v", err)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, map[string]string{
		"X-Api-Key": "swordfish",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong api key status %d", res.StatusCode)
	}
}
