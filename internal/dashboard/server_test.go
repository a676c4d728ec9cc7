package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/beadboard/beadboard/internal/bead"
	"github.com/beadboard/beadboard/internal/db"
	"github.com/beadboard/beadboard/internal/models"
	"github.com/beadboard/beadboard/internal/staleness"
	"github.com/beadboard/beadboard/internal/store"
	"github.com/beadboard/beadboard/internal/stream"
)

func setupTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	// File-backed, not :memory:: the subscription pollers run on their own
	// goroutines and the pool may hand them fresh connections, which for an
	// in-memory database would each be a separate empty store.
	path := filepath.Join(t.TempDir(), "beads.db")
	handle, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(handle); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	st := store.New(handle, "test-actor")

	mgr := stream.NewManager(st, stream.Options{
		PollInterval:      20 * time.Millisecond,
		HeartbeatInterval: time.Hour,
	})
	t.Cleanup(mgr.Stop)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, StartOpts{
		Store:      st,
		Manager:    mgr,
		Thresholds: staleness.DefaultThresholds,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func seedBead(t *testing.T, st *store.Store, b models.Bead) {
	t.Helper()
	if b.CreatedAt == "" {
		b.CreatedAt = "2026-01-19T10:00:00Z"
	}
	if b.UpdatedAt == "" {
		b.UpdatedAt = b.CreatedAt
	}
	if err := st.Handle().Create(&b).Error; err != nil {
		t.Fatalf("seed bead %s: %v", b.ID, err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _ := setupTestServer(t)

	var body map[string]any
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestBeadList(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})
	seedBead(t, st, models.Bead{ID: "bd-0002", Title: "two", Status: "in_progress", Assignee: "@casey"})
	seedBead(t, st, models.Bead{ID: "bd-0003", Title: "gone", Status: "tombstone"})

	var body struct {
		Issues []models.Bead `json:"issues"`
		Count  int           `json:"count"`
	}
	if code := getJSON(t, srv.URL+"/api/beads", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2 (tombstone excluded)", body.Count)
	}

	// Status filter normalizes legacy synonyms.
	if getJSON(t, srv.URL+"/api/beads?status=wip", &body); body.Count != 1 || body.Issues[0].ID != "bd-0002" {
		t.Errorf("status=wip filter returned %+v, want only bd-0002", body.Issues)
	}

	// Assignee filter accepts the bare login.
	if getJSON(t, srv.URL+"/api/beads?assignee=casey", &body); body.Count != 1 {
		t.Errorf("assignee filter count = %d, want 1", body.Count)
	}

	// all=true includes tombstones.
	if getJSON(t, srv.URL+"/api/beads?all=true", &body); body.Count != 3 {
		t.Errorf("all=true count = %d, want 3", body.Count)
	}
}

func TestBeadDetail(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})

	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/beads/bd-0001", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	issue := body["issue"].(map[string]any)
	if issue["id"] != "bd-0001" {
		t.Errorf("issue.id = %v, want bd-0001", issue["id"])
	}
	if _, ok := body["validation"]; !ok {
		t.Error("detail response missing validation")
	}
	if _, ok := body["execution_log"]; ok {
		t.Error("detail response has execution_log for a bead without one")
	}
}

func TestBeadDetail_ExecutionLog(t *testing.T) {
	srv, st := setupTestServer(t)
	notes := bead.AppendExecutionLog("design notes", bead.ExecutionLog{
		Branch: "bd-0002-fix",
		Agent:  "casey",
		Commit: "abc1234",
	})
	seedBead(t, st, models.Bead{ID: "bd-0002", Title: "two", Status: "in_review", Notes: notes})

	var body struct {
		ExecutionLog *bead.ExecutionLog `json:"execution_log"`
	}
	if code := getJSON(t, srv.URL+"/api/beads/bd-0002", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.ExecutionLog == nil {
		t.Fatal("detail response missing execution_log")
	}
	if body.ExecutionLog.Branch != "bd-0002-fix" || body.ExecutionLog.Commit != "abc1234" {
		t.Errorf("execution_log = %+v, want branch bd-0002-fix commit abc1234", body.ExecutionLog)
	}
}

func TestBeadDetail_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/beads/bd-nope", &body); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestTargets(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "ready"})

	var body struct {
		Status  string `json:"status"`
		Targets []struct {
			Status        string `json:"status"`
			RequiresModal bool   `json:"requires_modal"`
		} `json:"targets"`
	}
	if code := getJSON(t, srv.URL+"/api/beads/bd-0001/targets", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var haveInProgress bool
	for _, tgt := range body.Targets {
		if tgt.Status == "in_progress" {
			haveInProgress = true
			if !tgt.RequiresModal {
				t.Error("ready→in_progress should require a modal")
			}
		}
	}
	if !haveInProgress {
		t.Errorf("targets %+v missing in_progress", body.Targets)
	}
}

func postJSON(t *testing.T, url string, payload any, out any) int {
	t.Helper()
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestTransition_Accepted(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "ready"})

	var body struct {
		Result struct {
			Valid bool `json:"valid"`
		} `json:"result"`
		Issue models.Bead `json:"issue"`
	}
	code := postJSON(t, srv.URL+"/api/beads/bd-0001/transition", map[string]any{
		"target": "in_progress",
		"fields": map[string]string{
			"branch_name": "feature/one",
			"agent_id":    "crew-2",
		},
	}, &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !body.Result.Valid {
		t.Error("result.valid = false, want true")
	}
	if body.Issue.Status != "in_progress" {
		t.Errorf("issue.status = %q, want in_progress", body.Issue.Status)
	}
}

func TestTransition_Rejected(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})

	var body struct {
		Result struct {
			Valid bool   `json:"valid"`
			Error string `json:"error"`
		} `json:"result"`
	}
	code := postJSON(t, srv.URL+"/api/beads/bd-0001/transition", map[string]any{
		"target": "closed",
	}, &body)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", code)
	}
	if body.Result.Valid {
		t.Error("result.valid = true, want false")
	}
	if !strings.Contains(body.Result.Error, "Invalid transition") {
		t.Errorf("result.error = %q, want Invalid transition message", body.Result.Error)
	}

	// Nothing persisted.
	b, err := st.Get(context.Background(), "bd-0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Status != "open" {
		t.Errorf("status after rejected transition = %q, want open", b.Status)
	}
}

func TestTransition_BadBody(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})

	resp, err := http.Post(srv.URL+"/api/beads/bd-0001/transition", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRepairScanAndApply(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "done"})

	var summary struct {
		IssuesRepaired int `json:"issues_repaired"`
	}
	if code := getJSON(t, srv.URL+"/api/repair/scan", &summary); code != http.StatusOK {
		t.Fatalf("scan status = %d, want 200", code)
	}
	if summary.IssuesRepaired != 1 {
		t.Errorf("scan issues_repaired = %d, want 1", summary.IssuesRepaired)
	}

	if code := postJSON(t, srv.URL+"/api/repair/apply", map[string]any{}, &summary); code != http.StatusOK {
		t.Fatalf("apply status = %d, want 200", code)
	}

	b, err := st.Get(context.Background(), "bd-0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Status != "closed" {
		t.Errorf("status after apply = %q, want closed", b.Status)
	}
}

func TestStale(t *testing.T) {
	srv, st := setupTestServer(t)
	old := time.Now().UTC().Add(-30 * time.Hour).Format(time.RFC3339)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "stuck", Status: "in_progress", UpdatedAt: old, CreatedAt: old})
	seedBead(t, st, models.Bead{ID: "bd-0002", Title: "fresh", Status: "in_progress",
		UpdatedAt: time.Now().UTC().Format(time.RFC3339)})

	var body struct {
		Count    int `json:"count"`
		Findings []struct {
			Level string `json:"level"`
		} `json:"findings"`
	}
	if code := getJSON(t, srv.URL+"/api/stale", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	if body.Findings[0].Level != staleness.LevelCritical {
		t.Errorf("level = %q, want critical", body.Findings[0].Level)
	}
}

func TestStats(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})
	seedBead(t, st, models.Bead{ID: "bd-0002", Title: "two", Status: "open"})

	var body struct {
		StatusCounts []struct {
			Status string `json:"status"`
			Count  int    `json:"count"`
		} `json:"status_counts"`
	}
	if code := getJSON(t, srv.URL+"/api/stats", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(body.StatusCounts) != 1 || body.StatusCounts[0].Count != 2 {
		t.Errorf("status_counts = %+v, want one open row with count 2", body.StatusCounts)
	}
}

func TestPRCheck_NotConfigured(t *testing.T) {
	srv, _ := setupTestServer(t)

	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/pr?url=https://github.com/a/b/pull/1", &body); code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", code)
	}
}

func TestEvents_InitFrame(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "open"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content-type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var sawRetry, sawInit bool
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "retry:"):
			sawRetry = true
		case line == "event: init":
			sawInit = true
		case sawInit && strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if data != "" {
			break
		}
	}
	if !sawRetry {
		t.Error("stream missing retry advisory")
	}
	if !sawInit {
		t.Fatal("stream missing init event")
	}

	var frame stream.InitFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		t.Fatalf("decode init frame: %v", err)
	}
	if frame.Type != stream.FrameInit || len(frame.Issues) != 1 {
		t.Errorf("init frame = %+v, want one issue", frame)
	}
}

func TestEvents_UpdateAfterWrite(t *testing.T) {
	srv, st := setupTestServer(t)
	seedBead(t, st, models.Bead{ID: "bd-0001", Title: "one", Status: "ready"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	// Drain through the init frame first.
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			break
		}
	}

	// An external-style write must surface as an update frame. The store
	// bumps the change counter as part of the transition.
	result, _, err := st.ApplyTransition(context.Background(), "bd-0001", "in_progress", map[string]string{
		"branch_name": "feature/one",
		"agent_id":    "crew-2",
	})
	if err != nil || !result.Valid {
		t.Fatalf("ApplyTransition: result=%+v err=%v", result, err)
	}

	var data string
	var sawUpdate bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: update" {
			sawUpdate = true
			continue
		}
		if sawUpdate && strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if data == "" {
		t.Fatal("no update frame received")
	}

	var frame stream.UpdateFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		t.Fatalf("decode update frame: %v", err)
	}
	if len(frame.ChangedIDs) != 1 || frame.ChangedIDs[0] != "bd-0001" {
		t.Errorf("changed_ids = %v, want [bd-0001]", frame.ChangedIDs)
	}
}

func TestStart_Validation(t *testing.T) {
	if err := Start(context.Background(), StartOpts{}); err == nil || !strings.Contains(err.Error(), "store is required") {
		t.Errorf("Start with no store: err = %v", err)
	}
}
