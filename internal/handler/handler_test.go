package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wifiscout/internal/domain"
	"wifiscout/internal/logging"
	"wifiscout/internal/netif"
	"wifiscout/internal/orchestrator"
	"wifiscout/internal/repository"
)

type fixedStatus string

func (s fixedStatus) Get() string { return string(s) }

type fixedSnapshot orchestrator.Snapshot

func (s fixedSnapshot) Snapshot() orchestrator.Snapshot { return orchestrator.Snapshot(s) }

type fakeHistory struct {
	sessions  []domain.ScanSession
	err       error
	lastLimit int
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	f.lastLimit = limit
	return f.sessions, f.err
}

func (f *fakeHistory) Get(ctx context.Context, id string) (*domain.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			return &f.sessions[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeHistory) Stats(ctx context.Context) (*repository.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repository.Stats{Sessions: len(f.sessions)}, nil
}

type testServer struct {
	srv     *httptest.Server
	files   string
	scans   string
	history *fakeHistory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	ts := &testServer{
		files:   filepath.Join(root, "files"),
		scans:   filepath.Join(root, "scans"),
		history: &fakeHistory{},
	}
	if err := os.MkdirAll(ts.files, 0755); err != nil {
		t.Fatal(err)
	}

	log := logging.Discard()
	browser := NewBrowser([]Folder{
		{Name: "files", Dir: ts.files},
		{Name: "scans", Dir: ts.scans},
	}, fixedStatus("  Searching..."), log)

	api := NewAPIHandler("wlan1", fixedStatus("[O]:CafeOpen"), fixedSnapshot{
		Ready:          true,
		State:          domain.StateIdle,
		AdapterPresent: true,
		Scanned:        []string{"CafeOpen"},
	}, ts.history, log)
	api.SetCounters(func(ctx context.Context, iface string) (*netif.Counters, error) {
		return &netif.Counters{Interface: iface, BytesRecv: 42}, nil
	})

	ts.srv = httptest.NewServer(Chain(NewMux(browser, api, nil), Recover(log), Logger(log)))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBrowser_Index(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{`href="/list/files"`, `href="/list/scans"`, "Searching..."} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestBrowser_ListCreatesMissingFolder(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/list/scans")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := os.Stat(ts.scans); err != nil {
		t.Errorf("folder not created: %v", err)
	}
	if !strings.Contains(body, "No files") {
		t.Error("empty folder listing missing placeholder")
	}
}

func TestBrowser_ListShowsFiles(t *testing.T) {
	ts := newTestServer(t)
	writeFile(t, ts.files, "ssid_known.txt", "Home secret123\n")
	writeFile(t, ts.files, "a<b>.txt", "x")
	if err := os.Mkdir(filepath.Join(ts.files, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	_, body := ts.get(t, "/list/files")
	if !strings.Contains(body, "/download/files/ssid_known.txt") {
		t.Error("listing missing download link")
	}
	if !strings.Contains(body, "15 B") {
		t.Error("listing missing humanized size")
	}
	if strings.Contains(body, "<b>") {
		t.Error("file name not escaped")
	}
	if strings.Contains(body, "subdir") {
		t.Error("directories should not be listed")
	}
}

func TestBrowser_UnknownFolderAndTraversal(t *testing.T) {
	ts := newTestServer(t)
	writeFile(t, ts.files, "ok.txt", "ok")
	writeFile(t, filepath.Dir(ts.files), "secret.txt", "top secret")

	paths := []string{
		"/list/nope",
		"/download/nope/ok.txt",
		"/download/files/missing.txt",
		"/download/files/..%2Fsecret.txt",
		"/view/files/..%2Fsecret.txt",
		"/edit/files/..%5Csecret.txt",
		"/download_all/nope",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			resp, body := ts.get(t, p)
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("status = %d, want 404", resp.StatusCode)
			}
			if strings.Contains(body, "top secret") {
				t.Error("traversal leaked file contents")
			}
		})
	}
}

func TestBrowser_Download(t *testing.T) {
	ts := newTestServer(t)
	writeFile(t, ts.files, "ssid_noscan.txt", "Club_Totalplay_WiFi\n")

	resp, body := ts.get(t, "/download/files/ssid_noscan.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body != "Club_Totalplay_WiFi\n" {
		t.Errorf("body = %q", body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestBrowser_DownloadAll(t *testing.T) {
	ts := newTestServer(t)
	writeFile(t, ts.files, "one.txt", "1")
	if err := os.Mkdir(filepath.Join(ts.files, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(ts.files, "nested"), "two.txt", "22")

	resp, body := ts.get(t, "/download_all/files")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "files_all_files.zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader([]byte(body)), int64(len(body)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	got := map[string]bool{}
	for _, f := range zr.File {
		got[f.Name] = true
	}
	if !got["one.txt"] || !got["nested/two.txt"] {
		t.Errorf("zip entries = %v", got)
	}
}

func TestBrowser_ViewEscapes(t *testing.T) {
	ts := newTestServer(t)
	writeFile(t, ts.files, "page.txt", "<script>alert(1)</script>")

	_, body := ts.get(t, "/view/files/page.txt")
	if strings.Contains(body, "<script>alert") {
		t.Error("content rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("escaped content missing")
	}
}

func TestBrowser_EditAndSave(t *testing.T) {
	ts := newTestServer(t)
	path := writeFile(t, ts.files, "ssid_known.txt", "Home old\n")

	_, body := ts.get(t, "/edit/files/ssid_known.txt")
	if !strings.Contains(body, "<textarea") || !strings.Contains(body, "Home old") {
		t.Fatalf("edit form missing content: %s", body)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.PostForm(ts.srv.URL+"/edit/files/ssid_known.txt", url.Values{"content": {"Home newpass1\n"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/view/files/ssid_known.txt" {
		t.Errorf("Location = %q", loc)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Home newpass1\n" {
		t.Errorf("saved content = %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600 preserved", info.Mode().Perm())
	}
}

func TestBrowser_SaveMissingFile(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.PostForm(ts.srv.URL+"/edit/files/new.txt", url.Values{"content": {"x"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(ts.files, "new.txt")); !os.IsNotExist(err) {
		t.Error("save created a new file")
	}
}

func TestAPI_Status(t *testing.T) {
	ts := newTestServer(t)
	ts.history.sessions = []domain.ScanSession{{ID: "s1"}}

	resp, body := ts.get(t, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got StatusResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status != "[O]:CafeOpen" {
		t.Errorf("Status = %q", got.Status)
	}
	if !got.Snapshot.Ready || len(got.Snapshot.Scanned) != 1 {
		t.Errorf("Snapshot = %+v", got.Snapshot)
	}
	if got.Counters == nil || got.Counters.BytesRecv != 42 {
		t.Errorf("Counters = %+v", got.Counters)
	}
	if got.History == nil || got.History.Sessions != 1 {
		t.Errorf("History = %+v", got.History)
	}
}

func TestAPI_Sessions(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantType   string
		wantBody   string
		wantLimit  int
	}{
		{name: "default json", query: "", wantStatus: 200, wantType: "application/json", wantBody: `"ssid": "CafeOpen"`},
		{name: "yaml", query: "?format=yaml&limit=5", wantStatus: 200, wantType: "application/yaml", wantBody: "ssid: CafeOpen", wantLimit: 5},
		{name: "bad format", query: "?format=xml", wantStatus: 400, wantType: "application/json"},
		{name: "bad limit", query: "?limit=-1", wantStatus: 400, wantType: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.history.sessions = []domain.ScanSession{{ID: "s1", SSID: "CafeOpen", StartedAt: started, Outcome: domain.OutcomeSuccess}}

			resp, body := ts.get(t, "/api/sessions"+tt.query)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if tt.wantBody != "" && !strings.Contains(body, tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, body)
			}
			if tt.wantStatus == 200 && ts.history.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", ts.history.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestAPI_SessionsError(t *testing.T) {
	ts := newTestServer(t)
	ts.history.err = errors.New("database is locked")

	resp, body := ts.get(t, "/api/sessions")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var er ErrorResponse
	if err := json.Unmarshal([]byte(body), &er); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if !strings.Contains(er.Details, "locked") {
		t.Errorf("details = %q", er.Details)
	}
}

func TestAPI_GetSession(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		err        error
		wantStatus int
	}{
		{name: "found", id: "s1", wantStatus: http.StatusOK},
		{name: "missing", id: "nope", wantStatus: http.StatusNotFound},
		{name: "store error", id: "s1", err: errors.New("disk I/O error"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.history.err = tt.err
			ts.history.sessions = []domain.ScanSession{{
				ID:      "s1",
				SSID:    "CafeOpen",
				Outcome: domain.OutcomeSuccess,
				Hosts:   []domain.ScannedHost{{IP: "192.168.1.10", OpenPorts: []int{22, 80}}},
			}}

			resp, body := ts.get(t, "/api/sessions/"+tt.id)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got domain.ScanSession
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if got.SSID != "CafeOpen" || len(got.Hosts) != 1 || got.Hosts[0].IP != "192.168.1.10" {
				t.Errorf("session = %+v", got)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recover(logging.Discard()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v", order)
	}
}
