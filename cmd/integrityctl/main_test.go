package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

func fakeServer(t *testing.T, status int, reply string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.RequestURI()
		got.auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		if len(b) > 0 {
			json.Unmarshal(b, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out, errBuf bytes.Buffer
	code := 0
	stdout, errOut = &out, &errBuf
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stdout, errOut = nil, nil
		exit = nil
	})

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return out.String() + errBuf.String(), code
}

func TestIncidentListTable(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"success":true,"incidents":[
		{"id":"0190a1b2-0000-7000-8000-000000000001","status":"new","severity":"high",
		 "verificationStatus":"tamper_detected","containmentActive":true,
		 "auditLogIds":["r1","r2"],"detectedAt":"2026-01-02T03:04:05Z"}]}`)

	out, code := run(t, "--api-url", srv.URL, "--token", "tok", "-o", "table",
		"incident", "list", "--status", "new", "--limit", "10")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if got.path != "/v1/incidents?limit=10&status=new" {
		t.Errorf("path = %q", got.path)
	}
	if got.auth != "Bearer tok" {
		t.Errorf("auth = %q", got.auth)
	}
	for _, want := range []string{"tamper_detected", "high", "2026-01-02T03:04:05Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestIncidentResolveSendsBody(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"success":true,"incident":{"id":"abc","status":"resolved"}}`)

	out, code := run(t, "--api-url", srv.URL, "-o", "table",
		"incident", "resolve", "abc", "--notes", "restored from backup")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if got.method != http.MethodPost || got.path != "/v1/incidents/abc/resolve" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.body["resolutionNotes"] != "restored from backup" {
		t.Errorf("notes = %v", got.body["resolutionNotes"])
	}
	if got.body["containmentActive"] != false {
		t.Errorf("containmentActive = %v", got.body["containmentActive"])
	}
	if !strings.Contains(out, "status: resolved") {
		t.Errorf("output = %q", out)
	}
}

func TestErrorEnvelopeIsReported(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusConflict,
		`{"success":false,"error":{"code":"incident_resolved","message":"Incident is already resolved"}}`)

	out, code := run(t, "--api-url", srv.URL, "-o", "table", "incident", "ack", "abc")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "incident_resolved: Incident is already resolved") {
		t.Errorf("output = %q", out)
	}
}

func TestScanTriggerUsesScannerURL(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK,
		`{"success":true,"result":{"checked":4,"incidents":1,"verified":3,"skipped":0,"failed":0}}`)

	out, code := run(t, "--scanner-url", srv.URL, "-o", "json", "scan", "trigger")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if got.method != http.MethodPost || got.path != "/scan" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if !strings.Contains(out, `"checked": 4`) {
		t.Errorf("output = %q", out)
	}
}

func TestQueueClear(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"success":true,"cleared":3}`)

	out, code := run(t, "--api-url", srv.URL, "--token", "tok", "-o", "table", "queue", "clear")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if got.method != http.MethodDelete || got.path != "/v1/anchor-queue" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if !strings.Contains(out, "Cleared 3 pending anchor jobs") {
		t.Errorf("output = %q", out)
	}
}
