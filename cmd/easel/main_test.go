package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPromptToJSON(t *testing.T) {
	raw := promptToJSON(`{"subject":"fox","style":"ink"}`)
	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("raw payload not preserved: %v", err)
	}
	if payload["subject"] != "fox" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	wrapped := promptToJSON("a fox in the snow")
	if err := json.Unmarshal(wrapped, &payload); err != nil {
		t.Fatalf("wrapped payload invalid: %v", err)
	}
	if payload["prompt"] != "a fox in the snow" {
		t.Fatalf("expected plain text wrapped, got %v", payload)
	}
}

func TestPromptPreview(t *testing.T) {
	if got := promptPreview(json.RawMessage(`{"prompt":"a quiet harbor"}`)); got != "a quiet harbor" {
		t.Fatalf("expected prompt field, got %q", got)
	}
	if got := promptPreview(json.RawMessage(`{"subject":"fox"}`)); got != "fox" {
		t.Fatalf("expected subject fallback, got %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := promptPreview(json.RawMessage(`{"prompt":"` + long + `"}`)); len(got) > 60 {
		t.Fatalf("expected truncated preview, got %d bytes", len(got))
	}
}

func TestParseItemID(t *testing.T) {
	if _, err := parseItemID("abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, err := parseItemID("-3"); err == nil {
		t.Fatal("expected error for negative id")
	}
	id, err := parseItemID(" 42 ")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Status"},
		[][]string{{"1"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	if !strings.Contains(out, "ID") || !strings.Contains(out, "1") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
}

func TestAPIClientSendsTokenAndDecodesErrors(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"running":true,"pid":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"queue item not found"}`))
		}
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "sekrit")
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running || status.PID != 7 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if gotAuth != "Bearer sekrit" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}

	if err := client.Remove(99); err == nil || !strings.Contains(err.Error(), "queue item not found") {
		t.Fatalf("expected decoded api error, got %v", err)
	}
}
