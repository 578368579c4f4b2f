package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/output"
	"github.com/ccollicutt/logmatrix/pkg/pipeline"
)

func newTestReport(discarded int) *output.Report {
	return &output.Report{
		Summary: output.Summary{
			DirsProcessed:    1,
			FilesWritten:     3,
			TrafficMatrices:  2,
			RecordsDiscarded: discarded,
			LinesProcessed:   100,
		},
		Results: []*output.DirResult{{
			Dir:   "/results/run1",
			Input: "/results/run1/rank_0.log",
			Files: []pipeline.WrittenFile{
				{Kind: extract.KindTraffic, Epoch: 1, Name: "traffic_matrix_epoch_1.log"},
				{Kind: extract.KindTraffic, Epoch: 2, Name: "traffic_matrix_epoch_2.log"},
				{Kind: extract.KindBandwidth, Name: "bandwidth_matrix.log"},
			},
		}},
		Metadata: output.Metadata{
			ConfigFile:  "test.yaml",
			ExtractedAt: time.Now(),
			Duration:    time.Second,
		},
	}
}

func TestClient_Send_Success(t *testing.T) {
	var receivedBody []byte
	var receivedContentType, receivedAuth, receivedAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedAgent = r.Header.Get("User-Agent")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(1), SendOptions{URL: server.URL})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if resp.Body != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}
	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %s", receivedAuth)
	}
	if receivedAgent != "logmatrix-webhook" {
		t.Errorf("User-Agent = %q, want logmatrix-webhook", receivedAgent)
	}

	var payload Payload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to parse received payload: %v", err)
	}
	if payload.Event != EventExtractionCompleted {
		t.Errorf("Event = %q, want %q", payload.Event, EventExtractionCompleted)
	}
	if !payload.HasIssues {
		t.Error("HasIssues = false, want true")
	}
	if payload.Report == nil || payload.Report.Summary.FilesWritten != 3 {
		t.Errorf("Report = %+v, want FilesWritten 3", payload.Report)
	}
}

func TestClient_Send_WithBearerToken(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{
		URL:   server.URL,
		Token: "secret-token-123",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if receivedAuth != "Bearer secret-token-123" {
		t.Errorf("expected Bearer token, got %s", receivedAuth)
	}
}

func TestClient_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{URL: server.URL})

	if resp.Success() {
		t.Error("expected failure, got success")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure due to timeout")
	}
}

func TestClient_Send_InvalidURL(t *testing.T) {
	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{URL: "://invalid-url"})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure for invalid URL")
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name        string
		resp        Response
		wantSuccess bool
	}{
		{"200 OK", Response{StatusCode: 200}, true},
		{"204 No Content", Response{StatusCode: 204}, true},
		{"400 Bad Request", Response{StatusCode: 400}, false},
		{"500 Server Error", Response{StatusCode: 500}, false},
		{"With Error", Response{StatusCode: 200, Error: io.EOF}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Success(); got != tt.wantSuccess {
				t.Errorf("Success() = %v, want %v", got, tt.wantSuccess)
			}
		})
	}
}

func TestShouldFire(t *testing.T) {
	tests := []struct {
		trigger   config.WebhookTrigger
		hasIssues bool
		want      bool
	}{
		{config.WebhookTriggerAlways, false, true},
		{config.WebhookTriggerAlways, true, true},
		{config.WebhookTriggerNever, true, false},
		{config.WebhookTriggerOnIssues, true, true},
		{config.WebhookTriggerOnIssues, false, false},
		{"", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		if got := ShouldFire(tt.trigger, tt.hasIssues); got != tt.want {
			t.Errorf("ShouldFire(%q, %v) = %v, want %v", tt.trigger, tt.hasIssues, got, tt.want)
		}
	}
}

func TestNotifier_Notify(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	webhooks := []config.WebhookConfig{
		{Name: "always", URL: server.URL, Trigger: config.WebhookTriggerAlways},
		{Name: "on-issues", URL: server.URL, Trigger: config.WebhookTriggerOnIssues},
		{URL: server.URL, Trigger: config.WebhookTriggerNever},
	}

	n := NewNotifier(nil, webhooks, nil)
	deliveries := n.Notify(context.Background(), newTestReport(0))

	if len(deliveries) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(deliveries))
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if deliveries[0].Skipped || !deliveries[0].Response.Success() {
		t.Errorf("always webhook should have been sent: %+v", deliveries[0])
	}
	if !deliveries[1].Skipped {
		t.Error("on_issues webhook should be skipped for a clean report")
	}
	if !deliveries[2].Skipped || deliveries[2].Name != server.URL {
		t.Errorf("never webhook = %+v, want skipped and named by URL", deliveries[2])
	}
}

func TestNotifier_FailureDoesNotStopOthers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhooks := []config.WebhookConfig{
		{Name: "broken", URL: "://invalid-url", Trigger: config.WebhookTriggerAlways},
		{Name: "ok", URL: server.URL, Trigger: config.WebhookTriggerAlways},
	}

	deliveries := NewNotifier(nil, webhooks, nil).Notify(context.Background(), newTestReport(2))

	if deliveries[0].Response.Success() {
		t.Error("broken webhook reported success")
	}
	if !deliveries[1].Response.Success() {
		t.Errorf("ok webhook failed: %v", deliveries[1].Response.Error)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}
