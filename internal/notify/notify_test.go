package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/config"
)

func TestFormatMentions(t *testing.T) {
	got := FormatMentions([]string{"U1", "U2"})
	if got != "@U1 @U2" {
		t.Errorf("unexpected mentions line: %q", got)
	}
}

func TestFormatFissureMessage(t *testing.T) {
	now := time.Now()
	ev := sampleEvent(now.Add(30 * time.Minute))

	msg := FormatFissureMessage(ev, now)
	for _, want := range []string{"MT_DEFENSE", "steel path", "Neo", "Cordelia (Uranus)", "Time left: 30m"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatFissureMessage_ExpiredOmitsTimeLeft(t *testing.T) {
	now := time.Now()
	msg := FormatFissureMessage(sampleEvent(now.Add(-time.Minute)), now)
	if strings.Contains(msg, "Time left") {
		t.Errorf("expired event should omit time left:\n%s", msg)
	}
}

func TestClient_Send(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	cfg := &config.NotifyConfig{
		Enabled:     true,
		Server:      server.URL,
		TopicPrefix: "fissures",
		Priority:    "default",
		Tags:        "bell",
		Token:       "secret",
	}
	client := NewClient(cfg, zap.NewNop())

	err := client.Send(context.Background(), "ops", []string{"U1"}, "body text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/fissures-ops" {
		t.Errorf("unexpected topic path: %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if !strings.HasPrefix(gotBody, "@U1\n") {
		t.Errorf("mentions not prepended: %q", gotBody)
	}
}

func TestClient_SendFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := &config.NotifyConfig{Server: server.URL, TopicPrefix: "fissures", Priority: "default"}
	client := NewClient(cfg, zap.NewNop())

	if err := client.Send(context.Background(), "ops", nil, "body"); err == nil {
		t.Error("expected error for non-2xx response")
	}
}

func TestNew_DisabledGivesNoop(t *testing.T) {
	d := New(&config.NotifyConfig{Enabled: false}, zap.NewNop())
	if _, ok := d.(NoopDispatcher); !ok {
		t.Errorf("expected NoopDispatcher, got %T", d)
	}
	if err := d.Send(context.Background(), "ops", nil, "body"); err != nil {
		t.Errorf("noop send errored: %v", err)
	}
}
