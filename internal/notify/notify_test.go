package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stagehand-vp/stagehand/internal/watchdog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("New() expected error for empty URL")
	}
}

func TestSend_PostsSignedEvent(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := New(Config{URL: srv.URL, Secret: secret, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ev := watchdog.Event{Task: "editor", Kind: watchdog.EventExited, Time: time.Now().UTC()}
	if err := n.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var decoded watchdog.Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Task != "editor" || decoded.Kind != watchdog.EventExited {
		t.Errorf("event = %+v", decoded)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestSend_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := New(Config{URL: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.Send(context.Background(), watchdog.Event{Task: "editor"}); err == nil {
		t.Fatal("Send() expected error for 502 response")
	}
}

func TestRun_DrainsEventsUntilClose(t *testing.T) {
	t.Parallel()

	received := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := New(Config{URL: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := make(chan watchdog.Event, 2)
	events <- watchdog.Event{Task: "editor", Kind: watchdog.EventStarted}
	events <- watchdog.Event{Task: "editor", Kind: watchdog.EventExited}
	close(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(context.Background(), events)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if len(received) != 2 {
		t.Errorf("deliveries = %d, want 2", len(received))
	}
}
