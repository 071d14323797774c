package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// fakeFetcher implements Fetcher.
type fakeFetcher struct {
	bytes int64
	err   error

	gotURL  string
	gotDest string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, dest string) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	f.gotURL = rawURL
	f.gotDest = dest
	return dest, f.bytes, nil
}

func TestHandleDownload(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{bytes: 2048}
	g := newTestGateway(nil, nil)
	g.EnableDownloads(fetcher, "/var/lib/stagehand/downloads")
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	body, _ := json.Marshal(DownloadRequest{URL: "http://builds.local/editor-nightly.zip"})
	resp, err := http.Post(srv.URL+"/api/downloads", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/downloads: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got DownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	want := filepath.Join("/var/lib/stagehand/downloads", "editor-nightly.zip")
	if got.Path != want || got.Bytes != 2048 {
		t.Errorf("response = %+v", got)
	}
	if fetcher.gotDest != want {
		t.Errorf("dest = %q, want %q", fetcher.gotDest, want)
	}
}

func TestHandleDownload_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	g := newTestGateway(nil, nil)
	g.EnableDownloads(&fakeFetcher{}, t.TempDir())
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"non-http scheme", `{"url":"ftp://builds.local/a.zip"}`},
		{"path traversal name", `{"url":"http://builds.local/a.zip","name":"../../etc/passwd"}`},
		{"no filename", `{"url":"http://builds.local/"}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		resp, err := http.Post(srv.URL+"/api/downloads", "application/json", bytes.NewReader([]byte(tc.body)))
		if err != nil {
			t.Fatalf("%s: POST: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}

func TestHandleDownload_FetchError(t *testing.T) {
	t.Parallel()

	g := newTestGateway(nil, nil)
	g.EnableDownloads(&fakeFetcher{err: errors.New("connection refused")}, t.TempDir())
	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	body := []byte(`{"url":"http://builds.local/a.zip"}`)
	resp, err := http.Post(srv.URL+"/api/downloads", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/downloads: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
