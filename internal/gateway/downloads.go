package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Fetcher is the download client view the gateway needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) (string, int64, error)
}

// EnableDownloads registers the artifact download endpoint. Must be called
// before Start. Fetched files land in dir.
func (g *Gateway) EnableDownloads(f Fetcher, dir string) {
	g.fetcher = f
	g.downloadsDir = dir
}

// DownloadRequest is the JSON body for POST /api/downloads. Name is the
// filename to store under the downloads directory; when empty the last
// path segment of the URL is used.
type DownloadRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// DownloadResponse reports where a fetched artifact landed.
type DownloadResponse struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// handleDownload returns an http.HandlerFunc for POST /api/downloads.
func (g *Gateway) handleDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DownloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		parsed, err := url.Parse(req.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			http.Error(w, "url must be http or https", http.StatusBadRequest)
			return
		}

		name := req.Name
		if name == "" {
			name = path.Base(parsed.Path)
		}
		if name == "" || name == "." || name == "/" || strings.ContainsAny(name, `/\`) {
			http.Error(w, "invalid artifact name", http.StatusBadRequest)
			return
		}

		dest := filepath.Join(g.downloadsDir, name)
		saved, n, err := g.fetcher.Fetch(r.Context(), req.URL, dest)
		if err != nil {
			g.cfg.Logger.Error("gateway: download failed", "url", req.URL, "error", err)
			http.Error(w, "download failed", http.StatusBadGateway)
			return
		}

		if g.metrics != nil {
			g.metrics.Downloads.Inc()
			g.metrics.DownloadBytes.Add(float64(n))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(DownloadResponse{Path: saved, Bytes: n})
	}
}
