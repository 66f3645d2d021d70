package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

// Source fetches the current snapshot of a job.
type Source interface {
	Status(ctx context.Context, jobID string) (*enrich.JobStatus, error)
}

// HTTPSource polls the enrichment backend over HTTP.
type HTTPSource struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Client overrides the default HTTP client (tests use httptest's client).
	Client *http.Client
}

// NewHTTPSource creates a source for GET {BaseURL}/enrichment/status/{job_id}.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "enrich-console/1.0"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: client,
	}
}

// Status fetches one snapshot. Non-2xx responses and undecodable bodies are
// errors; the poller treats every error as a skipped tick.
func (s *HTTPSource) Status(ctx context.Context, jobID string) (*enrich.JobStatus, error) {
	endpoint := s.baseURL + "/enrichment/status/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status request failed: %d %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var status enrich.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// FileSource replays recorded snapshots from a JSON file. The file holds
// either a single status object or an array of them; each call returns the
// next frame and the last frame repeats once the recording is exhausted.
type FileSource struct {
	path string

	mu     sync.Mutex
	frames []enrich.JobStatus
	next   int
}

// NewFileSource loads a recording from path.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	frames, err := decodeFrames(data)
	if err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", path, err)
	}
	return &FileSource{path: path, frames: frames}, nil
}

func decodeFrames(data []byte) ([]enrich.JobStatus, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var frames []enrich.JobStatus
		if err := json.Unmarshal(data, &frames); err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			return nil, fmt.Errorf("recording has no frames")
		}
		return frames, nil
	}
	var single enrich.JobStatus
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []enrich.JobStatus{single}, nil
}

// Status returns the next recorded frame. The job id is ignored.
func (s *FileSource) Status(ctx context.Context, _ string) (*enrich.JobStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	out := frame
	out.Results = append([]enrich.EnrichmentItem(nil), frame.Results...)
	return &out, nil
}

// Frames returns how many frames the recording holds.
func (s *FileSource) Frames() int { return len(s.frames) }
