// Package session loads the manifest that describes one enrichment session:
// the extracted indicators plus the job id and mode that gate polling.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

// Modes a session can be rendered in.
const (
	ModeOnline  = "online"
	ModeOffline = "offline"
)

// ErrInvalidManifest wraps every validation failure.
var ErrInvalidManifest = errors.New("invalid session manifest")

// Manifest is the handoff from the extraction step.
type Manifest struct {
	JobID      string        `json:"job_id"`
	Mode       string        `json:"mode"`
	Title      string        `json:"title,omitempty"`
	Indicators []enrich.Seed `json:"indicators"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a manifest. Mode defaults to offline and is
// normalised to lower case; indicator types are lower-cased.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.normalise(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalise() error {
	m.JobID = strings.TrimSpace(m.JobID)
	m.Mode = strings.ToLower(strings.TrimSpace(m.Mode))
	if m.Mode == "" {
		m.Mode = ModeOffline
	}
	if m.Mode != ModeOnline && m.Mode != ModeOffline {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidManifest, m.Mode)
	}
	for i := range m.Indicators {
		ind := &m.Indicators[i]
		ind.Value = strings.TrimSpace(ind.Value)
		if ind.Value == "" {
			return fmt.Errorf("%w: indicator %d has no value", ErrInvalidManifest, i)
		}
		ind.Type = enrich.IOCType(strings.ToLower(strings.TrimSpace(string(ind.Type))))
		if ind.Type == "" {
			return fmt.Errorf("%w: indicator %q has no type", ErrInvalidManifest, ind.Value)
		}
	}
	return nil
}

// Online reports whether the session polls a live job.
func (m *Manifest) Online() bool {
	return m.Mode == ModeOnline && m.JobID != ""
}

// Enrichable counts the indicators that expect provider results.
func (m *Manifest) Enrichable() int {
	n := 0
	for _, s := range m.Indicators {
		if s.Type.Enrichable() {
			n++
		}
	}
	return n
}
