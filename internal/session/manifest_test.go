package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
)

func TestParseNormalises(t *testing.T) {
	m, err := Parse([]byte(`{
		"job_id": " 0f1e ",
		"mode": "ONLINE",
		"indicators": [
			{"value": "1.2.3.4", "type": "IPv4", "raw_match": "1[.]2[.]3[.]4"},
			{"value": "CVE-2024-3094", "type": "cve"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "0f1e", m.JobID)
	assert.Equal(t, ModeOnline, m.Mode)
	assert.True(t, m.Online())
	assert.Equal(t, enrich.TypeIPv4, m.Indicators[0].Type)
	assert.Equal(t, "1[.]2[.]3[.]4", m.Indicators[0].RawMatch)
	assert.Equal(t, 1, m.Enrichable())
}

func TestOfflineOrMissingJobIDIsNotOnline(t *testing.T) {
	m, err := Parse([]byte(`{"indicators":[{"value":"a.example","type":"domain"}]}`))
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, m.Mode)
	assert.False(t, m.Online())

	m, err = Parse([]byte(`{"mode":"online","indicators":[{"value":"a.example","type":"domain"}]}`))
	require.NoError(t, err)
	assert.False(t, m.Online())
}

func TestEmptyExtractionIsValid(t *testing.T) {
	for _, body := range []string{`{"mode":"offline","indicators":[]}`, `{"job_id":"j","mode":"online"}`} {
		m, err := Parse([]byte(body))
		require.NoError(t, err)
		assert.Empty(t, m.Indicators)
		assert.Zero(t, m.Enrichable())
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown mode":  `{"mode":"hybrid","indicators":[{"value":"x","type":"domain"}]}`,
		"empty value":   `{"indicators":[{"value":"  ","type":"domain"}]}`,
		"empty type":    `{"indicators":[{"value":"x"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"job_id":"j","mode":"online","indicators":[{"value":"x.example","type":"domain"}]}`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "j", m.JobID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
