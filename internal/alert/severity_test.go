package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	sev, err = ParseSeverity(" info ")
	require.NoError(t, err)
	assert.Equal(t, SeverityInfo, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestSeverityValid(t *testing.T) {
	for _, s := range Severities() {
		assert.True(t, s.Valid(), "severity %s", s)
	}
	assert.False(t, Severity("low").Valid())
	assert.False(t, Severity("").Valid())
}

func TestSeverityColor(t *testing.T) {
	seen := make(map[string]Severity)
	for _, s := range Severities() {
		color := s.Color()
		assert.Regexp(t, `^#[0-9a-f]{6}$`, color)
		prev, dup := seen[color]
		assert.False(t, dup, "severities %s and %s share color %s", prev, s, color)
		seen[color] = s
	}
	// Unknown severities still render with a fallback color.
	assert.NotEmpty(t, Severity("bogus").Color())
}
