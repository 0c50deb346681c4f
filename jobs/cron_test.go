package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronWildcardMatchesEveryMinute(t *testing.T) {
	t.Parallel()
	spec, err := parseCron("* * * * *")
	require.NoError(t, err)
	assert.True(t, spec.matches(time.Date(2026, 7, 31, 13, 45, 0, 0, time.UTC)))
}

func TestParseCronLiteralFields(t *testing.T) {
	t.Parallel()
	spec, err := parseCron("30 9 1 1 *")
	require.NoError(t, err)
	assert.True(t, spec.matches(time.Date(2027, 1, 1, 9, 30, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2027, 1, 1, 9, 31, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2027, 2, 1, 9, 30, 0, 0, time.UTC)))
}

func TestParseCronCommaList(t *testing.T) {
	t.Parallel()
	spec, err := parseCron("0,30 * * * *")
	require.NoError(t, err)
	assert.True(t, spec.matches(time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)))
	assert.True(t, spec.matches(time.Date(2026, 3, 1, 4, 30, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2026, 3, 1, 4, 15, 0, 0, time.UTC)))
}

func TestParseCronRejectsUnsupportedSyntax(t *testing.T) {
	t.Parallel()
	_, err := parseCron("*/5 * * * *")
	assert.Error(t, err)

	_, err = parseCron("0 0 * *")
	assert.Error(t, err)
}

func TestParseCronRejectsOutOfRange(t *testing.T) {
	t.Parallel()
	_, err := parseCron("60 * * * *")
	assert.Error(t, err)
}
