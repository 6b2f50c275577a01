package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBool(t *testing.T) {
	e := NewEngine()

	env := map[string]interface{}{
		"status": "ACTIVE",
		"level":  2,
	}

	ok, err := e.EvaluateBool("status == 'ACTIVE' && level > 1", env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool("status == 'DRAFT'", env)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateBoolRejectsNonBoolean(t *testing.T) {
	e := NewEngine()

	_, err := e.EvaluateBool("level + 1", map[string]interface{}{"level": 1})
	assert.Error(t, err)
}

func TestUndefinedVariablesAllowed(t *testing.T) {
	e := NewEngine()

	// Filters may reference fields absent from some records
	ok, err := e.EvaluateBool("missing_field == 'x'", map[string]interface{}{"status": "ACTIVE"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProgramCacheReuse(t *testing.T) {
	e := NewEngine()
	env := map[string]interface{}{"level": 1}

	_, err := e.EvaluateBool("level == 1", env)
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.programCache["level == 1"]
	e.mu.RUnlock()
	assert.True(t, cached)
}
