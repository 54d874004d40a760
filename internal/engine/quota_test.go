package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepQuota_EnforcesLimit(t *testing.T) {
	q := NewStepQuota(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Check("run-1"))
	}
	err := q.Check("run-1")
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	assert.Contains(t, err.Error(), "4 steps > 3 limit")

	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "run-1", se.RunID)
}

func TestStepQuota_ResetStartsOver(t *testing.T) {
	q := NewStepQuota(1)
	require.NoError(t, q.Check("r"))
	q.Reset()
	assert.Equal(t, 0, q.Current())
	assert.NoError(t, q.Check("r"))
}

func TestStepQuota_ZeroIsUnlimited(t *testing.T) {
	q := NewStepQuota(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Check("r"))
	}
	assert.Equal(t, 100, q.Current())
}

func TestIsStepsExceededError_Wrapped(t *testing.T) {
	err := fmt.Errorf("run failed: %w", &StepsExceededError{RunID: "r", Steps: 2, Limit: 1})
	assert.True(t, IsStepsExceededError(err))
	assert.False(t, IsStepsExceededError(fmt.Errorf("other")))
}
