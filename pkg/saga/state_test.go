package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionState_CanTransitionTo(t *testing.T) {
	assert.True(t, StateInit.CanTransitionTo(StateAwaiting))
	assert.True(t, StateAwaiting.CanTransitionTo(StateSuccess))
	assert.True(t, StateAwaiting.CanTransitionTo(StateFailed))
	assert.True(t, StateSuccess.CanTransitionTo(StateCompensating))
	assert.True(t, StateCompensating.CanTransitionTo(StateCompensated))
	assert.True(t, StateCompensating.CanTransitionTo(StateCompensationFailed))

	assert.False(t, StateInit.CanTransitionTo(StateSuccess))
	assert.False(t, StateFailed.CanTransitionTo(StateCompensating))
	assert.False(t, StateSuccess.CanTransitionTo(StateFailed))
}

func TestTransactionState_IsTerminal(t *testing.T) {
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateCompensated.IsTerminal())
	assert.True(t, StateCompensationFailed.IsTerminal())

	assert.False(t, StateInit.IsTerminal())
	assert.False(t, StateAwaiting.IsTerminal())
	assert.False(t, StateSuccess.IsTerminal())
	assert.False(t, StateCompensating.IsTerminal())
}

func TestTransactionState_ValidateTransition(t *testing.T) {
	require.NoError(t, StateAwaiting.ValidateTransition(StateSuccess))
	err := StateSuccess.ValidateTransition(StateFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
}

func TestSagaOutcome_Succeeded(t *testing.T) {
	assert.True(t, OutcomeAllSuccess.Succeeded())
	assert.False(t, OutcomeAllCompensated.Succeeded())
	assert.False(t, OutcomePartialCompensationFailed.Succeeded())
}
