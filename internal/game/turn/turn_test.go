package turn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

func TestAuthorize(t *testing.T) {
	tr := turn.New(7, "p1", 4)
	assert.ErrorIs(t, tr.Authorize("p1", 0), turn.ErrTurnIDRequired)
	assert.NoError(t, tr.Authorize("p1", 7))
	assert.ErrorIs(t, tr.Authorize("p2", 7), turn.ErrNotYourTurn)
	assert.ErrorIs(t, tr.Authorize("p1", 6), turn.ErrStaleTurn)

	require.NoError(t, tr.Close(turn.ReasonEnded))
	assert.ErrorIs(t, tr.Authorize("p1", 7), turn.ErrTurnClosed)
}

func TestBegin_SpendSettle(t *testing.T) {
	tr := turn.New(1, "p1", 2)
	require.NoError(t, tr.Begin(turn.Moving, 1))
	assert.Equal(t, turn.Moving, tr.Phase)
	tr.Spend("move", 1)
	tr.Settle()
	assert.Equal(t, turn.AwaitingAction, tr.Phase)

	require.NoError(t, tr.Begin(turn.Placing, 1))
	tr.Spend("place_tile", 1)
	tr.Settle()
	assert.True(t, tr.IsClosed())
	assert.Equal(t, turn.ReasonBudget, tr.CloseReason)
	assert.Equal(t, 2, tr.Spent)
	assert.Len(t, tr.Actions, 2)
}

func TestBegin_Rejections(t *testing.T) {
	tr := turn.New(1, "p1", 1)
	assert.ErrorIs(t, tr.Begin(turn.Moving, 2), turn.ErrBudgetExhausted)
	assert.ErrorIs(t, tr.Begin(turn.Battling, 0), turn.ErrIllegalPhase)

	tr.EnterBattle("b1")
	assert.ErrorIs(t, tr.Begin(turn.Moving, 1), turn.ErrDecisionPending)
	tr.LeaveBattle()
	assert.Equal(t, turn.AwaitingAction, tr.Phase)

	require.NoError(t, tr.Close(turn.ReasonEnded))
	assert.ErrorIs(t, tr.Begin(turn.Moving, 1), turn.ErrTurnClosed)
}

func TestSettle_PendingPickupHoldsTurnOpen(t *testing.T) {
	tr := turn.New(1, "p1", 1)
	require.NoError(t, tr.Begin(turn.Moving, 1))
	tr.Spend("move", 1)
	tr.HoldPickup(turn.Pickup{})
	tr.Settle()
	assert.False(t, tr.IsClosed())

	_, err := tr.ClearPickup()
	require.NoError(t, err)
	tr.Settle()
	assert.True(t, tr.IsClosed())

	_, err = tr.ClearPickup()
	assert.ErrorIs(t, err, turn.ErrNoPendingPickup)
}

func TestSettle_BattleHoldsTurnOpen(t *testing.T) {
	tr := turn.New(1, "p1", 1)
	require.NoError(t, tr.Begin(turn.Moving, 1))
	tr.Spend("move", 1)
	tr.EnterBattle("b1")
	tr.Settle()
	assert.Equal(t, turn.Battling, tr.Phase)
	assert.Equal(t, "b1", tr.BattleID)
}

func TestClose_Idempotent(t *testing.T) {
	tr := turn.New(1, "p1", 4)
	tr.HoldPickup(turn.Pickup{})
	require.NoError(t, tr.Close(turn.ReasonFountain))
	assert.Nil(t, tr.Pickup)
	before := *tr
	assert.ErrorIs(t, tr.Close(turn.ReasonEnded), turn.ErrTurnClosed)
	assert.Equal(t, before, *tr)
}

func TestNewSkipped(t *testing.T) {
	tr := turn.NewSkipped(3, "p2")
	assert.True(t, tr.IsClosed())
	assert.Equal(t, turn.ReasonSkipped, tr.CloseReason)
	assert.Zero(t, tr.Spent)
}

// TestPropertyBudgetNeverNegative drives random begin/spend/settle sequences
// and checks the budget stays in [0, start] and spending never exceeds it.
func TestPropertyBudgetNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const start = 4
		tr := turn.New(1, "p1", start)
		ops := rapid.IntRange(0, 20).Draw(t, "ops")
		for i := 0; i < ops && !tr.IsClosed(); i++ {
			cost := rapid.IntRange(0, 2).Draw(t, "cost")
			phase := rapid.SampledFrom([]turn.Phase{turn.Moving, turn.Placing, turn.UsingItem}).Draw(t, "phase")
			if err := tr.Begin(phase, cost); err == nil {
				tr.Spend(string(phase), cost)
			}
			tr.Settle()
			if tr.Budget < 0 || tr.Spent > start || tr.Budget+tr.Spent != start {
				t.Fatalf("budget %d spent %d", tr.Budget, tr.Spent)
			}
		}
	})
}
