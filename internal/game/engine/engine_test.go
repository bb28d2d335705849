package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/content"
	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

const testTiles = `
tiles:
  - name: corridor
    openings: EW
    count: 6
  - name: cross
    openings: NESW
    count: 4
`

const testMonsters = `
monsters:
  - id: goblin
    name: Goblin
    hp: 6
`

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type harness struct {
	eng   *engine.Engine
	dice  *dice.FixedSource
	game  *engine.Game
	human *engine.Player
}

func newHarness(t tb, withBot bool) *harness {
	t.Helper()
	cat, err := content.LoadFromBytes([]byte(testTiles), []byte(testMonsters))
	require.NoError(t, err)
	src := dice.NewFixedSource()
	roller := dice.NewLoggedRoller(src, dice.MustParse("2d6"), zap.NewNop())
	eng := engine.New(cat, roller, dice.NewFixedSource(), engine.Rules{ActionBudget: 4, MaxHP: 5}, zap.NewNop())

	g := eng.NewGame("")
	human, err := eng.Join(g, engine.JoinRequest{Name: "alice", ExternalID: "ext-1"})
	require.NoError(t, err)
	if withBot {
		_, err = eng.Join(g, engine.JoinRequest{Name: "bot", Automated: true})
		require.NoError(t, err)
	}
	require.NoError(t, eng.MarkReady(g, human.ID))
	require.NoError(t, eng.Start(g, human.ID))
	h := &harness{eng: eng, dice: src, game: g}
	h.human, err = g.Player(human.ID)
	require.NoError(t, err)
	return h
}

// try applies cmd as a well-behaved client would, stamping the current turn id
// when the command does not carry one.
func (h *harness) try(cmd engine.Command) (engine.Result, error) {
	if cmd.TurnID == 0 && h.game.Turn != nil {
		cmd.TurnID = h.game.Turn.ID
	}
	return h.eng.Apply(h.game, cmd)
}

func (h *harness) apply(t tb, cmd engine.Command) engine.Result {
	t.Helper()
	res, err := h.try(cmd)
	require.NoError(t, err)
	// Apply commits a fresh copy; refresh the seat pointer
	h.human, err = h.game.Player(h.human.ID)
	require.NoError(t, err)
	return res
}

func (h *harness) place(t tb, tile field.Tile) {
	t.Helper()
	require.NoError(t, h.game.Field.Place(&tile, nil))
}

func (h *harness) give(t tb, it item.Item) {
	t.Helper()
	_, full := h.human.Inventory.Add(it)
	require.Nil(t, full)
}

func mustSides(t tb, s string) field.Sides {
	t.Helper()
	sides, err := field.ParseSides(s)
	require.NoError(t, err)
	return sides
}

func guardTile(t tb, hp int, reward field.Reward) field.Tile {
	return field.Tile{
		Pos:      field.Position{X: 1},
		Openings: mustSides(t, "W"),
		Room:     true,
		Guard:    &field.Guard{Monster: "goblin", Name: "Goblin", HP: hp, Reward: reward},
	}
}

func TestLobby(t *testing.T) {
	h := newHarness(t, true)
	assert.Equal(t, engine.StatusActive, h.game.Status)
	assert.Equal(t, h.human.ID, h.game.Turn.PlayerID)
	assert.Equal(t, 4, h.game.Turn.Budget)
	assert.Equal(t, 5, h.human.HP)

	g := h.eng.NewGame("g2")
	alice, err := h.eng.Join(g, engine.JoinRequest{Name: "alice"})
	require.NoError(t, err)
	_, err = h.eng.Join(g, engine.JoinRequest{Name: "alice"})
	assert.ErrorIs(t, err, engine.ErrNameTaken)
	assert.ErrorIs(t, h.eng.Start(g, alice.ID), engine.ErrNotReady)

	_, err = h.eng.Join(g, engine.JoinRequest{Name: "bob"})
	require.NoError(t, err)
	_, err = h.eng.Join(g, engine.JoinRequest{Name: "carol"})
	assert.ErrorIs(t, err, engine.ErrGameFull)

	bots := h.eng.NewGame("g3")
	bot, err := h.eng.Join(bots, engine.JoinRequest{Name: "bot", Automated: true})
	require.NoError(t, err)
	assert.ErrorIs(t, h.eng.Start(bots, bot.ID), engine.ErrNoHumans)
}

func TestPlaceTile_IsOneAtomicAction(t *testing.T) {
	h := newHarness(t, false)
	held, ok := h.game.HeldTile()
	require.True(t, ok)
	deck := len(h.game.Deck)

	orientation := field.AllOpen
	if held.Name == "corridor" {
		orientation = mustSides(t, "EW")
	}
	h.apply(t, engine.Command{Kind: engine.CmdPlaceTile, PlayerID: h.human.ID, Pos: field.Position{X: 1}, Openings: orientation})

	pos, err := h.game.Field.PlayerPosition(h.human.ID)
	require.NoError(t, err)
	assert.Equal(t, field.Position{X: 1}, pos)
	assert.Equal(t, 3, h.game.Turn.Budget, "placing and stepping costs one unit")
	assert.Equal(t, deck-1, len(h.game.Deck))
	assert.Equal(t, 2, h.game.Field.Len())
}

func TestPlaceTile_WrongShapeRejected(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.try(engine.Command{
		Kind: engine.CmdPlaceTile, PlayerID: h.human.ID,
		Pos: field.Position{X: 1}, Openings: mustSides(t, "NES"),
	})
	assert.ErrorIs(t, err, engine.ErrWrongShape)
}

func TestRotateTile_DoesNotTouchField(t *testing.T) {
	h := newHarness(t, false)
	h.game.Deck[0].Openings = mustSides(t, "EW")
	h.game.HeldOpenings = h.game.Deck[0].Openings

	h.apply(t, engine.Command{Kind: engine.CmdRotateTile, PlayerID: h.human.ID})
	assert.Equal(t, mustSides(t, "NS"), h.game.HeldOpenings)
	assert.Equal(t, 1, h.game.Field.Len())
	assert.Equal(t, 4, h.game.Turn.Budget)

	_, err := h.try(engine.Command{Kind: engine.CmdRotateTile, PlayerID: h.human.ID, Openings: mustSides(t, "N")})
	assert.ErrorIs(t, err, engine.ErrWrongShape)
}

func TestMove_BlockedAndBudget(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "W")})

	_, err := h.try(engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{Y: 1}})
	assert.ErrorIs(t, err, field.ErrNoTile)

	for i := 0; i < 3; i++ {
		target := field.Position{X: 1}
		if i%2 == 1 {
			target = field.Origin
		}
		h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: target})
	}
	assert.Equal(t, int64(1), h.game.Turn.ID)
	assert.Equal(t, 1, h.game.Turn.Budget)

	h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Origin})
	assert.Equal(t, int64(2), h.game.Turn.ID, "empty budget closes the turn")
	assert.Equal(t, 4, h.game.Turn.Budget)
}

func TestBattle_LossWithoutGear(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, guardTile(t, 6, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindSword, 0)}))
	h.dice.Push(2, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Battle)
	assert.Equal(t, 5, res.Battle.FinalDamage)
	assert.Equal(t, battle.Lose, res.Battle.Outcome)
	assert.Equal(t, battle.Finalized, res.Battle.State)
	assert.Equal(t, 4, h.human.HP)

	pos, _ := h.game.Field.PlayerPosition(h.human.ID)
	assert.Equal(t, field.Origin, pos, "loser retreats")
	assert.Equal(t, int64(2), h.game.Turn.ID, "loss closes the turn")
	tile, _ := h.game.Field.Tile(field.Position{X: 1})
	assert.True(t, tile.HasLiveGuard())
}

func TestBattle_SwordWinsImmediately(t *testing.T) {
	h := newHarness(t, false)
	reward := item.New(item.KindAxe, 0)
	h.place(t, guardTile(t, 6, field.Reward{Kind: field.RewardItem, Item: reward}))
	h.give(t, item.New(item.KindSword, 0))
	h.give(t, item.New(item.KindFireball, 0))
	h.dice.Push(3, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Battle)
	assert.Equal(t, battle.Win, res.Battle.Outcome)
	assert.Empty(t, res.Battle.Available, "no consumable prompt on a win")
	assert.Equal(t, 5, h.human.HP)
	assert.Equal(t, 3, h.game.Turn.Budget, "win does not close the turn")

	tile, _ := h.game.Field.Tile(field.Position{X: 1})
	assert.False(t, tile.HasLiveGuard())
	assert.Nil(t, tile.Loot)
	_, held := h.human.Inventory.Find(reward.ID)
	assert.True(t, held, "reward picked up")
}

func TestBattle_HopelessLossSkipsPrompt(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, guardTile(t, 10, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindKey, 0)}))
	h.give(t, item.New(item.KindDagger, 0))
	h.give(t, item.New(item.KindFireball, 0))
	h.give(t, item.New(item.KindLightning, 0))
	h.dice.Push(2, 2)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Battle)
	assert.False(t, res.Battle.NeedsChoice())
	assert.Equal(t, battle.Lose, res.Battle.Outcome)
	assert.Equal(t, 2, h.human.Inventory.Count(item.CategorySpell), "unused spells kept")
}

func TestBattle_ConsumableChoiceAndIdempotentFinalize(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, guardTile(t, 7, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindKey, 0)}))
	fireball := item.New(item.KindFireball, 0)
	h.give(t, fireball)
	h.dice.Push(3, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Battle)
	require.True(t, res.Battle.NeedsChoice())
	battleID := res.Battle.ID
	assert.Equal(t, turn.Battling, h.game.Turn.Phase)

	_, err := h.try(engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Origin})
	assert.ErrorIs(t, err, turn.ErrDecisionPending)
	_, err = h.try(engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID})
	assert.ErrorIs(t, err, turn.ErrBattleInProgress)

	fin := engine.Command{Kind: engine.CmdFightFinalize, PlayerID: h.human.ID, BattleID: battleID, Selected: []string{fireball.ID}, Pickup: true}
	res = h.apply(t, fin)
	assert.Equal(t, battle.Win, res.Battle.Outcome)
	assert.Equal(t, 0, h.human.Inventory.Count(item.CategorySpell), "spent consumable removed")
	assert.True(t, h.human.Inventory.HasKey())

	before, err := json.Marshal(h.game)
	require.NoError(t, err)
	_, err = h.eng.Apply(h.game, fin)
	require.ErrorIs(t, err, battle.ErrAlreadyFinalized)
	rej, ok := engine.Reject(h.game, err)
	require.True(t, ok)
	assert.Equal(t, engine.KindIdempotent, rej.Kind)
	after, err := json.Marshal(h.game)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestBattle_DrawLeavesGuardAndClosesTurn(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, guardTile(t, 6, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindKey, 0)}))
	h.dice.Push(3, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	assert.Equal(t, battle.Draw, res.Battle.Outcome)
	assert.Equal(t, 5, h.human.HP)
	tile, _ := h.game.Field.Tile(field.Position{X: 1})
	assert.True(t, tile.HasLiveGuard())
	assert.Equal(t, int64(2), h.game.Turn.ID)
}

func TestStun_SkipsNextTurnAndRestoresHP(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, guardTile(t, 12, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindKey, 0)}))
	h.human.HP = 1
	h.dice.Push(1, 1)

	h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	assert.Equal(t, 1, h.human.HP)
	assert.False(t, h.human.Stunned)
	assert.Equal(t, int64(3), h.game.Turn.ID, "turn 2 was skipped")
	assert.Equal(t, h.human.ID, h.game.Turn.PlayerID)

	var skipped int
	for _, rec := range h.game.History {
		if rec.Kind == "turn_skipped" {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
}

func TestInventoryFull_ReplaceAndLeave(t *testing.T) {
	h := newHarness(t, false)
	dagger := item.New(item.KindDagger, 0)
	h.give(t, dagger)
	h.give(t, item.New(item.KindSword, 0))
	axe := item.New(item.KindAxe, 0)
	h.place(t, field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "W"), Loot: &axe})

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.InventoryFull)
	assert.Equal(t, item.CategoryWeapon, res.InventoryFull.Category)
	assert.Len(t, res.InventoryFull.Contents, 2)
	require.NotNil(t, h.game.Turn.Pickup)

	_, err := h.try(engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Origin})
	assert.ErrorIs(t, err, turn.ErrDecisionPending)

	h.apply(t, engine.Command{Kind: engine.CmdPickItem, PlayerID: h.human.ID, Pos: field.Position{X: 1}, ReplaceItemID: dagger.ID})
	weapons := h.human.Inventory.Items(item.CategoryWeapon)
	assert.Len(t, weapons, 2)
	assert.Contains(t, weapons, axe)
	tile, _ := h.game.Field.Tile(field.Position{X: 1})
	require.NotNil(t, tile.Loot)
	assert.Equal(t, dagger.ID, tile.Loot.ID, "evicted weapon is left on the tile")
	assert.Nil(t, h.game.Turn.Pickup)

	// stepping away and back offers the dagger again; declining leaves it
	h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Origin})
	res = h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.InventoryFull)
	h.apply(t, engine.Command{Kind: engine.CmdLeaveItem, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	assert.Nil(t, h.game.Turn.Pickup)
	assert.Equal(t, 1, h.game.Turn.Budget)
	tile, _ = h.game.Field.Tile(field.Position{X: 1})
	assert.Equal(t, dagger.ID, tile.Loot.ID)
}

func TestChest_KeyOpensAndClosesTurn(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "W"), Feature: field.FeatureChest, ChestValue: 5})

	h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	_, err := h.try(engine.Command{Kind: engine.CmdPickItem, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	assert.ErrorIs(t, err, engine.ErrMissingKey)
	assert.Equal(t, int64(1), h.game.Turn.ID)

	h.give(t, item.New(item.KindKey, 0))
	h.apply(t, engine.Command{Kind: engine.CmdPickItem, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	assert.False(t, h.human.Inventory.HasKey())
	assert.Equal(t, 5, h.human.Inventory.TreasureTotal())
	assert.Equal(t, int64(2), h.game.Turn.ID)
}

func TestFountainAndTeleport(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "EW")})
	h.place(t, field.Tile{Pos: field.Position{X: 2}, Openings: mustSides(t, "W"), Feature: field.FeatureFountain})
	h.human.HP = 2
	teleport := item.New(item.KindTeleport, 0)
	h.give(t, teleport)

	h.apply(t, engine.Command{Kind: engine.CmdUseSpell, PlayerID: h.human.ID, ItemID: teleport.ID, Pos: field.Position{X: 2}})
	pos, _ := h.game.Field.PlayerPosition(h.human.ID)
	assert.Equal(t, field.Position{X: 2}, pos)
	assert.Equal(t, 5, h.human.HP)
	assert.Equal(t, int64(2), h.game.Turn.ID, "fountain closes the turn")
	_, held := h.human.Inventory.Find(teleport.ID)
	assert.False(t, held)

	fireball := item.New(item.KindFireball, 0)
	h.give(t, fireball)
	_, err := h.try(engine.Command{Kind: engine.CmdUseSpell, PlayerID: h.human.ID, ItemID: fireball.ID, Pos: field.Position{X: 2}})
	assert.ErrorIs(t, err, engine.ErrNotUsable)
}

func TestFinalBoss_EndsGameAtomically(t *testing.T) {
	h := newHarness(t, true)
	h.place(t, guardTile(t, 3, field.Reward{Kind: field.RewardFinal, Item: item.New(item.KindTreasure, 20)}))
	h.dice.Push(3, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Ended)
	assert.Equal(t, engine.StatusFinished, h.game.Status)
	assert.Equal(t, engine.EndBossDefeated, res.Ended.Reason)
	require.Len(t, res.Ended.Totals, 2)
	assert.Equal(t, 20, res.Ended.Totals[0].Treasure)
	assert.True(t, res.Ended.Totals[0].Winner)
	assert.False(t, res.Ended.Totals[1].Winner)

	_, err := h.try(engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID})
	assert.ErrorIs(t, err, engine.ErrGameFinished)
}

func TestRotation_TwoPlayers(t *testing.T) {
	h := newHarness(t, true)
	bot := h.game.Players[1]

	_, err := h.try(engine.Command{Kind: engine.CmdEndTurn, PlayerID: bot.ID})
	require.ErrorIs(t, err, turn.ErrNotYourTurn)
	rej, ok := engine.Reject(h.game, err)
	require.True(t, ok)
	assert.Equal(t, h.human.ID, rej.TurnOwner)
	assert.Equal(t, 4, rej.Budget)

	h.apply(t, engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID, TurnID: 1})
	assert.Equal(t, bot.ID, h.game.Turn.PlayerID)

	_, err = h.try(engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID, TurnID: 1})
	assert.ErrorIs(t, err, turn.ErrStaleTurn, "replayed end turn is a no-op")
}

func TestRetriedEndTurn_AdvancesOnce(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.eng.Apply(h.game, engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID})
	require.ErrorIs(t, err, turn.ErrTurnIDRequired)
	rej, ok := engine.Reject(h.game, err)
	require.True(t, ok)
	assert.Equal(t, "turn_id_required", rej.Code)
	assert.Equal(t, int64(1), h.game.Turn.ID)

	end := engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID, TurnID: 1}
	h.apply(t, end)
	next := h.game.Turn.ID
	require.Greater(t, next, int64(1))

	_, err = h.eng.Apply(h.game, end)
	require.ErrorIs(t, err, turn.ErrStaleTurn)
	assert.Equal(t, next, h.game.Turn.ID, "retry does not advance another turn")
}

func TestRetriedMove_WithoutTurnIDIsRejected(t *testing.T) {
	h := newHarness(t, false)
	h.place(t, field.Tile{Pos: field.Position{X: 1}, Openings: field.AllOpen})

	move := engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}}
	_, err := h.eng.Apply(h.game, move)
	require.ErrorIs(t, err, turn.ErrTurnIDRequired)
	assert.Equal(t, 4, h.game.Turn.Budget)
	pos, err := h.game.Field.PlayerPosition(h.human.ID)
	require.NoError(t, err)
	assert.Equal(t, field.Origin, pos)

	move.TurnID = h.game.Turn.ID
	h.apply(t, move)
	assert.Equal(t, 3, h.game.Turn.Budget)

	h.apply(t, engine.Command{Kind: engine.CmdEndTurn, PlayerID: h.human.ID})
	_, err = h.eng.Apply(h.game, move)
	assert.ErrorIs(t, err, turn.ErrStaleTurn)
}

func TestLeave_AbandonsWithoutHumans(t *testing.T) {
	h := newHarness(t, true)
	res, err := h.eng.Leave(h.game, h.human.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Ended)
	assert.Equal(t, engine.EndAbandoned, res.Ended.Reason)
	for _, total := range res.Ended.Totals {
		assert.False(t, total.Winner)
	}
}

func TestLeave_SettlesPendingBattle(t *testing.T) {
	h := newHarness(t, true)
	h.place(t, guardTile(t, 7, field.Reward{Kind: field.RewardItem, Item: item.New(item.KindKey, 0)}))
	h.give(t, item.New(item.KindFireball, 0))
	h.dice.Push(3, 3)

	res := h.apply(t, engine.Command{Kind: engine.CmdMove, PlayerID: h.human.ID, Pos: field.Position{X: 1}})
	require.NotNil(t, res.Battle)
	require.True(t, res.Battle.NeedsChoice())
	battleID := res.Battle.ID

	_, err := h.eng.Leave(h.game, h.human.ID)
	require.NoError(t, err)
	b := h.game.Battles[battleID]
	require.NotNil(t, b)
	assert.Equal(t, battle.Finalized, b.State)
	assert.Empty(t, b.Selected)
	assert.Nil(t, h.game.ActiveBattle())
	for id, other := range h.game.Battles {
		assert.Equal(t, battle.Finalized, other.State, "battle %s left open", id)
	}
	left, err := h.game.Player(h.human.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left.Inventory.Count(item.CategorySpell), "nothing spent on an abandoned battle")
}

func TestRejectedCommandLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, false)
	before, err := json.Marshal(h.game)
	require.NoError(t, err)

	_, err = h.try(engine.Command{Kind: engine.CmdPlaceTile, PlayerID: h.human.ID, Pos: field.Position{X: 3}})
	require.Error(t, err)
	_, ok := engine.Reject(h.game, err)
	assert.True(t, ok)

	after, err := json.Marshal(h.game)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

// TestPropertyBudgetNeverExceeded plays random commands from random players and
// checks every turn spends at most the budget and never goes negative.
func TestPropertyBudgetNeverExceeded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := newHarness(t, true)
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps && h.game.Status == engine.StatusActive; i++ {
			h.dice.Push(rapid.IntRange(1, 6).Draw(t, "d1"), rapid.IntRange(1, 6).Draw(t, "d2"))
			seat := h.game.Players[rapid.IntRange(0, 1).Draw(t, "seat")]
			cmd := engine.Command{
				Kind:     rapid.SampledFrom([]engine.CommandKind{engine.CmdMove, engine.CmdPlaceTile, engine.CmdRotateTile, engine.CmdEndTurn}).Draw(t, "kind"),
				PlayerID: seat.ID,
				TurnID:   h.game.Turn.ID,
				Pos:      field.Position{X: rapid.IntRange(-2, 2).Draw(t, "x"), Y: rapid.IntRange(-2, 2).Draw(t, "y")},
			}
			if _, err := h.eng.Apply(h.game, cmd); err != nil {
				if _, ok := engine.Reject(h.game, err); !ok {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			tr := h.game.Turn
			if tr.Budget < 0 || tr.Spent > 4 || tr.Budget+tr.Spent != 4 && !tr.IsClosed() {
				t.Fatalf("turn %d budget %d spent %d", tr.ID, tr.Budget, tr.Spent)
			}
		}
	})
}
