package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

// CommandKind names an in-play command.
type CommandKind string

// In-play commands.
const (
	CmdMove          CommandKind = "move"
	CmdPlaceTile     CommandKind = "place_tile"
	CmdRotateTile    CommandKind = "rotate_tile"
	CmdPickItem      CommandKind = "pick_item"
	CmdLeaveItem     CommandKind = "leave_item"
	CmdFightFinalize CommandKind = "fight_finalize"
	CmdUseSpell      CommandKind = "use_spell"
	CmdEndTurn       CommandKind = "end_turn"
)

// Command is one in-play request. Only the fields its Kind uses are read.
type Command struct {
	Kind     CommandKind `json:"kind"`
	PlayerID string      `json:"player_id"`
	// TurnID must name the current turn; a retry carrying an old id is a no-op.
	TurnID int64 `json:"turn_id"`

	Pos           field.Position `json:"pos"`
	Openings      field.Sides    `json:"openings,omitempty"`
	ItemID        string         `json:"item_id,omitempty"`
	ReplaceItemID string         `json:"replace_item_id,omitempty"`
	BattleID      string         `json:"battle_id,omitempty"`
	Selected      []string       `json:"selected,omitempty"`
	Pickup        bool           `json:"pickup,omitempty"`
}

// Result carries the payloads a command produced besides the new state.
type Result struct {
	Battle        *battle.Battle              `json:"battle,omitempty"`
	InventoryFull *inventory.CapacityExceeded `json:"inventory_full,omitempty"`
	// Ended is set when this command finished the game.
	Ended *EndInfo `json:"ended,omitempty"`
}

// Apply validates and executes cmd against g.
//
// Postcondition: on error g is unchanged. On success the command is appended to
// g.History, an exhausted budget has closed the turn, and a closed turn has
// been handed to the next eligible player.
func (e *Engine) Apply(g *Game, cmd Command) (Result, error) {
	return e.atomically(g, func(w *Game) (Result, error) {
		return e.apply(w, cmd)
	})
}

func (e *Engine) apply(g *Game, cmd Command) (Result, error) {
	switch g.Status {
	case StatusFinished:
		return Result{}, fmt.Errorf("%s in %s: %w", cmd.Kind, g.ID, ErrGameFinished)
	case StatusLobby:
		return Result{}, fmt.Errorf("%s in %s: %w", cmd.Kind, g.ID, ErrGameNotActive)
	}
	p, err := g.Player(cmd.PlayerID)
	if err != nil {
		return Result{}, err
	}
	if p.Left {
		return Result{}, fmt.Errorf("%s by %s: %w", cmd.Kind, p.ID, ErrPlayerLeft)
	}
	if cmd.Kind == CmdFightFinalize {
		// a replayed finalization is recognised before turn checks so the
		// retry is reported as a no-op rather than as out of turn
		if err := checkBattle(g, p, cmd.BattleID); err != nil {
			return Result{}, err
		}
	}
	if err := g.Turn.Authorize(p.ID, cmd.TurnID); err != nil {
		return Result{}, err
	}

	var res Result
	switch cmd.Kind {
	case CmdMove:
		err = e.move(g, p, cmd, &res)
	case CmdPlaceTile:
		err = e.placeTile(g, p, cmd, &res)
	case CmdRotateTile:
		err = e.rotateTile(g, cmd)
	case CmdPickItem:
		err = e.pickItem(g, p, cmd, &res)
	case CmdLeaveItem:
		err = e.leaveItem(g, p, cmd)
	case CmdFightFinalize:
		err = e.fightFinalize(g, p, cmd, &res)
	case CmdUseSpell:
		err = e.useSpell(g, p, cmd, &res)
	case CmdEndTurn:
		err = e.endTurn(g)
	default:
		err = fmt.Errorf("command %q: %w", cmd.Kind, ErrUnknownCommand)
	}
	if err != nil {
		return Result{}, err
	}

	g.record(p.ID, string(cmd.Kind), describe(cmd))
	if g.Status == StatusActive {
		g.Turn.Settle()
		if g.Turn.IsClosed() {
			e.advance(g)
		}
	}
	if g.Status == StatusFinished {
		res.Ended = g.Ended
	}
	e.logger.Debug("command applied",
		zap.String("game_id", g.ID),
		zap.String("player_id", p.ID),
		zap.String("command", string(cmd.Kind)),
		zap.Int64("turn_id", g.Turn.ID),
	)
	return res, nil
}

func describe(cmd Command) string {
	switch cmd.Kind {
	case CmdMove:
		return cmd.Pos.String()
	case CmdPlaceTile:
		return fmt.Sprintf("%s %s", cmd.Pos, cmd.Openings)
	case CmdRotateTile:
		return cmd.Openings.String()
	case CmdPickItem, CmdLeaveItem:
		return cmd.Pos.String()
	case CmdFightFinalize:
		return cmd.BattleID
	case CmdUseSpell:
		return fmt.Sprintf("%s %s", cmd.ItemID, cmd.Pos)
	}
	return ""
}

func checkBattle(g *Game, p *Player, battleID string) error {
	b, ok := g.Battles[battleID]
	if !ok {
		return fmt.Errorf("battle %q: %w", battleID, ErrUnknownBattle)
	}
	if b.PlayerID != p.ID {
		return fmt.Errorf("battle %s: %w", b.ID, ErrNotYourBattle)
	}
	if b.State == battle.Finalized {
		return fmt.Errorf("battle %s: %w", b.ID, battle.ErrAlreadyFinalized)
	}
	return nil
}

func (e *Engine) move(g *Game, p *Player, cmd Command, res *Result) error {
	from, err := g.Field.PlayerPosition(p.ID)
	if err != nil {
		return err
	}
	if err := g.Turn.CanBegin(turn.Moving, 1); err != nil {
		return err
	}
	if err := g.Field.CanStep(from, cmd.Pos); err != nil {
		return err
	}
	_ = g.Turn.Begin(turn.Moving, 1)
	g.Turn.Spend(string(CmdMove), 1)
	if err := g.Field.PutPlayer(p.ID, cmd.Pos); err != nil {
		return err
	}
	return e.arrive(g, p, from, true, "", res)
}

// placeTile lays the held tile next to the player and walks onto it as one
// action costing a single budget unit.
func (e *Engine) placeTile(g *Game, p *Player, cmd Command, res *Result) error {
	held, ok := g.HeldTile()
	if !ok {
		return fmt.Errorf("placing at %s: %w", cmd.Pos, ErrDeckEmpty)
	}
	if cmd.Openings != 0 {
		if !cmd.Openings.IsRotationOf(g.Deck[0].Openings) {
			return fmt.Errorf("placing %s as %s: %w", g.Deck[0].Openings, cmd.Openings, ErrWrongShape)
		}
		held.Openings = cmd.Openings
	}
	from, err := g.Field.PlayerPosition(p.ID)
	if err != nil {
		return err
	}
	if err := g.Turn.CanBegin(turn.Placing, 1); err != nil {
		return err
	}
	held.Pos = cmd.Pos
	if err := g.Field.CheckPlacement(&held, &from); err != nil {
		return err
	}

	_ = g.Turn.Begin(turn.Placing, 1)
	g.Turn.Spend(string(CmdPlaceTile), 1)
	placed := held
	if err := g.Field.Place(&placed, &from); err != nil {
		return err
	}
	g.Deck = g.Deck[1:]
	g.HeldOpenings = 0
	if len(g.Deck) > 0 {
		g.HeldOpenings = g.Deck[0].Openings
	}
	if err := g.Field.PutPlayer(p.ID, cmd.Pos); err != nil {
		return err
	}
	return e.arrive(g, p, from, true, cmd.ReplaceItemID, res)
}

// rotateTile orients the held tile. Zero openings turns it a quarter clockwise.
func (e *Engine) rotateTile(g *Game, cmd Command) error {
	if len(g.Deck) == 0 {
		return fmt.Errorf("rotating: %w", ErrDeckEmpty)
	}
	if cmd.Openings == 0 {
		g.HeldOpenings = g.HeldOpenings.Rotate()
		g.Turn.Record(string(CmdRotateTile))
		return nil
	}
	if !cmd.Openings.IsRotationOf(g.Deck[0].Openings) {
		return fmt.Errorf("rotating %s to %s: %w", g.Deck[0].Openings, cmd.Openings, ErrWrongShape)
	}
	g.HeldOpenings = cmd.Openings
	g.Turn.Record(string(CmdRotateTile))
	return nil
}

func (e *Engine) pickItem(g *Game, p *Player, cmd Command, res *Result) error {
	here, err := g.Field.PlayerPosition(p.ID)
	if err != nil {
		return err
	}
	if here != cmd.Pos {
		return fmt.Errorf("picking at %s from %s: %w", cmd.Pos, here, ErrNotHere)
	}
	if g.Turn.Phase == turn.Battling {
		return fmt.Errorf("picking at %s: %w", cmd.Pos, turn.ErrBattleInProgress)
	}
	tile, _ := g.Field.Tile(here)
	switch {
	case tile.HasLiveGuard():
		return fmt.Errorf("picking at %s: %w", cmd.Pos, ErrGuarded)
	case tile.HasLockedChest():
		if !p.Inventory.HasKey() {
			return fmt.Errorf("opening chest at %s: %w", cmd.Pos, ErrMissingKey)
		}
		e.openChest(g, p, tile)
		return nil
	case tile.Loot == nil:
		return fmt.Errorf("picking at %s: %w", cmd.Pos, ErrNothingHere)
	}
	g.Turn.Record(string(CmdPickItem))
	return e.take(g, p, tile, cmd.ReplaceItemID, res)
}

func (e *Engine) leaveItem(g *Game, p *Player, cmd Command) error {
	if g.Turn.Pickup == nil {
		return fmt.Errorf("leaving at %s: %w", cmd.Pos, turn.ErrNoPendingPickup)
	}
	if g.Turn.Pickup.Pos != cmd.Pos {
		return fmt.Errorf("leaving at %s, pickup at %s: %w", cmd.Pos, g.Turn.Pickup.Pos, ErrNotHere)
	}
	_, _ = g.Turn.ClearPickup()
	g.Turn.Record(string(CmdLeaveItem))
	return nil
}

func (e *Engine) fightFinalize(g *Game, p *Player, cmd Command, res *Result) error {
	if g.Turn.BattleID != cmd.BattleID {
		return fmt.Errorf("battle %s: %w", cmd.BattleID, ErrBattleNotActive)
	}
	b := g.Battles[cmd.BattleID]
	if err := b.Finalize(cmd.Selected); err != nil {
		return err
	}
	g.Turn.LeaveBattle()
	res.Battle = b
	return e.conclude(g, p, b, cmd.Pickup, cmd.ReplaceItemID, res)
}

// useSpell casts teleport, moving the player to any placed fountain.
func (e *Engine) useSpell(g *Game, p *Player, cmd Command, res *Result) error {
	spell, ok := p.Inventory.Find(cmd.ItemID)
	if !ok {
		return fmt.Errorf("using %q: %w", cmd.ItemID, inventory.ErrItemNotFound)
	}
	if spell.Kind != item.KindTeleport {
		return fmt.Errorf("using %s outside battle: %w", spell.Kind, ErrNotUsable)
	}
	target, ok := g.Field.Tile(cmd.Pos)
	if !ok || !target.IsFountain() {
		return fmt.Errorf("teleporting to %s: %w", cmd.Pos, ErrNotFountain)
	}
	from, err := g.Field.PlayerPosition(p.ID)
	if err != nil {
		return err
	}
	if err := g.Turn.Begin(turn.UsingItem, 1); err != nil {
		return err
	}
	g.Turn.Spend(string(CmdUseSpell), 1)
	if _, err := p.Inventory.Remove(spell.ID); err != nil {
		return err
	}
	if err := g.Field.PutPlayer(p.ID, cmd.Pos); err != nil {
		return err
	}
	return e.arrive(g, p, from, true, "", res)
}

// endTurn closes the turn on request. A pending pickup is declined; an open
// battle choice must be finalized first.
func (e *Engine) endTurn(g *Game) error {
	if g.Turn.Phase == turn.Battling {
		return fmt.Errorf("ending turn %d: %w", g.Turn.ID, turn.ErrBattleInProgress)
	}
	return g.Turn.Close(turn.ReasonEnded)
}

// arrive resolves what the player meets on the tile they now stand on. from is
// where they came from, used as the retreat after a lost or drawn battle.
func (e *Engine) arrive(g *Game, p *Player, from field.Position, pickup bool, replaceID string, res *Result) error {
	pos, err := g.Field.PlayerPosition(p.ID)
	if err != nil {
		return err
	}
	tile, _ := g.Field.Tile(pos)
	if !tile.HasLiveGuard() {
		return e.collect(g, p, tile, pickup, replaceID, res)
	}

	b := battle.Start(battle.Encounter{
		ID:           uuid.NewString(),
		PlayerID:     p.ID,
		TurnID:       g.Turn.ID,
		Pos:          pos,
		From:         from,
		Guard:        *tile.Guard,
		Roll:         e.roller.Roll(),
		WeaponDamage: p.Inventory.WeaponDamage(),
		Consumables:  p.Inventory.BattleConsumables(),
	})
	g.Battles[b.ID] = b
	res.Battle = b
	g.record(p.ID, "battle_start", b.ID)
	if b.NeedsChoice() {
		g.Turn.EnterBattle(b.ID)
		return nil
	}
	if err := b.Finalize(nil); err != nil {
		return err
	}
	return e.conclude(g, p, b, pickup, replaceID, res)
}

// conclude applies a finalized battle: spent consumables, HP, the guard and
// its reward, and any forced turn closure.
func (e *Engine) conclude(g *Game, p *Player, b *battle.Battle, pickup bool, replaceID string, res *Result) error {
	for _, spent := range b.Selected {
		if _, err := p.Inventory.Remove(spent.ID); err != nil {
			return fmt.Errorf("spending %s in battle %s: %w", spent.ID, b.ID, err)
		}
	}
	g.record(p.ID, "battle_end", fmt.Sprintf("%s %s %d/%d", b.ID, b.Outcome, b.FinalDamage, b.MonsterHP))
	e.logger.Info("battle finalized",
		zap.String("game_id", g.ID),
		zap.String("battle_id", b.ID),
		zap.String("monster", b.Monster),
		zap.String("outcome", string(b.Outcome)),
		zap.Int("damage", b.FinalDamage),
		zap.Int("monster_hp", b.MonsterHP),
	)

	tile, _ := g.Field.Tile(b.Pos)
	switch b.Outcome {
	case battle.Lose:
		p.HP = max(p.HP-1, 0)
		if err := g.Field.PutPlayer(p.ID, b.From); err != nil {
			return err
		}
		if p.HP == 0 {
			p.Stunned = true
			return g.Turn.Close(turn.ReasonStunned)
		}
		return g.Turn.Close(turn.ReasonBattleLost)
	case battle.Draw:
		if err := g.Field.PutPlayer(p.ID, b.From); err != nil {
			return err
		}
		return g.Turn.Close(turn.ReasonBattleDraw)
	}

	tile.Guard.Defeated = true
	reward := tile.Guard.Reward
	switch reward.Kind {
	case field.RewardChest:
		p.Inventory.Add(reward.Item)
		return g.Turn.Close(turn.ReasonChest)
	case field.RewardFinal:
		p.Inventory.Add(reward.Item)
		e.finish(g, EndBossDefeated)
		return nil
	}
	it := reward.Item
	tile.Loot = &it
	return e.collect(g, p, tile, pickup, replaceID, res)
}

// collect applies the unguarded tile's effects in order: loot, chest, fountain.
func (e *Engine) collect(g *Game, p *Player, tile *field.Tile, pickup bool, replaceID string, res *Result) error {
	if tile.Loot != nil && pickup {
		if err := e.take(g, p, tile, replaceID, res); err != nil {
			return err
		}
	}
	if tile.HasLockedChest() && p.Inventory.HasKey() {
		e.openChest(g, p, tile)
	}
	if tile.IsFountain() && !g.Turn.IsClosed() {
		p.HP = g.Rules.MaxHP
		return g.Turn.Close(turn.ReasonFountain)
	}
	return nil
}

// take moves the tile's loot into the inventory. A full category either
// swaps with replaceID, dropping the evicted item on the tile, or records a
// pending pickup and reports the category contents.
func (e *Engine) take(g *Game, p *Player, tile *field.Tile, replaceID string, res *Result) error {
	it := *tile.Loot
	_, full := p.Inventory.Add(it)
	if full == nil {
		tile.Loot = nil
		g.Turn.Pickup = nil
		return nil
	}
	if replaceID == "" {
		g.Turn.HoldPickup(turn.Pickup{Pos: tile.Pos, Full: *full})
		res.InventoryFull = full
		return nil
	}
	evicted, err := p.Inventory.Replace(it, replaceID)
	if err != nil {
		return err
	}
	tile.Loot = &evicted
	g.Turn.Pickup = nil
	return nil
}

func (e *Engine) openChest(g *Game, p *Player, tile *field.Tile) {
	for _, key := range p.Inventory.Items(item.CategoryKey) {
		_, _ = p.Inventory.Remove(key.ID)
	}
	p.Inventory.Add(item.New(item.KindTreasure, tile.ChestValue))
	tile.ChestOpened = true
	g.record(p.ID, "chest_open", fmt.Sprintf("%s %d", tile.Pos, tile.ChestValue))
	if !g.Turn.IsClosed() {
		_ = g.Turn.Close(turn.ReasonChest)
	}
}
