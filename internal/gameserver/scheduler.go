package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/bot"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
)

// AutomatedAction is one command an automated player issued inline.
type AutomatedAction struct {
	PlayerID      string                      `json:"player_id"`
	TurnID        int64                       `json:"turn_id"`
	Command       engine.Command              `json:"command"`
	Battle        *battle.Battle              `json:"battle,omitempty"`
	InventoryFull *inventory.CapacityExceeded `json:"inventory_full,omitempty"`
	// Forced is set when the scheduler ended the turn itself.
	Forced bool `json:"forced,omitempty"`
}

// Scheduler plays automated players' turns to completion.
type Scheduler struct {
	engine      *engine.Engine
	policy      bot.Policy
	maxCommands int
	logger      *zap.Logger
}

// NewScheduler creates a Scheduler.
//
// Precondition: eng, policy and logger must be non-nil; maxCommands >= 1.
func NewScheduler(eng *engine.Engine, policy bot.Policy, maxCommands int, logger *zap.Logger) *Scheduler {
	return &Scheduler{engine: eng, policy: policy, maxCommands: maxCommands, logger: logger}
}

// Run applies automated commands to g until a human owns the turn or the game
// is over. A turn that reaches maxCommands, or whose policy produces a
// rejected command, is ended by the scheduler.
//
// Precondition: the caller holds g's serializer lock.
// Postcondition: g is finished or its current owner is human.
func (s *Scheduler) Run(g *engine.Game) ([]AutomatedAction, error) {
	var actions []AutomatedAction
	issued := make(map[int64]int)
	for {
		owner, ok := g.CurrentOwner()
		if !ok || !owner.Automated {
			return actions, nil
		}
		turnID := g.Turn.ID
		log := s.logger.With(
			zap.String("game_id", g.ID),
			zap.String("player_id", owner.ID),
			zap.Int64("turn_id", turnID),
		)

		if issued[turnID] < s.maxCommands {
			issued[turnID]++
			cmd, err := s.choose(g, owner.ID)
			if err != nil {
				log.Warn("automated policy failed; ending turn", zap.Error(err))
			} else {
				res, err := s.engine.Apply(g, cmd)
				if err == nil {
					actions = append(actions, AutomatedAction{
						PlayerID:      owner.ID,
						TurnID:        turnID,
						Command:       cmd,
						Battle:        res.Battle,
						InventoryFull: res.InventoryFull,
					})
					continue
				}
				if _, domain := engine.Reject(g, err); !domain {
					return actions, fmt.Errorf("automated turn %d in %s: %w", turnID, g.ID, err)
				}
				log.Warn("automated command rejected; ending turn",
					zap.String("command", string(cmd.Kind)),
					zap.Error(err),
				)
			}
		} else {
			log.Warn("automated player reached command limit; ending turn",
				zap.Int("max_commands", s.maxCommands),
			)
		}

		cmd := forcedCommand(g, owner.ID)
		res, err := s.engine.Apply(g, cmd)
		if err != nil {
			return actions, fmt.Errorf("forcing end of turn %d in %s: %w", turnID, g.ID, err)
		}
		actions = append(actions, AutomatedAction{
			PlayerID: owner.ID,
			TurnID:   turnID,
			Command:  cmd,
			Battle:   res.Battle,
			Forced:   true,
		})
		// cap further choices for this turn if the forced finalize left it open
		issued[turnID] = s.maxCommands
	}
}

func (s *Scheduler) choose(g *engine.Game, playerID string) (engine.Command, error) {
	v, err := bot.NewView(g, playerID)
	if err != nil {
		return engine.Command{}, err
	}
	return s.policy.Choose(v)
}

// forcedCommand settles whatever blocks the turn from ending: a pending
// consumable choice is finalized with no consumables, anything else ends the
// turn (which also declines a pending pickup).
func forcedCommand(g *engine.Game, playerID string) engine.Command {
	cmd := engine.Command{PlayerID: playerID, TurnID: g.Turn.ID}
	if b := g.ActiveBattle(); b != nil && b.State == battle.AwaitingConsumableChoice {
		cmd.Kind = engine.CmdFightFinalize
		cmd.BattleID = b.ID
		return cmd
	}
	cmd.Kind = engine.CmdEndTurn
	return cmd
}
