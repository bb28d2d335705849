// Package main is a command-line client for the game service. Each
// invocation sends one request and prints the JSON response.
//
//	crawlctl create
//	crawlctl join -game ID -name alice [-bot]
//	crawlctl ready|start|leave -game ID -player ID
//	crawlctl place -game ID -player ID -turn N -x 1 -y 0 [-openings NESW]
//	crawlctl move -game ID -player ID -turn N -x 0 -y 0
//	crawlctl rotate|end -game ID -player ID -turn N
//	crawlctl pick|leave-item -game ID -player ID -turn N -x 0 -y 0 [-replace ITEM]
//	crawlctl finalize -game ID -player ID -turn N -battle ID [-use ID,ID] [-pickup]
//	crawlctl spell -game ID -player ID -turn N -item ID -x 2 -y 1
//
// In-turn commands must name the current turn with -turn; retrying with the
// same value is safe.
//	crawlctl state -game ID
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50051", "game service address")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: crawlctl [-addr host:port] <command> [flags]")
		os.Exit(2)
	}

	client, err := gameserver.Dial(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := run(ctx, client, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
	if resp.Rejection != nil {
		os.Exit(3)
	}
}

type requestFlags struct {
	fs       *flag.FlagSet
	game     *string
	player   *string
	turn     *int64
	x, y     *int
	openings *string
	item     *string
	replace  *string
	battle   *string
	use      *string
	pickup   *bool
	name     *string
	external *string
	wallet   *string
	bot      *bool
}

func newRequestFlags(cmd string) *requestFlags {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	return &requestFlags{
		fs:       fs,
		game:     fs.String("game", "", "game id"),
		player:   fs.String("player", "", "player id"),
		turn:     fs.Int64("turn", 0, "current turn id (idempotency key, required for in-turn commands)"),
		x:        fs.Int("x", 0, "target x"),
		y:        fs.Int("y", 0, "target y"),
		openings: fs.String("openings", "", "tile orientation, e.g. NES"),
		item:     fs.String("item", "", "item id"),
		replace:  fs.String("replace", "", "held item id to replace"),
		battle:   fs.String("battle", "", "battle id"),
		use:      fs.String("use", "", "comma-separated consumable ids"),
		pickup:   fs.Bool("pickup", false, "take the guard's item reward"),
		name:     fs.String("name", "", "player name"),
		external: fs.String("external-id", "", "external account id"),
		wallet:   fs.String("wallet", "", "wallet address"),
		bot:      fs.Bool("bot", false, "seat an automated player"),
	}
}

func (f *requestFlags) command() (*gameserver.CommandRequest, error) {
	if *f.turn <= 0 {
		return nil, fmt.Errorf("%s: -turn must name the current turn id", f.fs.Name())
	}
	req := &gameserver.CommandRequest{
		GameID:        *f.game,
		PlayerID:      *f.player,
		TurnID:        *f.turn,
		Pos:           field.Position{X: *f.x, Y: *f.y},
		ItemID:        *f.item,
		ReplaceItemID: *f.replace,
		BattleID:      *f.battle,
		Pickup:        *f.pickup,
	}
	if *f.openings != "" {
		sides, err := field.ParseSides(*f.openings)
		if err != nil {
			return nil, err
		}
		req.Openings = sides
	}
	if *f.use != "" {
		req.Selected = strings.Split(*f.use, ",")
	}
	return req, nil
}

func run(ctx context.Context, c *gameserver.Client, cmd string, args []string) (*gameserver.Response, error) {
	f := newRequestFlags(cmd)
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}

	inPlay := map[string]func(context.Context, *gameserver.CommandRequest) (*gameserver.Response, error){
		"move":       c.Move,
		"place":      c.PlaceTile,
		"rotate":     c.RotateTile,
		"pick":       c.PickItem,
		"leave-item": c.LeaveItem,
		"finalize":   c.FightFinalize,
		"spell":      c.UseSpell,
		"end":        c.EndTurn,
	}
	if call, ok := inPlay[cmd]; ok {
		req, err := f.command()
		if err != nil {
			return nil, err
		}
		return call(ctx, req)
	}

	switch cmd {
	case "create":
		return c.CreateGame(ctx)
	case "join":
		return c.JoinGame(ctx, &gameserver.JoinGameRequest{
			GameID:     *f.game,
			Name:       *f.name,
			ExternalID: *f.external,
			Wallet:     *f.wallet,
			Automated:  *f.bot,
		})
	case "ready":
		return c.MarkReady(ctx, *f.game, *f.player)
	case "start":
		return c.StartGame(ctx, *f.game, *f.player)
	case "leave":
		return c.LeaveGame(ctx, *f.game, *f.player)
	case "state":
		return c.GetState(ctx, *f.game)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}
