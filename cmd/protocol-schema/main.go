// Package main writes JSON Schemas for every message of the game service's
// JSON wire protocol.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/cory-johannsen/tiledungeon/internal/game/bot"
	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
)

var messages = map[string]struct {
	value       any
	description string
}{
	"GameRequest":     {new(gameserver.GameRequest), "Names a game. Used by CreateGame (empty) and GetState."},
	"JoinGameRequest": {new(gameserver.JoinGameRequest), "Takes a seat in a lobby."},
	"PlayerRequest":   {new(gameserver.PlayerRequest), "MarkReady, StartGame and LeaveGame."},
	"CommandRequest":  {new(gameserver.CommandRequest), "Every in-play command; the RPC method selects the kind."},
	"CommandResponse": {new(gameserver.Response), "Answer to every request: snapshot plus battle, inventory-full, rejection and automated-turn payloads."},
	"BotView":         {new(bot.View), "Argument passed to a bot script's choose_action hook."},
}

func main() {
	outDir := flag.String("out", "", "directory to write the schemas into")
	flag.Parse()

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create schema directory: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(messages))
	for name := range messages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(*outDir, name+".schema.json")
		if err := writeSchema(path, buildSchema(name)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stdout, path)
	}
}

func buildSchema(name string) *jsonschema.Schema {
	msg := messages[name]
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(msg.value)
	schema.Title = "tiledungeon.v1." + name
	schema.Description = msg.description
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
