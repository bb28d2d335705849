package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tiledungeon/internal/scripting"
)

func TestSandbox_OnlySafeLibraries(t *testing.T) {
	sb := scripting.NewSandbox(0)
	defer sb.Close()
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, sb.L.GetGlobal(name), "%s should be unreachable", name)
	}
	require.NoError(t, sb.L.DoString(`
		assert(math.max(1, 3) == 3)
		assert(string.rep("N", 2) == "NN")
		local t = {}
		table.insert(t, "E")
		assert(#t == 1)
	`))
}

func TestSandbox_RunawayScriptStops(t *testing.T) {
	sb := scripting.NewSandbox(10)
	defer sb.Close()
	assert.Error(t, sb.L.DoString(`while true do end`))
}

func TestSandbox_RearmRestoresAllowance(t *testing.T) {
	sb := scripting.NewSandbox(25)
	defer sb.Close()
	require.Error(t, sb.L.DoString(`while true do end`))

	sb.Rearm()
	assert.NoError(t, sb.L.DoString(`local x = 1 + 1`))
}

func TestProperty_EveryAllowanceIsFinite(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		sb := scripting.NewSandbox(limit)
		defer sb.Close()
		if err := sb.L.DoString(`while true do end`); err == nil {
			t.Fatalf("loop finished under limit=%d", limit)
		}
	})
}
