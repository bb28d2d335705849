package scripting

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts v to a Lua value by way of its JSON encoding: objects become
// tables with string keys, arrays become 1-based sequences.
func ToLua(L *lua.LState, v any) (lua.LValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return lua.LNil, fmt.Errorf("scripting: encoding %T: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return lua.LNil, fmt.Errorf("scripting: decoding %T: %w", v, err)
	}
	return toLua(L, generic), nil
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, e := range x {
			t.Append(toLua(L, e))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, toLua(L, x[k]))
		}
		return t
	}
	return lua.LNil
}

// FromLua decodes a Lua value into out by way of JSON. Tables whose keys are
// exactly 1..n become arrays; any other table becomes an object.
func FromLua(v lua.LValue, out any) error {
	data, err := json.Marshal(fromLua(v))
	if err != nil {
		return fmt.Errorf("scripting: encoding lua value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("scripting: decoding lua value: %w", err)
	}
	return nil
}

func fromLua(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		f := float64(x)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(x)
	case *lua.LTable:
		keys := countKeys(x)
		if keys == 0 {
			return nil
		}
		if n := x.MaxN(); n > 0 && n == keys {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, fromLua(x.RawGetInt(i)))
			}
			return arr
		}
		obj := make(map[string]any)
		x.ForEach(func(k, val lua.LValue) {
			obj[k.String()] = fromLua(val)
		})
		return obj
	}
	return nil
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}
