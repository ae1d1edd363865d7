package modules

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/panel"
)

// Panel is the slice of the controller that macros may drive.
type Panel interface {
	Groups() []group.Group
	RecallScene(ctx context.Context, groupID string, index int) bool
	SetChaseMode(groupID string, mode group.ChaseMode) bool
	Power(ctx context.Context, groupID string, on bool, fade panel.Fade) bool
	SetBrightness(ctx context.Context, groupID string, bri uint8) bool
	SetColor(ctx context.Context, groupID string, color panel.Color) bool
	SetTempo(groupID string, t int) bool
}

// PanelModule exposes group intents and the macro table to Lua.
//
//	local panel = require("panel")
//	panel.macro("blackout", function()
//	    for _, g in ipairs(panel.groups()) do panel.off(g.id, "1s") end
//	end)
type PanelModule struct {
	panel Panel

	mu     sync.RWMutex
	macros map[string]*lua.LFunction
}

// NewPanelModule creates a new panel module.
func NewPanelModule(p Panel) *PanelModule {
	return &PanelModule{
		panel:  p,
		macros: make(map[string]*lua.LFunction),
	}
}

// Loader is the module loader for Lua.
func (m *PanelModule) Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"macro":      m.macro,
		"groups":     m.groups,
		"recall":     m.recall,
		"chase":      m.chase,
		"on":         m.power(true),
		"off":        m.power(false),
		"brightness": m.brightness,
		"color":      m.color,
		"tempo":      m.tempo,
	})
	L.Push(mod)
	return 1
}

// Macro returns the function registered under name.
func (m *PanelModule) Macro(name string) (*lua.LFunction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.macros[name]
	return fn, ok
}

// Names returns the registered macro names in sorted order.
func (m *PanelModule) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.macros))
	for name := range m.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// macro(name, fn)
func (m *PanelModule) macro(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	m.mu.Lock()
	_, replaced := m.macros[name]
	m.macros[name] = fn
	m.mu.Unlock()

	log.Debug().Str("macro", name).Bool("replaced", replaced).Msg("Macro registered")
	return 0
}

// groups() -> {{id=, name=, fixtures={...}, chase=, tempo=}, ...}
func (m *PanelModule) groups(L *lua.LState) int {
	tbl := L.NewTable()
	for i, g := range m.panel.Groups() {
		entry := L.NewTable()
		entry.RawSetString("id", lua.LString(g.ID))
		entry.RawSetString("name", lua.LString(g.Name))
		entry.RawSetString("chase", lua.LString(g.ChaseMode))
		entry.RawSetString("tempo", lua.LNumber(g.Tempo))
		fixtures := L.NewTable()
		for j, id := range g.Fixtures {
			fixtures.RawSetInt(j+1, lua.LString(id))
		}
		entry.RawSetString("fixtures", fixtures)
		entry.RawSetString("scenes", lua.LNumber(len(g.Scenes)))
		tbl.RawSetInt(i+1, entry)
	}
	L.Push(tbl)
	return 1
}

// recall(group, index) -> bool. index is 1-based.
func (m *PanelModule) recall(L *lua.LState) int {
	groupID := L.CheckString(1)
	index := L.CheckInt(2)
	L.Push(lua.LBool(m.panel.RecallScene(workContext(L), groupID, index-1)))
	return 1
}

// chase(group, mode) -> bool
func (m *PanelModule) chase(L *lua.LState) int {
	groupID := L.CheckString(1)
	mode := group.ChaseMode(L.CheckString(2))
	if !mode.Valid() {
		L.ArgError(2, "unknown chase mode: "+string(mode))
		return 0
	}
	L.Push(lua.LBool(m.panel.SetChaseMode(groupID, mode)))
	return 1
}

// on(group, fade) / off(group, fade) -> bool
func (m *PanelModule) power(on bool) lua.LGFunction {
	return func(L *lua.LState) int {
		groupID := L.CheckString(1)
		fade, ok := panel.ParseFade(L.OptString(2, ""))
		if !ok {
			L.ArgError(2, "unknown fade")
			return 0
		}
		L.Push(lua.LBool(m.panel.Power(workContext(L), groupID, on, fade)))
		return 1
	}
}

// brightness(group, 1..254) -> bool
func (m *PanelModule) brightness(L *lua.LState) int {
	groupID := L.CheckString(1)
	bri := L.CheckInt(2)
	if bri < 1 || bri > 254 {
		L.ArgError(2, "brightness must be between 1 and 254")
		return 0
	}
	L.Push(lua.LBool(m.panel.SetBrightness(workContext(L), groupID, uint8(bri))))
	return 1
}

// color(group, "#RRGGBB" | "rgb(r,g,b)") -> bool
func (m *PanelModule) color(L *lua.LState) int {
	groupID := L.CheckString(1)
	c, err := panel.ParseColor(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	L.Push(lua.LBool(m.panel.SetColor(workContext(L), groupID, c)))
	return 1
}

// tempo(group, bpm) -> bool
func (m *PanelModule) tempo(L *lua.LState) int {
	groupID := L.CheckString(1)
	t := L.CheckInt(2)
	if t < 0 {
		L.ArgError(2, "tempo must not be negative")
		return 0
	}
	L.Push(lua.LBool(m.panel.SetTempo(groupID, t)))
	return 1
}
