package hue

import (
	"context"
	"fmt"
	"sync"

	"github.com/dokzlo13/lightdeck/internal/fixture"
)

// Call is one command received by the mock bridge.
type Call struct {
	FixtureID string
	Update    fixture.Update
}

// MockBridge is an in-memory bridge with six lights. It applies updates
// to its own state, records every call and can be told to fail.
type MockBridge struct {
	mu       sync.Mutex
	fixtures map[string]*fixture.Fixture
	order    []string
	calls    []Call
	failures map[string]error
}

// NewMockBridge returns a bridge preloaded with the demo lights.
func NewMockBridge() *MockBridge {
	m := NewEmptyMockBridge()
	m.Add("1", "Mock Front Left", hsState(true, 200, 10000, 200, 300))
	m.Add("2", "Mock Front Right", hsState(true, 180, 50000, 180, 250))
	m.Add("3", "Mock Back Wash", hsState(false, 254, 30000, 254, 200))
	m.Add("4", "Mock Center Spot", hsState(true, 220, 45000, 210, 180))
	m.Add("5", "Mock Side Fill L", hsState(true, 160, 15000, 150, 260))
	m.Add("6", "Mock Side Fill R", hsState(true, 160, 55000, 150, 260))
	return m
}

// NewEmptyMockBridge returns a bridge with no lights.
func NewEmptyMockBridge() *MockBridge {
	return &MockBridge{
		fixtures: make(map[string]*fixture.Fixture),
		failures: make(map[string]error),
	}
}

func hsState(on bool, bri uint8, hue uint16, sat uint8, ct uint16) fixture.State {
	return fixture.State{
		On:        on,
		Bri:       bri,
		Hue:       fixture.Ptr(hue),
		Sat:       fixture.Ptr(sat),
		Ct:        fixture.Ptr(ct),
		ColorMode: fixture.ColorModeHS,
	}
}

// Add registers a light.
func (m *MockBridge) Add(id, name string, s fixture.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fixtures[id]; !ok {
		m.order = append(m.order, id)
	}
	m.fixtures[id] = &fixture.Fixture{ID: id, Name: name, Type: "Extended color light", Reachable: true, State: s}
}

// Remove forgets a light.
func (m *MockBridge) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.fixtures, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Fail makes every command to id return err. A nil err clears it.
func (m *MockBridge) Fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, id)
		return
	}
	m.failures[id] = err
}

// SetState records the call and applies it unless a failure is configured.
func (m *MockBridge) SetState(ctx context.Context, id string, u fixture.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{FixtureID: id, Update: u})
	if err := m.failures[id]; err != nil {
		return err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return &APIError{Type: 3, Address: fmt.Sprintf("/lights/%s/state", id), Description: "resource not available"}
	}
	f.State = fixture.Merge(f.State, u)
	return nil
}

// Fixtures returns the current lights in insertion order.
func (m *MockBridge) Fixtures(ctx context.Context) ([]fixture.Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]fixture.Fixture, 0, len(m.order))
	for _, id := range m.order {
		f := *m.fixtures[id]
		f.State.Alert = ""
		out = append(out, f)
	}
	return out, nil
}

// Calls returns a copy of every recorded command.
func (m *MockBridge) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsFor returns the recorded commands sent to one light.
func (m *MockBridge) CallsFor(id string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.FixtureID == id {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (m *MockBridge) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
