package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
)

// Mode says what the dispatcher does with an action.
type Mode int

const (
	// ModeRecord captures an event of Kind immediately.
	ModeRecord Mode = iota
	// ModeOpenForm asks the platform to show the logout form.
	ModeOpenForm
	// ModeSubmitForm captures a logout event from submitted form fields.
	ModeSubmitForm
)

// Action identifiers carried by the panel controls.
const (
	IDLogin       = "login"
	IDBreak       = "break"
	IDLogoutBreak = "logout_break"
	IDLogout      = "logout"
	IDLogoutForm  = "logout_modal"
)

// Action binds an identifier to a mode and event kind.
type Action struct {
	ID   string
	Kind event.Kind
	Mode Mode
}

// Registry maps action identifiers to actions.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Default returns the registry for the attendance panel.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Action{ID: IDLogin, Kind: event.KindLogin, Mode: ModeRecord})
	r.Register(Action{ID: IDBreak, Kind: event.KindBreakStart, Mode: ModeRecord})
	r.Register(Action{ID: IDLogoutBreak, Kind: event.KindBreakEnd, Mode: ModeRecord})
	r.Register(Action{ID: IDLogout, Kind: event.KindLogout, Mode: ModeOpenForm})
	r.Register(Action{ID: IDLogoutForm, Kind: event.KindLogout, Mode: ModeSubmitForm})
	return r
}

// Register adds an action. Panics on duplicate identifiers or unknown kinds to
// surface misconfiguration early.
func (r *Registry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.ID]; exists {
		panic(fmt.Sprintf("action registry: duplicate identifier %q", a.ID))
	}
	if !a.Kind.Valid() {
		panic(fmt.Sprintf("action registry: %q has unknown kind %q", a.ID, a.Kind))
	}
	r.actions[a.ID] = a
}

// Get returns the action registered under id.
func (r *Registry) Get(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// IDs returns all registered identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for k := range r.actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
