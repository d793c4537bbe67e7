package dispatch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/set-night/dispatchbot/internal/domain"
)

type State int

const (
	Idle State = iota
	Classifying
	Dispatching
	Streaming
	Formatting
	Persisting
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Classifying:
		return "classifying"
	case Dispatching:
		return "dispatching"
	case Streaming:
		return "streaming"
	case Formatting:
		return "formatting"
	case Persisting:
		return "persisting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// View is the in-memory, optimistic copy of one conversation together with
// the state of its (single) in-flight turn.
type View struct {
	mu    sync.Mutex
	id    uuid.UUID
	state State
	turns []domain.Turn
	// stale marks turns for reload from the store on the next Views.Get.
	stale bool
	// version changes on every local append and on every markStale.
	version uint64
}

func NewView(conv domain.Conversation) *View {
	turns := make([]domain.Turn, len(conv.Turns))
	copy(turns, conv.Turns)
	return &View{id: conv.ID, turns: turns}
}

func (v *View) ID() uuid.UUID {
	return v.id
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Turns returns a snapshot; appends made later are not visible in it.
func (v *View) Turns() []domain.Turn {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Turn, len(v.turns))
	copy(out, v.turns)
	return out
}

// begin moves an idle view to Classifying. It reports false when a turn is
// already in flight.
func (v *View) begin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Idle {
		return false
	}
	v.state = Classifying
	return true
}

func (v *View) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

func (v *View) appendTurns(turns ...domain.Turn) {
	v.mu.Lock()
	v.turns = append(v.turns, turns...)
	v.version++
	v.mu.Unlock()
}

// markStale flags an idle view for reload. It reports false when a turn is
// in flight.
func (v *View) markStale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Idle {
		return false
	}
	v.stale = true
	v.version++
	return true
}

// staleVersion reports whether the view needs a reload and the version the
// reload must still match to be applied.
func (v *View) staleVersion() (bool, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stale, v.version
}

// reload replaces the turns with conv's when the view is idle and nothing
// changed since version was read.
func (v *View) reload(conv domain.Conversation, version uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Idle || v.version != version {
		return false
	}
	turns := make([]domain.Turn, len(conv.Turns))
	copy(turns, conv.Turns)
	v.turns = turns
	v.stale = false
	return true
}

// Views holds one View per conversation so that the idle gate is shared by
// every submission for that conversation. A View is never replaced once
// registered; Forget only schedules a reload of its turns.
type Views struct {
	mu    sync.Mutex
	views map[uuid.UUID]*View
}

func NewViews() *Views {
	return &Views{views: make(map[uuid.UUID]*View)}
}

// Get returns the view for id. load runs without the registry lock, either
// to build the view or to refresh a view marked by Forget. A failed refresh
// returns the view with its local turns.
func (r *Views) Get(id uuid.UUID, load func() (*domain.Conversation, error)) (*View, error) {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()
	if ok {
		r.refresh(v, load)
		return v, nil
	}

	conv, err := load()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[id]; ok {
		return v, nil
	}
	v = NewView(*conv)
	r.views[id] = v
	return v, nil
}

func (r *Views) refresh(v *View, load func() (*domain.Conversation, error)) {
	stale, version := v.staleVersion()
	if !stale {
		return
	}
	conv, err := load()
	if err != nil {
		slog.Warn("reload conversation view", "conversation_id", v.ID(), "error", err)
		return
	}
	v.reload(*conv, version)
}

// Forget marks an idle view so the next Get reloads its turns from the
// store. Views with a turn in flight are left untouched.
func (r *Views) Forget(id uuid.UUID) bool {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()
	if !ok {
		return true
	}
	return v.markStale()
}
