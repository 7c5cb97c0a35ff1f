// Package toggle implements a group of persisted boolean view switches, some
// of which are mutually exclusive.
package toggle

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/livetemplate/cssplay/internal/ports"
)

// ErrUnknownToggle is returned by Click for a key that was never registered.
var ErrUnknownToggle = errors.New("unknown toggle")

// Persistence is the best-effort key-value port toggle states are kept in.
type Persistence interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Toggle is one registered switch.
type Toggle struct {
	Key       string
	Label     string
	Exclusive bool

	active     bool
	indicator  ports.Indicator
	onActivate func(bool)
	store      Persistence
}

// Active reports the current state.
func (t *Toggle) Active() bool { return t.active }

// set changes the state, persists it and re-renders the indicator.
func (t *Toggle) set(active bool) {
	t.active = active
	t.store.Set(t.Key, strconv.FormatBool(active))
	t.render()
}

func (t *Toggle) render() {
	if t.indicator != nil {
		t.indicator.Render(t.Label, t.active)
	}
}

func (t *Toggle) fire(active bool) {
	if t.onActivate != nil {
		t.onActivate(active)
	}
}

// Group holds the registered toggles in registration order. It is not safe
// for concurrent use; callers serialize access.
type Group struct {
	prefix  string
	store   Persistence
	members []*Toggle
	byKey   map[string]*Toggle
}

// NewGroup creates a group whose toggles persist under prefix+label.
func NewGroup(store Persistence, prefix string) *Group {
	return &Group{
		prefix: prefix,
		store:  store,
		byKey:  make(map[string]*Toggle),
	}
}

// Register adds a toggle bound to indicator. Its state is restored from the
// store ("true" means active, anything else inactive) and rendered; a
// restored active toggle fires onActivate(true) immediately.
//
// At most one exclusive member is restored as active: the first registered
// wins and a later stale "true" is overwritten with "false".
func (g *Group) Register(indicator ports.Indicator, label string, exclusive bool, onActivate func(bool)) *Toggle {
	key := g.prefix + label
	v, _ := g.store.Get(key)

	t := &Toggle{
		Key:        key,
		Label:      label,
		Exclusive:  exclusive,
		active:     v == "true",
		indicator:  indicator,
		onActivate: onActivate,
		store:      g.store,
	}
	if t.active && exclusive && g.exclusiveActive() {
		t.active = false
		g.store.Set(key, "false")
	}
	g.members = append(g.members, t)
	g.byKey[key] = t

	t.render()
	if t.active {
		t.fire(true)
	}
	return t
}

func (g *Group) exclusiveActive() bool {
	for _, m := range g.members {
		if m.Exclusive && m.active {
			return true
		}
	}
	return false
}

// Click flips the toggle identified by key. For an exclusive toggle every
// other exclusive member is deactivated first.
func (g *Group) Click(key string) error {
	t, ok := g.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownToggle, key)
	}

	next := !t.active
	if t.Exclusive {
		g.deactivateOthers(key)
	}
	t.set(next)
	t.fire(next)
	return nil
}

// deactivateOthers forces every exclusive member except the one under key to
// inactive, persisting each and firing its callback with false.
func (g *Group) deactivateOthers(except string) {
	for _, m := range g.members {
		if !m.Exclusive || m.Key == except {
			continue
		}
		m.set(false)
		m.fire(false)
	}
}

// Toggles returns the members in registration order.
func (g *Group) Toggles() []*Toggle {
	out := make([]*Toggle, len(g.members))
	copy(out, g.members)
	return out
}
