package trace

import "context"

// Scope is an immutable tracing position: which ledger to record into, the
// run it belongs to, the delegation depth and the delegating parent. It is
// passed down the call chain via context.Context instead of mutating any
// shared tracing handle, so concurrent sibling delegations cannot leak or
// clobber each other's state and there is no restore path to get wrong.
type Scope struct {
	ledger *Ledger
	runID  string
	depth  int
	parent string
}

// NewScope creates the top-level scope for a run on the given ledger.
func NewScope(l *Ledger, runID string) Scope {
	return Scope{ledger: l, runID: runID}
}

// Child derives the scope a delegate runs under: one level deeper, with the
// delegating agent as parent. The ledger and run id carry over unchanged.
func (s Scope) Child(parent string) Scope {
	return Scope{ledger: s.ledger, runID: s.runID, depth: s.depth + 1, parent: parent}
}

// Active reports whether this scope records anywhere.
func (s Scope) Active() bool { return s.ledger != nil }

// Depth returns the delegation depth (0 = top-level).
func (s Scope) Depth() int { return s.depth }

// Parent returns the delegating agent's name, or "" at the top level.
func (s Scope) Parent() string { return s.parent }

// RunID returns the run this scope belongs to.
func (s Scope) RunID() string { return s.runID }

// Ledger returns the ledger this scope records into.
func (s Scope) Ledger() *Ledger { return s.ledger }

// Record stamps the event with this scope's run id, depth and parent, then
// appends it to the ledger. No-op for an inactive scope.
func (s Scope) Record(ev Event) {
	if s.ledger == nil {
		return
	}
	ev.RunID = s.runID
	ev.DelegationDepth = s.depth
	ev.ParentAgent = s.parent
	s.ledger.Record(ev)
}

type scopeKey struct{}

// NewContext returns a context carrying the scope.
func NewContext(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext extracts the scope from a context, if one was attached.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok && s.Active()
}
