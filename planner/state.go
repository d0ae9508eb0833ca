package planner

import "github.com/ruteri/templatizer-backend/interfaces"

// State is a step in the handling of one webhook delivery.
type State string

const (
	StateReceived           State = "received"
	StateSignatureChecked   State = "signature_checked"
	StateEventClassified    State = "event_classified"
	StateConfigResolved     State = "config_resolved"
	StateConfigPersisted    State = "config_persisted"
	StateChangesClassified  State = "changes_classified"
	StateSubscribersQueried State = "subscribers_queried"
	StatePlanEmitted        State = "plan_emitted"

	StateRejected State = "rejected"
	StateIgnored  State = "ignored"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StatePlanEmitted, StateRejected, StateIgnored:
		return true
	}
	return false
}

// Reasons attached to terminal results.
const (
	ReasonInvalidSignature    = "invalid signature"
	ReasonUnsupportedEvent    = "unsupported event"
	ReasonNotDefaultBranch    = "push is not to the default branch"
	ReasonMalformedRepository = "push does not name a repository"
	ReasonMissingRepositoryID = "push does not carry a repository id"
	ReasonNoConfig            = "no configuration found"
	ReasonNotProducer         = "repository declares no source sets"
	ReasonNoChanges           = "no source set affected"
)

// Result is the outcome of one delivery. Plan is set only in StatePlanEmitted.
type Result struct {
	State  State
	Reason string
	Plan   *interfaces.Plan

	// Path lists the states visited, ending with State.
	Path []State
}

func (r *Result) advance(s State) {
	r.State = s
	r.Path = append(r.Path, s)
}

// NewResult starts a result in StateReceived.
func NewResult() *Result {
	return &Result{State: StateReceived, Path: []State{StateReceived}}
}

// Reject finishes r in StateRejected.
func (r *Result) Reject(reason string) *Result {
	r.advance(StateRejected)
	r.Reason = reason
	return r
}

// Ignore finishes r in StateIgnored.
func (r *Result) Ignore(reason string) *Result {
	r.advance(StateIgnored)
	r.Reason = reason
	return r
}

// SignatureChecked records a verified delivery.
func (r *Result) SignatureChecked() *Result {
	r.advance(StateSignatureChecked)
	return r
}
