package session

import "github.com/04pril/minesight/internal/analysis"

// State is the analysis lifecycle state.
type State int

const (
	Idle State = iota
	Validating
	Submitting
	Success
	Failure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Machine is the controller's lifecycle position. Token identifies the most
// recently issued request; outcomes carrying any other token are stale.
type Machine struct {
	State State
	Token uint64
}

// Event drives a Transition.
type Event interface{ event() }

type (
	// SubmitRequested is the user's intent to analyze the selected image.
	SubmitRequested struct{}
	// SelectionChecked reports validation; an empty Problem means the
	// selection is usable.
	SelectionChecked struct{ Problem string }
	// ResponseReceived carries a decoded analyzer result.
	ResponseReceived struct {
		Token  uint64
		Result *analysis.Result
	}
	// RequestFailed carries a transport, server or malformed-body error.
	RequestFailed struct {
		Token uint64
		Err   error
	}
	// Acknowledged returns a terminal state to Idle.
	Acknowledged struct{}
)

func (SubmitRequested) event()  {}
func (SelectionChecked) event() {}
func (ResponseReceived) event() {}
func (RequestFailed) event()    {}
func (Acknowledged) event()     {}

// Effect is a side effect the controller performs after a Transition.
type Effect interface{ effect() }

type (
	CheckSelection struct{}
	ShowIndicator  struct{}
	HideIndicator  struct{}
	SendRequest    struct{ Token uint64 }
	ShowResults    struct{ Result *analysis.Result }
	HideResults    struct{}
	ShowError      struct{ Message string }
	ClearError     struct{}
)

func (CheckSelection) effect() {}
func (ShowIndicator) effect()  {}
func (HideIndicator) effect()  {}
func (SendRequest) effect()    {}
func (ShowResults) effect()    {}
func (HideResults) effect()    {}
func (ShowError) effect()      {}
func (ClearError) effect()     {}

// Transition is the pure lifecycle function. Events that do not apply to the
// current state leave it unchanged and produce no effects.
func Transition(m Machine, ev Event) (Machine, []Effect) {
	switch ev := ev.(type) {
	case SubmitRequested:
		if m.State == Validating {
			return m, nil
		}
		m.State = Validating
		return m, []Effect{CheckSelection{}}

	case SelectionChecked:
		if m.State != Validating {
			return m, nil
		}
		if ev.Problem != "" {
			m.State = Failure
			return m, []Effect{HideIndicator{}, ShowError{Message: ev.Problem}, HideResults{}}
		}
		m.State = Submitting
		m.Token++
		return m, []Effect{ShowIndicator{}, SendRequest{Token: m.Token}}

	case ResponseReceived:
		if m.State != Submitting || ev.Token != m.Token {
			return m, nil
		}
		m.State = Success
		return m, []Effect{HideIndicator{}, ClearError{}, ShowResults{Result: ev.Result}}

	case RequestFailed:
		if m.State != Submitting || ev.Token != m.Token {
			return m, nil
		}
		m.State = Failure
		return m, []Effect{HideIndicator{}, ShowError{Message: analysis.UserMessage(ev.Err)}, HideResults{}}

	case Acknowledged:
		if m.State == Success || m.State == Failure {
			m.State = Idle
		}
		return m, nil
	}
	return m, nil
}
