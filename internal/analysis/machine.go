package analysis

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State and event ids stay untyped so they convert to statekit.StateID and
// statekit.EventType without ceremony.
const (
	stateIdle            = "idle"
	statePreparing       = "preparing"
	stateAwaitingAnalyze = "awaiting_analyze"
	stateAwaitingSuggest = "awaiting_suggest"
	stateDone            = "done"
	stateFailed          = "failed"

	eventAnalyze   = "analyze"
	eventSubmit    = "submit"
	eventAnalyzed  = "analyzed"
	eventSuggested = "suggested"
	eventFail      = "fail"
)

// Phase is where an analysis invocation stands.
type Phase string

const (
	PhaseIdle            Phase = stateIdle
	PhasePreparing       Phase = statePreparing
	PhaseAwaitingAnalyze Phase = stateAwaitingAnalyze
	PhaseAwaitingSuggest Phase = stateAwaitingSuggest
	PhaseDone            Phase = stateDone
	PhaseFailed          Phase = stateFailed
)

func (p Phase) String() string { return string(p) }

// Terminal reports whether no further transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

type runContext struct {
	RunID string
}

// phaseMachine drives one invocation:
//
//	idle -analyze-> preparing -submit-> awaiting_analyze -analyzed-> awaiting_suggest -suggested-> done
//
// and either awaiting phase -fail-> failed.
type phaseMachine struct {
	interpreter *statekit.Interpreter[runContext]
}

func newPhaseMachine(runID string) (*phaseMachine, error) {
	builder := statekit.NewMachine[runContext]("analysis").
		WithInitial(statekit.StateID(stateIdle)).
		WithContext(runContext{RunID: runID})

	builder.State(stateIdle).
		On(eventAnalyze).Target(statePreparing).
		Done()

	builder.State(statePreparing).
		On(eventSubmit).Target(stateAwaitingAnalyze).
		Done()

	builder.State(stateAwaitingAnalyze).
		On(eventAnalyzed).Target(stateAwaitingSuggest).
		On(eventFail).Target(stateFailed).
		Done()

	builder.State(stateAwaitingSuggest).
		On(eventSuggested).Target(stateDone).
		On(eventFail).Target(stateFailed).
		Done()

	builder.State(stateDone).Done()
	builder.State(stateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building analysis machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &phaseMachine{interpreter: interpreter}, nil
}

// send applies event and fails if it is not valid in the current phase.
func (m *phaseMachine) send(event string) error {
	before := m.current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.current() == before {
		return fmt.Errorf("event %q not allowed in phase %s", event, before)
	}
	return nil
}

func (m *phaseMachine) current() Phase {
	return Phase(m.interpreter.State().Value)
}
