package pipeline

import (
	"fmt"

	"go.uber.org/zap"
)

// State is a run phase. Runs only move forward through the phases.
type State string

// Run phases, in order.
const (
	StateIdle        State = "IDLE"
	StateDiscovering State = "DISCOVERING"
	StateEnriching   State = "ENRICHING"
	StateClassifying State = "CLASSIFYING"
	StateDone        State = "DONE"
)

var stateOrder = map[State]int{
	StateIdle:        0,
	StateDiscovering: 1,
	StateEnriching:   2,
	StateClassifying: 3,
	StateDone:        4,
}

// runState tracks the phase of one run.
type runState struct {
	state  State
	logger *zap.Logger
}

// advance moves to next, which must be the phase immediately after the
// current one.
func (s *runState) advance(next State) error {
	cur := s.state
	if cur == "" {
		cur = StateIdle
	}
	if stateOrder[next] != stateOrder[cur]+1 {
		return fmt.Errorf("illegal run transition %s -> %s", cur, next)
	}
	s.state = next
	if s.logger != nil {
		s.logger.Info("run phase", zap.String("state", string(next)))
	}
	return nil
}
