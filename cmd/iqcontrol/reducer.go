package main

// ============================================================================
// Reducer
// ============================================================================
// Reduce is the daemon's pure core: it folds one Event into DaemonState and
// returns the Commands to execute. It performs no I/O, reads no clocks and
// never mutates its input.
// ============================================================================

// DaemonState is owned by the daemon goroutine.
type DaemonState struct {
	Outputs SemanticOutputs

	// LastObservedCount is the encoder count already turned into volume steps.
	LastObservedCount int64
}

// NewDaemonState returns the startup state: amp unmuted, every LED off.
func NewDaemonState(ledCount int, count int64) DaemonState {
	return DaemonState{
		Outputs:           SemanticOutputs{LEDs: make([]bool, ledCount)},
		LastObservedCount: count,
	}
}

// ReduceResult is the output of a single reduction step.
type ReduceResult struct {
	State    DaemonState
	Commands []Command
}

// Reduce applies ev to s.
func Reduce(s DaemonState, ev Event, pins OutputPins) ReduceResult {
	switch e := ev.(type) {
	case Tick:
		return reconcile(s, e.Count)
	case Action:
		out, cmds := Dispatch(s.Outputs, e, pins)
		s.Outputs = out
		return ReduceResult{State: s, Commands: cmds}
	default:
		return ReduceResult{State: s}
	}
}

// reconcile emits at most one volume step per tick, in the direction of the
// net encoder movement since the previous tick. Any larger delta is absorbed.
func reconcile(s DaemonState, count int64) ReduceResult {
	dir := sign(count - s.LastObservedCount)
	s.LastObservedCount = count
	if dir == 0 {
		return ReduceResult{State: s}
	}
	return ReduceResult{State: s, Commands: []Command{CmdMixerStep{Direction: dir}}}
}
