package player

// State is the supervisor's playback state.
type State string

const (
	Idle      State = "idle"
	Loading   State = "loading"
	Ready     State = "ready"
	Playing   State = "playing"
	Paused    State = "paused"
	Buffering State = "buffering"
	Error     State = "error"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{Idle, Loading, Ready, Playing, Paused, Buffering, Error}
}

// Active reports whether an engine may be driven in this state.
// Quality selection is rejected outside active states.
func (s State) Active() bool {
	return s != Idle && s != Error
}

func (s State) String() string {
	return string(s)
}

type trigger string

const (
	triggerLoad   trigger = "load"
	triggerReady  trigger = "ready"
	triggerSettle trigger = "settle"
	triggerFail   trigger = "fail"
	triggerStall  trigger = "stall"
	triggerResume trigger = "resume"
	triggerPlay   trigger = "play"
	triggerPause  trigger = "pause"
	triggerUnload trigger = "unload"
)

// byIntent is resolved to Playing or Paused from the play intent.
const byIntent State = "<intent>"

type edge struct {
	from State
	on   trigger
}

var transitions = map[edge]State{
	{Loading, triggerReady}:    Ready,
	{Ready, triggerSettle}:     byIntent,
	{Playing, triggerStall}:    Buffering,
	{Paused, triggerStall}:     Buffering,
	{Buffering, triggerResume}: byIntent,
	{Playing, triggerPause}:    Paused,
	{Paused, triggerPlay}:      Playing,
	{Loading, triggerFail}:     Error,
	{Ready, triggerFail}:       Error,
	{Playing, triggerFail}:     Error,
	{Paused, triggerFail}:      Error,
	{Buffering, triggerFail}:   Error,
}

func init() {
	for _, s := range States() {
		transitions[edge{s, triggerLoad}] = Loading
		if s != Idle {
			transitions[edge{s, triggerUnload}] = Idle
		}
	}
}

// next returns the target of a trigger, false when the trigger does not apply in from.
func next(from State, on trigger, playing bool) (State, bool) {
	to, ok := transitions[edge{from, on}]
	if !ok {
		return from, false
	}
	if to == byIntent {
		if playing {
			return Playing, true
		}
		return Paused, true
	}
	return to, true
}
