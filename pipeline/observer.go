package pipeline

// Phase is a state of the run state machine:
// Idle -> Simulate -> BurnIn -> Sampling -> LadderStep* -> Transform -> LoRaD -> Done | Failed
type Phase int

// Run phases
const (
	Idle Phase = iota
	Simulate
	BurnIn
	Sampling
	LadderStep
	Transform
	LoRaD
	Done
	Failed
)

var phaseNames = []string{"idle", "simulate", "burn-in", "sampling", "ladder-step", "transform", "lorad", "done", "failed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal is true for Done and Failed
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

// Event describes a state transition or a progress tick within a phase
type Event struct {
	Phase      Phase
	Tick       bool      // Progress within Phase rather than a transition into it
	Iterations int64     // Chain iterations completed in the current chain
	Acceptance []float64 // Recent acceptance rate per updater
	Stone      int       // 1-based stone number during LadderStep
	Stones     int
	Beta       float64
	Estimate   float64 // Running or final log marginal likelihood when known
	Err        error   // Set on Failed
	Result     *Result // Set on Done
}

// Observer is notified of every transition and progress tick. Calls are
// made synchronously from the run's goroutine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev Event)

// Observe implements Observer
func (f ObserverFunc) Observe(ev Event) { f(ev) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
