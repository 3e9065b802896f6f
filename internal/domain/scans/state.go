package scans

// State is the progress of the current scan attempt. The set of states is
// closed: Idle, Loading, Success and Error are the only implementations.
type State interface {
	isState()
	// Terminal reports whether no further automatic transition follows.
	Terminal() bool
}

// Idle means no attempt is in progress and nothing is held.
type Idle struct{}

// Loading means an attempt is in flight.
type Loading struct{}

// Success holds the persisted result of the attempt.
type Success struct {
	Result ScanResult
}

// Error holds a human readable description of the failure.
type Error struct {
	Message string
}

func (Idle) isState()    {}
func (Loading) isState() {}
func (Success) isState() {}
func (Error) isState()   {}

func (Idle) Terminal() bool    { return false }
func (Loading) Terminal() bool { return false }
func (Success) Terminal() bool { return true }
func (Error) Terminal() bool   { return true }

// StateName returns the lowercase tag of s, used on the wire.
func StateName(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		panic("scans: unknown state type")
	}
}
