package checkout

// Stage is the position of a checkout in its flow.
type Stage string

const (
	StageShipping  Stage = "shipping"
	StagePayment   Stage = "payment"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// IsTerminal reports whether a submit attempt has finished. A failed checkout
// can still be re-entered through Back.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

func (s Stage) String() string {
	return string(s)
}

var transitions = map[Stage][]Stage{
	StageShipping: {StagePayment},
	StagePayment:  {StageShipping, StageCompleted, StageFailed},
	StageFailed:   {StagePayment},
}

func CanTransitionTo(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
