// Trigger accept/match bit queries for one selected candidate pair.

package ana

import "fmt"

// TriggerResults wraps the event's trigger accept bits and the leg matching
// bits of the candidate pair chosen at construction, together with the
// trigger patterns registered for the event's channel (when a run summary
// was provided).
type TriggerResults struct {
	acceptBits uint64
	matchBits  uint64
	patterns   []string
}

const maxTriggerBits = 64

// Accept reports whether trigger slot i fired for the event.
func (t TriggerResults) Accept(i int) (bool, error) {
	if i < 0 || i >= maxTriggerBits {
		return false, fmt.Errorf("%w: trigger slot %d", ErrInvalidIndex, i)
	}
	return t.acceptBits&(1<<uint(i)) != 0, nil
}

// Match reports whether both legs of the selected pair matched trigger slot i.
func (t TriggerResults) Match(i int) (bool, error) {
	if i < 0 || i >= maxTriggerBits {
		return false, fmt.Errorf("%w: trigger slot %d", ErrInvalidIndex, i)
	}
	return t.matchBits&(1<<uint(i)) != 0, nil
}

// AnyAccept reports whether any registered trigger fired.
func (t TriggerResults) AnyAccept() bool { return t.acceptBits != 0 }

// Patterns returns the trigger patterns registered for the event's channel.
// Empty when no run summary was provided at construction.
func (t TriggerResults) Patterns() []string { return t.patterns }
