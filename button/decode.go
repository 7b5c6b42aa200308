// Package button turns presses of the control button into actions.
//
// A press is measured in hold increments: the indicator flashes once per
// increment while the button is held and the count on release selects the
// action.
package button

import (
	"fmt"
	"time"

	"github.com/gr-butler/envmon/env"
)

type Action int

const (
	None Action = iota
	QuickCheck
	ForceLog
	ForceControllers
	ResetClock
	Cancel
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case QuickCheck:
		return "quick-check"
	case ForceLog:
		return "force-log"
	case ForceControllers:
		return "force-controllers"
	case ResetClock:
		return "reset-clock"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decode maps a hold-increment count to an action. Every count maps to
// exactly one action.
func Decode(n int) Action {
	switch {
	case n <= 0:
		return None
	case n >= int(Cancel):
		return Cancel
	default:
		return Action(n)
	}
}

// Ack is the indicator pattern confirming an action.
type Ack struct {
	Count int
	Delay time.Duration
}

// Ack returns the acknowledgement for a. None has no acknowledgement at all
// so an operator can tell a missed press from a cancelled one.
func (a Action) Ack() Ack {
	switch a {
	case QuickCheck:
		return Ack{Count: 1, Delay: env.DelayAck}
	case ForceLog:
		return Ack{Count: 2, Delay: env.DelayLong}
	case ForceControllers:
		return Ack{Count: 3, Delay: env.DelayLong}
	case ResetClock:
		return Ack{Count: 4, Delay: env.DelayLong}
	case Cancel:
		return Ack{Count: 2, Delay: env.DelayAck}
	default:
		return Ack{}
	}
}
