package domain

// OverrideState is the sitter's whole persistent state between ticks.
type OverrideState struct {
	// IsEvCharging is the EV charging state observed on the previous tick.
	IsEvCharging bool
	// OwnsOverride is true only when this process enabled the manual charge
	// override. A battery already charging for any other reason never sets it,
	// so shutdown and charge-stop never revert somebody else's override.
	OwnsOverride bool
}

// BatterySnapshot is what one poll learned about the home battery. Nil fields
// mean the cloud did not report a usable value.
type BatterySnapshot struct {
	Soc   *float64
	Power *float64
}

// AlreadyCharging reports whether the battery is charging right now. An
// unknown power reading counts as not charging, so a flaky cloud response
// cannot suppress an override.
func (s BatterySnapshot) AlreadyCharging() bool {
	return s.Power != nil && *s.Power > 0
}

type TickAction int

const (
	ActionNone TickAction = iota
	ActionEnableOverride
	ActionReenableOverride
	ActionDisableOverride
)

func (a TickAction) String() string {
	switch a {
	case ActionEnableOverride:
		return "enable_override"
	case ActionReenableOverride:
		return "reenable_override"
	case ActionDisableOverride:
		return "disable_override"
	default:
		return "none"
	}
}

// TickDecision is the outcome of one reconciliation pass: the control action
// to take and the state to adopt once that action succeeds.
type TickDecision struct {
	Action   TickAction
	NewState OverrideState
}
