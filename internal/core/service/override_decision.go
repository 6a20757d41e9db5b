package service

import (
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/internal/core/port"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"

	"go.uber.org/zap"
)

// DefaultOverrideDecisionLogic reconciles the observed EV charging state
// against the override the sitter may hold on the home battery.
type DefaultOverrideDecisionLogic struct {
	Logger *zap.Logger
}

func (cfg *DefaultOverrideDecisionLogic) Decide(prev domain.OverrideState,
	charger *myenergi.ChargerStatus, battery domain.BatterySnapshot) domain.TickDecision {

	evNow := charger.IsActivelyCharging()

	if evNow && !prev.IsEvCharging {
		// EV started charging. If the battery is already charging on its own
		// (manual schedule, cheap tariff window), leave it alone and take no
		// ownership: we must never cancel an override we did not create.
		if battery.AlreadyCharging() {
			cfg.Logger.Info("sitter: EV charge started but battery already charging, leaving it alone")
			return domain.TickDecision{
				Action:   domain.ActionNone,
				NewState: domain.OverrideState{IsEvCharging: true, OwnsOverride: false},
			}
		}
		cfg.Logger.Info("sitter: EV charge started, forcing battery to charge")
		return domain.TickDecision{
			Action:   domain.ActionEnableOverride,
			NewState: domain.OverrideState{IsEvCharging: true, OwnsOverride: true},
		}
	}

	if evNow && prev.IsEvCharging {
		if battery.AlreadyCharging() {
			// battery is being supplied, by our override or anything else
			return domain.TickDecision{
				Action:   domain.ActionNone,
				NewState: domain.OverrideState{IsEvCharging: true, OwnsOverride: prev.OwnsOverride},
			}
		}
		// the charge stopped while the EV still draws: the timed window
		// expired, the SOC ceiling cut it off or something external turned it
		// off. Re-issue the override and take ownership either way.
		cfg.Logger.Info("sitter: battery stopped charging mid EV charge, re-enabling override")
		return domain.TickDecision{
			Action:   domain.ActionReenableOverride,
			NewState: domain.OverrideState{IsEvCharging: true, OwnsOverride: true},
		}
	}

	if !evNow && prev.IsEvCharging {
		if prev.OwnsOverride {
			cfg.Logger.Info("sitter: EV charge stopped, releasing battery override")
			return domain.TickDecision{
				Action:   domain.ActionDisableOverride,
				NewState: domain.OverrideState{IsEvCharging: false, OwnsOverride: false},
			}
		}
		return domain.TickDecision{
			Action:   domain.ActionNone,
			NewState: domain.OverrideState{IsEvCharging: false, OwnsOverride: false},
		}
	}

	// steady state: nothing changed
	return domain.TickDecision{
		Action:   domain.ActionNone,
		NewState: prev,
	}
}

// ensure interface compliance
var _ port.OverrideDecisionLogic = (*DefaultOverrideDecisionLogic)(nil)
