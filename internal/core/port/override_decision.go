package port

import (
	"github.com/greggjaskiewicz/BatterySitter/internal/core/domain"
	"github.com/greggjaskiewicz/BatterySitter/pkg/myenergi"
)

type OverrideDecisionLogic interface {
	Decide(prev domain.OverrideState, charger *myenergi.ChargerStatus,
		battery domain.BatterySnapshot) domain.TickDecision
}
