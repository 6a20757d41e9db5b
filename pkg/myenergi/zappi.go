package myenergi

// ChargerState is the Zappi's charge activity, decoded from the "sta" code.
type ChargerState string

const (
	ChargerStatePaused    ChargerState = "paused"
	ChargerStateCharging  ChargerState = "charging"
	ChargerStateBoosting  ChargerState = "boosting"
	ChargerStateCompleted ChargerState = "completed"
	ChargerStateOther     ChargerState = "other"
)

// PlugState tells whether the cable reports an active charge ("pst" code).
type PlugState string

const (
	PlugStateCharging PlugState = "charging"
	PlugStateOther    PlugState = "other"
)

// ChargeMode is the Zappi's configured operating mode ("zmo" code). It is
// informational only; charge detection never depends on it.
type ChargeMode string

const (
	ChargeModeFast    ChargeMode = "fast"
	ChargeModeEco     ChargeMode = "eco"
	ChargeModeEcoPlus ChargeMode = "eco+"
	ChargeModeStopped ChargeMode = "stopped"
	ChargeModeUnknown ChargeMode = "unknown"
)

// ChargerStatus is one decoded snapshot of the charger.
type ChargerStatus struct {
	State       ChargerState
	PlugState   PlugState
	ChargeMode  ChargeMode
	ChargeWatts int
}

// IsActivelyCharging reports whether the EV is drawing charge right now.
// Both the charger state and the plug state must agree; either alone has been
// observed to flap during negotiation.
func (s *ChargerStatus) IsActivelyCharging() bool {
	activeState := s.State == ChargerStateCharging || s.State == ChargerStateBoosting
	return activeState && s.PlugState == PlugStateCharging
}

func chargerStateFromCode(code int) ChargerState {
	switch code {
	case 1:
		return ChargerStatePaused
	case 3:
		return ChargerStateCharging
	case 4:
		return ChargerStateBoosting
	case 5:
		return ChargerStateCompleted
	default:
		return ChargerStateOther
	}
}

func plugStateFromCode(code string) PlugState {
	// "C2" = EV connected and charging; A/B1/B2/C1/F cover the rest
	if code == "C2" {
		return PlugStateCharging
	}
	return PlugStateOther
}

func chargeModeFromCode(code int) ChargeMode {
	switch code {
	case 1:
		return ChargeModeFast
	case 2:
		return ChargeModeEco
	case 3:
		return ChargeModeEcoPlus
	case 4:
		return ChargeModeStopped
	default:
		return ChargeModeUnknown
	}
}
