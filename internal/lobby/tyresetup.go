package lobby

import (
	"stklobby/internal/config"
	"stklobby/internal/item"
	"stklobby/internal/tyre"
)

// neutralCurve is a degradation-response curve with no multiplicative
// effect, used until per-kart tyre characteristics are modeled.
func neutralCurve(float64) float64 { return 1 }

// zeroCurve is a degradation-response curve with no additive effect.
func zeroCurve(float64) float64 { return 0 }

// defaultTyreCharacteristics returns kart-agnostic tyre tuning: every
// compound behaves identically, so the degradation and pit-stop
// machinery runs without a per-kart tyre data file to draw from.
func defaultTyreCharacteristics() tyre.Characteristics {
	return tyre.Characteristics{
		HardnessMultiplier: 1,
		HeatCycleHardness:  neutralCurve,
		HardnessPenalty:    zeroCurve,

		MaxLifeTraction: 100,
		MaxLifeTurning:  100,

		LimitingTransferTraction: 0.5,
		RegularTransferTraction:  0.25,
		LimitingTransferTurning:  0.5,
		RegularTransferTurning:   0.25,

		ResponseCurveTraction: neutralCurve,
		ResponseCurveTurning:  neutralCurve,
		ResponseCurveTopspeed: neutralCurve,

		InitialBonusMultTraction: 1,
		InitialBonusMultTurning:  1,
		InitialBonusMultTopspeed: 1,

		TractionConstant: 1,
		TurningConstant:  1,
		TopspeedConstant: 1,

		OffroadFactor:  1.5,
		SkidFactor:     1.5,
		BrakeThreshold: 0.5,
		CrashPenalty:   10,

		IdealTemp:    70,
		Mass:         1,
		NumCompounds: 3,
	}
}

// defaultCompounds builds the 3-compound set the allowed-compound-N
// config fields index into.
func defaultCompounds() tyre.CompoundSet {
	c := defaultTyreCharacteristics()
	return tyre.CompoundSet{c, c, c}
}

// defaultFuelConfig mirrors the server's fuel-settings fields into a
// tyre.FuelConfig.
func defaultFuelConfig(cfg config.ServerConfig) tyre.FuelConfig {
	return tyre.FuelConfig{
		StartingFuel: cfg.Fuel.Fuel,
		RegenRate:    cfg.Fuel.FuelRegen,
		StopRatio:    cfg.Fuel.FuelStop,
		WeightFactor: cfg.Fuel.FuelWeight / 100,
		ConsumeRate:  cfg.Fuel.FuelRate,
	}
}

// defaultTyreQueue mirrors the three allowed-compound-N fields: -1
// means unlimited stock of that compound.
func defaultTyreQueue(cfg config.ServerConfig) []int {
	return []int{cfg.Fuel.AllowedCompound1, cfg.Fuel.AllowedCompound2, cfg.Fuel.AllowedCompound3}
}

// newItemPolicy parses the server's configured item policy string,
// falling back to the normal-racing policy if it is malformed.
func newItemPolicy(styleString string) *item.Policy {
	policy, err := item.FromString(styleString)
	if err != nil {
		return item.NewPolicy()
	}
	return policy
}

// newMatchKarts builds the per-kart tyre/item state for every peer in
// playing, sharing one compound set and fuel configuration drawn from
// cfg across the field.
func newMatchKarts(cfg config.ServerConfig, playing map[uint32]struct{}) map[uint32]*kartState {
	compounds := defaultCompounds()
	fuel := defaultFuelConfig(cfg)
	queue := defaultTyreQueue(cfg)

	karts := make(map[uint32]*kartState, len(playing))
	for hostID := range playing {
		karts[hostID] = &kartState{
			Tyres: tyre.NewState(compounds, fuel, 1, append([]int(nil), queue...)),
		}
	}
	return karts
}
