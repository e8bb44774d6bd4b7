// Package tyre implements the per-kart tyre/fuel degradation model:
// traction/turning wear driven by cornering and braking load, fuel
// consumption and regeneration, a compound pit-stop queue, and
// rewind-safe state snapshotting, grounded on original_source
// karts/tyres.cpp/hpp and utils/tyre_utils.cpp/hpp.
package tyre

import "math"

// RefuelOnlyCompound is the sentinel compound id meaning "this stop
// only refuels, no tyre change".
const RefuelOnlyCompound = 123

// AccelCrashFilter is the empirical cutoff (units/s^2) above which a
// computed acceleration sample is treated as crash noise and
// discarded rather than folded into the degradation model.
const AccelCrashFilter = 2300.0

// Curve looks up a response value for a percentage input, replacing
// the original's InterpolationArray with a plain function so callers
// can supply whatever curve shape their kart characteristics define.
type Curve func(x float64) float64

// Characteristics are the per-compound constants read once per
// compound change, grounded on Tyres' m_c_* fields.
type Characteristics struct {
	HardnessMultiplier float64
	HeatCycleHardness  Curve
	HardnessPenalty    Curve

	MaxLifeTraction float64
	MaxLifeTurning  float64
	MinLifeTraction float64
	MinLifeTurning  float64

	LimitingTransferTraction float64
	RegularTransferTraction  float64
	LimitingTransferTurning  float64
	RegularTransferTurning   float64

	DoSubtractiveTraction bool
	DoGripBasedTurning    bool
	DoSubtractiveTurning  bool
	DoSubtractiveTopspeed bool

	ResponseCurveTraction Curve
	ResponseCurveTurning  Curve
	ResponseCurveTopspeed Curve

	InitialBonusMultTraction float64
	InitialBonusAddTraction  float64
	InitialBonusMultTurning  float64
	InitialBonusAddTurning   float64
	InitialBonusMultTopspeed float64
	InitialBonusAddTopspeed  float64

	TractionConstant float64
	TurningConstant  float64
	TopspeedConstant float64

	OffroadFactor  float64
	SkidFactor     float64
	BrakeThreshold float64
	CrashPenalty   float64

	IdealTemp float64
	Mass      float64
	NumCompounds int
}

// CompoundSet supplies per-compound characteristics (index 0 = compound 1).
type CompoundSet []Characteristics

func (c CompoundSet) forCompound(compound int) Characteristics {
	return c[compound-1]
}

// FuelConfig is the race-wide fuel tuning.
type FuelConfig struct {
	StartingFuel float64
	RegenRate    float64
	StopRatio    float64
	WeightFactor float64 // 0..1, already divided by 100
	ConsumeRate  float64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (f FuelConfig) clamped() FuelConfig {
	f.StartingFuel = clamp(f.StartingFuel, 1, 1000)
	f.StopRatio = clamp(f.StopRatio, 0, 1000)
	f.ConsumeRate = clamp(f.ConsumeRate, 0, 1000)
	f.RegenRate = clamp(f.RegenRate, 0, 100)
	f.WeightFactor = clamp(f.WeightFactor, 0, 1)
	return f
}

// Stint is one (compound, lap-count) pit-stop record.
type Stint struct {
	Compound int
	Laps     int
}

// State is one kart's tyre/fuel state. It never holds a pointer to
// the kart it belongs to; the caller supplies kart speed/mass/etc at
// each call.
type State struct {
	Compounds CompoundSet
	Fuel      FuelConfig

	CurrentCompound int
	ResetCompound   bool
	ResetFuel       bool

	CurrentLifeTraction float64
	CurrentLifeTurning  float64
	CurrentFuel         float64
	HighFuelDemand      bool

	CurrentTemp    float64
	HeatCycleCount float64
	LapCount       int

	TyresQueue []int // per-compound stock, -1 = infinite
	Stints     []Stint

	Disqualified bool

	timeElapsed     float64
	previousSpeeds  []float64
	acceleration    float64
}

const speedFetchingPeriod = 0.3
const speedAccumulationLimit = 6

// NewState initializes tyre state for startingCompound (1-based).
func NewState(compounds CompoundSet, fuel FuelConfig, startingCompound int, queue []int) *State {
	fuel = fuel.clamped()
	c := compounds.forCompound(startingCompound)
	return &State{
		Compounds:           compounds,
		Fuel:                fuel,
		CurrentCompound:     startingCompound,
		CurrentFuel:         fuel.StartingFuel,
		CurrentLifeTraction: c.MaxLifeTraction,
		CurrentLifeTurning:  c.MaxLifeTurning,
		CurrentTemp:         c.IdealTemp,
		TyresQueue:          queue,
	}
}

func (s *State) characteristics() Characteristics {
	return s.Compounds.forCompound(s.CurrentCompound)
}

// correct replicates Tyres::correct, an index offset baked into the
// response curves so each compound occupies its own slice of the
// curve's domain.
func (s *State) correct(percent float64) float64 {
	n := float64(s.CurrentCompound - 1)
	return 100*n + n + percent
}

// KartMotion is the per-tick physical input the degradation model
// needs from the kart/physics layer.
type KartMotion struct {
	DT             float64
	Speed          float64
	Mass           float64
	IsOnGround     bool
	IsSkidding     bool
	IsUsingZipper  bool
	Slowdown       float64
	BrakeAmount    float64
	SteerAmount    float64
	ThrottleAmount float64
}

// ComputeDegradation advances tyre wear and fuel consumption by one
// tick, mirroring Tyres::computeDegradation.
func (s *State) ComputeDegradation(m KartMotion) {
	s.timeElapsed += m.DT
	if math.Mod(s.timeElapsed, speedFetchingPeriod) < m.DT {
		s.previousSpeeds = append(s.previousSpeeds, m.Speed)
		if len(s.previousSpeeds) > speedAccumulationLimit {
			s.previousSpeeds = s.previousSpeeds[1:]
		}
		if len(s.previousSpeeds) >= 2 {
			n := len(s.previousSpeeds)
			s.acceleration = (m.Speed - s.previousSpeeds[n-2]) / m.DT
			for i := 0; i < n-2; i++ {
				candidate := math.Abs(m.Speed-s.previousSpeeds[i]) / m.DT
				if candidate < math.Abs(s.acceleration) && candidate < AccelCrashFilter {
					s.acceleration = (m.Speed - s.previousSpeeds[i]) / m.DT
				}
			}
		}
		if m.Slowdown < 0.5 && !m.IsUsingZipper {
			s.acceleration = 0
		}
	}

	if m.SteerAmount == 0 {
		m.SteerAmount = 1e-6
	}
	turnRadius := 1.0 / m.SteerAmount
	c := s.characteristics()
	currentHardness := c.HardnessMultiplier * c.HeatCycleHardness(s.HeatCycleCount)

	centerOfGravityX := s.acceleration * m.Mass
	centerOfGravityY := (m.Speed * m.Speed / turnRadius) * m.Mass

	if !m.IsOnGround || m.Speed < 1.0 {
		s.HighFuelDemand = false
		return
	}

	if m.ThrottleAmount > 0.45 {
		s.HighFuelDemand = true
		s.CurrentFuel -= math.Abs(m.Speed) * m.DT * s.Fuel.ConsumeRate * (1.0 / 1000.0)
	} else {
		s.HighFuelDemand = false
		s.CurrentFuel -= 0.5 * math.Abs(m.Speed) * m.DT * s.Fuel.ConsumeRate * (1.0 / 1000.0)
	}

	regenAmount := 0.0
	if centerOfGravityX < 0 && m.ThrottleAmount < 0.3 {
		regenAmount += math.Abs(centerOfGravityX) * 0.00000001 * m.DT * s.Fuel.RegenRate
	}

	degTra := m.DT * math.Abs(centerOfGravityX) * currentHardness / 100000.0
	degTra += m.DT * math.Abs(m.Speed) / 50.0

	if m.BrakeAmount > c.BrakeThreshold {
		degTra *= m.BrakeAmount * (1.0 / c.BrakeThreshold)
		regenAmount *= 2
	}
	if m.Slowdown < 0.98 && !m.IsUsingZipper {
		degTra *= c.OffroadFactor
	}

	degTur := m.DT * math.Abs(centerOfGravityY) * currentHardness / 10000.0
	if m.IsSkidding {
		degTur *= c.SkidFactor
		regenAmount *= 2
	}

	s.CurrentFuel += regenAmount
	s.CurrentFuel = clamp(s.CurrentFuel, 0, 1000)

	degTraPercent := degTra / c.MaxLifeTraction
	degTurPercent := degTur / c.MaxLifeTurning

	if s.CurrentLifeTraction < s.CurrentLifeTurning {
		s.CurrentLifeTurning -= degTraPercent * c.LimitingTransferTraction * c.MaxLifeTurning
		s.CurrentLifeTraction -= degTurPercent * c.RegularTransferTurning * c.MaxLifeTraction
	} else {
		s.CurrentLifeTurning -= degTraPercent * c.RegularTransferTraction * c.MaxLifeTurning
		s.CurrentLifeTraction -= degTurPercent * c.LimitingTransferTurning * c.MaxLifeTraction
	}

	s.CurrentLifeTraction -= degTra
	s.CurrentLifeTurning -= degTur
	if s.CurrentLifeTraction < 0 {
		s.CurrentLifeTraction = 0
	}
	if s.CurrentLifeTurning < 0 {
		s.CurrentLifeTurning = 0
	}
}

// ApplyCrashPenalty mirrors Tyres::applyCrashPenalty.
func (s *State) ApplyCrashPenalty() {
	c := s.characteristics()
	s.CurrentLifeTraction -= (c.CrashPenalty / 100.0) * c.MaxLifeTraction
	s.CurrentLifeTurning -= (c.CrashPenalty / 100.0) * c.MaxLifeTurning
}

func (s *State) hardnessPenalty(c Characteristics) float64 {
	currentHardness := c.HardnessMultiplier * c.HeatCycleHardness(s.HeatCycleCount)
	hardnessDeviation := (currentHardness - c.HardnessMultiplier) / c.HardnessMultiplier
	return currentHardness * c.HardnessPenalty(hardnessDeviation*100)
}

// DegEngineForce mirrors Tyres::degEngineForce.
func (s *State) DegEngineForce(initialForce float64) float64 {
	c := s.characteristics()
	penalty := s.hardnessPenalty(c)
	percent := s.CurrentLifeTraction / c.MaxLifeTraction
	factor := c.ResponseCurveTraction(s.correct(percent*100)) * c.TractionConstant
	bonus := (initialForce + c.InitialBonusAddTraction) * c.InitialBonusMultTraction
	if c.DoSubtractiveTraction {
		return bonus - penalty*factor
	}
	return bonus * penalty * factor
}

// DegTurnRadius mirrors Tyres::degTurnRadius.
func (s *State) DegTurnRadius(initialRadius float64) float64 {
	c := s.characteristics()
	penalty := s.hardnessPenalty(c)
	percent := s.CurrentLifeTurning / c.MaxLifeTurning
	factor := c.ResponseCurveTurning(s.correct(percent*100)) * c.TurningConstant
	bonus := (initialRadius + c.InitialBonusAddTurning) * c.InitialBonusMultTurning
	if c.DoSubtractiveTurning {
		return bonus - penalty*factor
	}
	return bonus * penalty * factor
}

// DegTopSpeed mirrors Tyres::degTopSpeed.
func (s *State) DegTopSpeed(initialTopspeed float64) float64 {
	c := s.characteristics()
	penalty := s.hardnessPenalty(c)
	percent := s.CurrentLifeTraction / c.MaxLifeTraction
	factor := c.ResponseCurveTopspeed(s.correct(percent*100)) * c.TopspeedConstant
	bonus := (initialTopspeed + c.InitialBonusAddTopspeed) * c.InitialBonusMultTopspeed
	if s.CurrentFuel <= 0.1 {
		return 5
	}
	if c.DoSubtractiveTopspeed {
		return bonus - penalty*factor
	}
	return bonus * penalty * factor
}

// CommandLap increments the lap counter of the current stint.
func (s *State) CommandLap() {
	s.LapCount++
}

// CommandEnd closes out the race's final stint, mirroring
// Tyres::commandEnd.
func (s *State) CommandEnd() {
	if len(s.Stints) > 0 && s.Stints[0].Compound == 0 && s.Stints[0].Laps == 0 {
		s.Stints = s.Stints[1:]
	}
	s.Stints = append(s.Stints, Stint{Compound: s.CurrentCompound, Laps: s.LapCount + 1})
	s.LapCount = 0
}

// ChangeResult reports a pit-stop's outcome.
type ChangeResult struct {
	Refuel       bool
	Disqualified bool
}

// CommandChange performs a pit stop: compound==RefuelOnlyCompound
// means refuel without a tyre change; compound>=1 selects that
// compound (wrapping modulo the compound count); compound==0 selects
// randomly. pickRandom supplies the random compound index (1-based)
// when compound==0, so callers control determinism/seeding.
func (s *State) CommandChange(compound int, pickRandom func(numCompounds int) int) ChangeResult {
	if compound == RefuelOnlyCompound {
		return ChangeResult{Refuel: true}
	}

	if len(s.Stints) > 0 && s.Stints[0].Compound == 0 && s.Stints[0].Laps == 0 {
		s.Stints = s.Stints[1:]
	}
	s.Stints = append(s.Stints, Stint{Compound: s.CurrentCompound, Laps: s.LapCount})
	s.LapCount = 0

	prevCompound := s.CurrentCompound
	prevTrac := s.CurrentLifeTraction / s.characteristics().MaxLifeTraction
	prevTur := s.CurrentLifeTurning / s.characteristics().MaxLifeTurning

	numCompounds := s.characteristics().NumCompounds
	if numCompounds == 0 {
		numCompounds = len(s.Compounds)
	}
	if compound >= 1 {
		s.CurrentCompound = ((compound-1)%numCompounds) + 1
	} else if pickRandom != nil {
		s.CurrentCompound = pickRandom(numCompounds)
	}

	s.ResetCompound = false
	s.ResetFuel = false
	s.Reset()

	result := ChangeResult{}
	if len(s.TyresQueue) >= s.CurrentCompound {
		pittingForSame := prevCompound == s.CurrentCompound
		oldTyresWereFresh := prevTrac > 0.98 && prevTur > 0.98
		newTyreIsAvailable := s.TyresQueue[s.CurrentCompound-1] != 0
		newTyreIsInfinite := s.TyresQueue[s.CurrentCompound-1] == -1
		prevTyreIsInfinite := s.TyresQueue[prevCompound-1] == -1

		samePitstopTwice := pittingForSame && oldTyresWereFresh
		shouldDisqualify := !newTyreIsAvailable && !samePitstopTwice
		reduceCurrent := newTyreIsAvailable && !samePitstopTwice
		returnOld := !pittingForSame && oldTyresWereFresh

		if returnOld && !prevTyreIsInfinite && len(s.TyresQueue) >= prevCompound {
			s.TyresQueue[prevCompound-1]++
		}
		if reduceCurrent && !newTyreIsInfinite {
			s.TyresQueue[s.CurrentCompound-1]--
		}
		if shouldDisqualify {
			s.Disqualified = true
			result.Disqualified = true
			s.CurrentLifeTurning *= 0.5
			s.CurrentLifeTraction *= 0.5
		}
	}
	return result
}

// Reset reinitializes compound-dependent state, mirroring
// Tyres::reset (color/run-record side effects are out of scope here).
func (s *State) Reset() {
	if s.ResetFuel {
		s.CurrentFuel = s.Fuel.StartingFuel
		s.HighFuelDemand = false
	}
	s.LapCount = 0
	c := s.characteristics()
	s.CurrentLifeTraction = c.MaxLifeTraction
	s.CurrentLifeTurning = c.MaxLifeTurning
	s.HeatCycleCount = 0
	s.CurrentTemp = c.IdealTemp
	s.previousSpeeds = nil
	s.acceleration = 0
	s.timeElapsed = 0
}

// Snapshot is a point-in-time copy of a State's mutable fields. The
// per-compound Characteristics table and fuel tuning are immutable
// race-wide configuration, not state, so they are not part of it.
type Snapshot struct {
	currentCompound int
	resetCompound   bool
	resetFuel       bool

	currentLifeTraction float64
	currentLifeTurning  float64
	currentFuel         float64
	highFuelDemand      bool

	currentTemp    float64
	heatCycleCount float64
	lapCount       int

	tyresQueue []int
	stints     []Stint

	disqualified bool

	timeElapsed    float64
	previousSpeeds []float64
	acceleration   float64
}

// SaveState copies out every mutable field of s, in the same order
// RewindTo restores them, so a later RewindTo(s.SaveState()) is the
// identity.
func (s *State) SaveState() Snapshot {
	return Snapshot{
		currentCompound:     s.CurrentCompound,
		resetCompound:       s.ResetCompound,
		resetFuel:           s.ResetFuel,
		currentLifeTraction: s.CurrentLifeTraction,
		currentLifeTurning:  s.CurrentLifeTurning,
		currentFuel:         s.CurrentFuel,
		highFuelDemand:      s.HighFuelDemand,
		currentTemp:         s.CurrentTemp,
		heatCycleCount:      s.HeatCycleCount,
		lapCount:            s.LapCount,
		tyresQueue:          append([]int(nil), s.TyresQueue...),
		stints:              append([]Stint(nil), s.Stints...),
		disqualified:        s.Disqualified,
		timeElapsed:         s.timeElapsed,
		previousSpeeds:      append([]float64(nil), s.previousSpeeds...),
		acceleration:        s.acceleration,
	}
}

// RewindTo restores a Snapshot taken earlier by SaveState, putting s
// back exactly as it was at that moment -- the round trip a rollback
// (a mispredicted live-join or a resimulated tick) depends on.
func (s *State) RewindTo(snap Snapshot) {
	s.CurrentCompound = snap.currentCompound
	s.ResetCompound = snap.resetCompound
	s.ResetFuel = snap.resetFuel
	s.CurrentLifeTraction = snap.currentLifeTraction
	s.CurrentLifeTurning = snap.currentLifeTurning
	s.CurrentFuel = snap.currentFuel
	s.HighFuelDemand = snap.highFuelDemand
	s.CurrentTemp = snap.currentTemp
	s.HeatCycleCount = snap.heatCycleCount
	s.LapCount = snap.lapCount
	s.TyresQueue = append([]int(nil), snap.tyresQueue...)
	s.Stints = append([]Stint(nil), snap.stints...)
	s.Disqualified = snap.disqualified
	s.timeElapsed = snap.timeElapsed
	s.previousSpeeds = append([]float64(nil), snap.previousSpeeds...)
	s.acceleration = snap.acceleration
}
