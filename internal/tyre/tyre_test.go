package tyre

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func flatCurve(v float64) Curve {
	return func(x float64) float64 { return v }
}

func testCompounds() CompoundSet {
	c := Characteristics{
		HardnessMultiplier:       1.0,
		HeatCycleHardness:        flatCurve(1.0),
		HardnessPenalty:          flatCurve(1.0),
		MaxLifeTraction:          100,
		MaxLifeTurning:           100,
		LimitingTransferTraction: 0.1,
		RegularTransferTraction:  0.9,
		LimitingTransferTurning:  0.1,
		RegularTransferTurning:   0.9,
		ResponseCurveTraction:    flatCurve(1.0),
		ResponseCurveTurning:     flatCurve(1.0),
		ResponseCurveTopspeed:    flatCurve(1.0),
		InitialBonusMultTraction: 1,
		InitialBonusMultTurning:  1,
		InitialBonusMultTopspeed: 1,
		TractionConstant:         1,
		TurningConstant:          1,
		TopspeedConstant:         1,
		OffroadFactor:            2,
		SkidFactor:               2,
		BrakeThreshold:           0.5,
		CrashPenalty:             10,
		IdealTemp:                80,
		Mass:                     100,
		NumCompounds:             3,
	}
	return CompoundSet{c, c, c}
}

func testFuel() FuelConfig {
	return FuelConfig{StartingFuel: 100, RegenRate: 1, StopRatio: 0.1, WeightFactor: 0.5, ConsumeRate: 1}
}

func TestNewStateInitializesFromCompound(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, 5, 0})
	require.Equal(t, 1, s.CurrentCompound)
	require.Equal(t, 100.0, s.CurrentFuel)
	require.Equal(t, 100.0, s.CurrentLifeTraction)
	require.Equal(t, 80.0, s.CurrentTemp)
}

func TestComputeDegradationConsumesFuelWhenThrottling(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.ComputeDegradation(KartMotion{
		DT: 0.1, Speed: 20, Mass: 100, IsOnGround: true,
		ThrottleAmount: 1.0, SteerAmount: 0.1,
	})
	require.Less(t, s.CurrentFuel, 100.0)
}

func TestComputeDegradationSkipsWhenOffGround(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	before := s.CurrentFuel
	s.ComputeDegradation(KartMotion{DT: 0.1, Speed: 20, Mass: 100, IsOnGround: false, ThrottleAmount: 1.0})
	require.Equal(t, before, s.CurrentFuel)
	require.False(t, s.HighFuelDemand)
}

func TestComputeDegradationWearsTractionAndTurningUnderSteer(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.ComputeDegradation(KartMotion{
		DT: 0.1, Speed: 30, Mass: 100, IsOnGround: true,
		ThrottleAmount: 1.0, SteerAmount: 0.5,
	})
	require.Less(t, s.CurrentLifeTraction, 100.0)
	require.Less(t, s.CurrentLifeTurning, 100.0)
}

func TestComputeDegradationSkiddingMultipliesTurningWear(t *testing.T) {
	sSkid := NewState(testCompounds(), testFuel(), 1, nil)
	sSkid.ComputeDegradation(KartMotion{DT: 0.1, Speed: 30, Mass: 100, IsOnGround: true, ThrottleAmount: 1, SteerAmount: 0.5, IsSkidding: true})

	sNoSkid := NewState(testCompounds(), testFuel(), 1, nil)
	sNoSkid.ComputeDegradation(KartMotion{DT: 0.1, Speed: 30, Mass: 100, IsOnGround: true, ThrottleAmount: 1, SteerAmount: 0.5, IsSkidding: false})

	require.Less(t, sSkid.CurrentLifeTurning, sNoSkid.CurrentLifeTurning)
}

func TestApplyCrashPenaltyReducesLifePools(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.ApplyCrashPenalty()
	require.Equal(t, 90.0, s.CurrentLifeTraction)
	require.Equal(t, 90.0, s.CurrentLifeTurning)
}

func TestDegTopSpeedReturnsFlatValueWhenOutOfFuel(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.CurrentFuel = 0
	require.Equal(t, 5.0, s.DegTopSpeed(50))
}

func TestDegTopSpeedUsesResponseCurveWithFuel(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	require.NotEqual(t, 5.0, s.DegTopSpeed(50))
}

func TestCommandChangeRefuelOnlyDoesNotChangeCompound(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	result := s.CommandChange(RefuelOnlyCompound, nil)
	require.True(t, result.Refuel)
	require.Equal(t, 1, s.CurrentCompound)
}

func TestCommandChangeSwitchesCompoundAndResetsLife(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, -1, -1})
	s.CurrentLifeTraction = 10
	s.CommandChange(2, nil)
	require.Equal(t, 2, s.CurrentCompound)
	require.Equal(t, 100.0, s.CurrentLifeTraction)
}

func TestCommandChangeWrapsCompoundModuloCount(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, -1, -1})
	s.CommandChange(4, nil)
	require.Equal(t, 1, s.CurrentCompound)
}

func TestCommandChangeDisqualifiesWhenNoStockAndNotFreshSameCompound(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, 0, -1})
	s.CurrentLifeTraction = 50
	s.CurrentLifeTurning = 50
	result := s.CommandChange(2, nil)
	require.True(t, result.Disqualified)
	require.True(t, s.Disqualified)
	require.Equal(t, 50.0, s.CurrentLifeTraction) // fresh compound-2 life (100), halved
}

func TestCommandChangeAllowsSamePitstopTwiceWithFreshTyres(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{0, -1, -1})
	result := s.CommandChange(1, nil)
	require.False(t, result.Disqualified)
}

func TestCommandChangeReturnsOldFreshTyreToQueue(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{2, -1, -1})
	s.CommandChange(2, nil)
	require.Equal(t, 3, s.TyresQueue[0])
}

func TestCommandEndClosesFinalStintDroppingLeadingPlaceholder(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.Stints = []Stint{{Compound: 0, Laps: 0}}
	s.LapCount = 4
	s.CommandEnd()
	require.Equal(t, []Stint{{Compound: 1, Laps: 5}}, s.Stints)
}

func TestCommandLapIncrementsLapCount(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, nil)
	s.CommandLap()
	s.CommandLap()
	require.Equal(t, 2, s.LapCount)
}

func TestRewindToIsTheIdentityAfterSaveState(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, 5, 0})
	s.ComputeDegradation(KartMotion{
		DT: 0.1, Speed: 30, Mass: 100, IsOnGround: true,
		ThrottleAmount: 1.0, SteerAmount: 0.5,
	})
	s.CommandLap()
	snap := s.SaveState()

	s.ComputeDegradation(KartMotion{
		DT: 0.1, Speed: 40, Mass: 100, IsOnGround: true,
		ThrottleAmount: 1.0, SteerAmount: 0.2, IsSkidding: true,
	})
	s.CommandChange(2, nil)
	require.NotEqual(t, snap, s.SaveState())

	s.RewindTo(snap)
	require.Equal(t, snap, s.SaveState())
}

func TestSaveStateSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	s := NewState(testCompounds(), testFuel(), 1, []int{-1, -1, -1})
	snap := s.SaveState()

	s.TyresQueue[0] = 99
	s.Stints = append(s.Stints, Stint{Compound: 1, Laps: 3})

	s.RewindTo(snap)
	require.Equal(t, []int{-1, -1, -1}, s.TyresQueue)
	require.Empty(t, s.Stints)
}
