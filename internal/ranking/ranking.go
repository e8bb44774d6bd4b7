// Package ranking implements the Elo-like head-to-head rating system,
// grounded on original_source utils/ranking.cpp/hpp.
package ranking

import "math"

const (
	// BaseRankingPoints is given to a new player on first connection
	// to a ranked server.
	BaseRankingPoints = 4000.0
	// BaseRatingDeviation is given to a new player on first connection.
	BaseRatingDeviation = 1000.0
	// MinRatingDeviation is the floor a server cron job raises RD
	// back toward if a player goes inactive.
	MinRatingDeviation = 100.0

	baseRDPerDisconnect = 15.0
	varRDPerDisconnect  = 3.0
	maxScalingTime      = 360.0
	basePointsPerSecond = 0.18
	handicapOffset      = 2000.0
)

// PlayerState is one player's persistent rating record.
type PlayerState struct {
	RawScore        float64
	ShownScore      float64
	Deviation       float64
	DisconnectMask  uint64
	NumGames        uint
	MaxShownScore   float64
}

// NewPlayerState returns the starting rating record for a player's
// first connection to a ranked server.
func NewPlayerState() PlayerState {
	return PlayerState{
		RawScore:   BaseRankingPoints,
		ShownScore: BaseRankingPoints,
		Deviation:  BaseRatingDeviation,
	}
}

// RaceEntry is one player's participation in a ranked race, the input
// unit for UpdateState.
type RaceEntry struct {
	State       PlayerState
	IsEliminated bool
	IsHandicapped bool
	Time        float64
}

// UpdateState applies one race's result to every participant's
// rating, mirroring updateRankingState. Returns the updated states in
// the same order as entries. If every entry is eliminated (the whole
// field disconnected), the input is returned unchanged.
func UpdateState(entries []RaceEntry, isTimeTrial bool) []PlayerState {
	n := len(entries)
	allEliminated := true
	for _, e := range entries {
		if !e.IsEliminated {
			allEliminated = false
			break
		}
	}
	if allEliminated || n == 0 {
		out := make([]PlayerState, n)
		for i, e := range entries {
			out[i] = e.State
		}
		return out
	}

	newRaw := make([]float64, n)
	prevRD := make([]float64, n)
	newRD := make([]float64, n)
	disconnects := make([]int, n)
	rawChange := make([]float64, n)

	for i, e := range entries {
		newRaw[i] = e.State.RawScore
		prevRD[i] = e.State.Deviation
		newRD[i] = e.State.Deviation
	}

	for i, e := range entries {
		mask := (e.State.DisconnectMask << 1)
		if e.IsEliminated {
			mask++
		}
		disconnects[i] = popcount64(mask)
	}

	for i := range entries {
		player1Raw := newRaw[i]
		if entries[i].IsHandicapped {
			player1Raw -= handicapOffset
		}
		player1Time := entries[i].Time
		player1RD := prevRD[i]

		if entries[i].IsEliminated && disconnects[i] >= 3 {
			newRD[i] = prevRD[i] + baseRDPerDisconnect + varRDPerDisconnect*float64(disconnects[i]-3)
		}

		for j := range entries {
			if i == j {
				continue
			}
			if entries[i].IsEliminated && entries[j].IsEliminated {
				continue
			}

			player2Raw := newRaw[j]
			if entries[j].IsHandicapped {
				player2Raw -= handicapOffset
			}
			player2Time := entries[j].Time
			player2RD := prevRD[j]

			handicapUsed := entries[i].IsHandicapped || entries[j].IsHandicapped
			accuracy := computeDataAccuracy(player1RD, player2RD, player1Raw, player2Raw, n, handicapUsed)

			modeFactor := getModeFactor(isTimeTrial)

			var res float64
			p1t, p2t := player1Time, player2Time
			switch {
			case entries[i].IsEliminated:
				res = 0.0
				p1t = p2t * 1.2
			case entries[j].IsEliminated:
				res = 1.0
				p2t = p1t * 1.2
			default:
				res = computeH2HResult(p1t, p2t)
			}

			maxTime := math.Min(maxScalingTime, math.Max(p1t, p2t))
			rankingImportance := accuracy * modeFactor * scalingValueForTime(maxTime)

			diff := player2Raw - player1Raw
			expectedResult := 1.0 / (1.0 + math.Pow(10.0, diff/(BaseRankingPoints/2.0*getModeSpread(isTimeTrial)*getTimeSpread(math.Min(p1t, p2t)))))

			rawChange[i] += rankingImportance * (res - expectedResult)

			if !entries[i].IsEliminated {
				rdChangeFactor := accuracy * 0.0016
				rdChange := -1 * prevRD[i] * rdChangeFactor

				upset := math.Abs(res - expectedResult)
				if upset > 0.5 {
					upset = 2.0 - 2*upset
					upset = math.Max(0.02, upset)
					rdChange += MinRatingDeviation * rdChangeFactor / upset
				}
				newRD[i] += rdChange
			}
		}
	}

	out := make([]PlayerState, n)
	for i := range entries {
		raw := newRaw[i] + rawChange[i]
		disconnectsFloor := 0.0
		if disconnects[i] >= 3 {
			dn := float64(disconnects[i] - 3)
			disconnectsFloor = float64(disconnects[i]-2)*baseRDPerDisconnect + varRDPerDisconnect*(dn*(dn+1))/2
		}
		rd := math.Max(newRD[i], MinRatingDeviation+disconnectsFloor)
		shown := raw - 3*rd + 3*MinRatingDeviation
		maxShown := entries[i].State.MaxShownScore
		if shown > maxShown {
			maxShown = shown
		}
		mask := (entries[i].State.DisconnectMask << 1)
		if entries[i].IsEliminated {
			mask++
		}
		out[i] = PlayerState{
			RawScore:       raw,
			ShownScore:     shown,
			Deviation:      rd,
			DisconnectMask: mask,
			NumGames:       entries[i].State.NumGames + 1,
			MaxShownScore:  maxShown,
		}
	}
	return out
}

func popcount64(v uint64) int {
	count := 0
	for v != 0 {
		count += int(v & 1)
		v >>= 1
	}
	return count
}

// getModeFactor returns the mode race importance factor, used to make
// ranking move slower in more random modes.
func getModeFactor(isTimeTrial bool) float64 {
	if isTimeTrial {
		return 1.0
	}
	return 0.75
}

// getModeSpread returns the mode spread factor, used so that a
// similar difference in skill results in a similar ranking difference
// in more random modes.
func getModeSpread(isTimeTrial bool) float64 {
	if isTimeTrial {
		return 1.0
	}
	return 1.25
}

// getTimeSpread returns the time spread factor: shorter races are
// more random, so the expected result changes with race duration.
func getTimeSpread(time float64) float64 {
	return math.Sqrt(120.0 / time)
}

// scalingValueForTime scales linearly with race duration.
func scalingValueForTime(time float64) float64 {
	return time * basePointsPerSecond
}

// computeH2HResult computes the score of a head-to-head minimatch: if
// the time difference exceeds 2.5%, the result is a full win/loss;
// otherwise it's averaged between 0 and 1.
func computeH2HResult(player1Time, player2Time float64) float64 {
	maxTime := math.Max(player1Time, player2Time)
	minTime := math.Min(player1Time, player2Time)

	result := (maxTime - minTime) / (minTime / 20.0)
	result = math.Min(1.0, 0.5+result)

	if player2Time <= player1Time {
		result = 1.0 - result
	}
	return result
}

// computeDataAccuracy computes a relative factor indicating how much
// informative value the new race result gives, scaled down for high
// rating deviations, large rating gaps, big fields, and handicap use.
func computeDataAccuracy(player1RD, player2RD, player1Scores, player2Scores float64, playerCount int, handicapUsed bool) float64 {
	accuracy := player1RD / (math.Sqrt(player2RD) * math.Sqrt(MinRatingDeviation))

	var strongLowerBound, weakUpperBound float64
	if player1Scores > player2Scores {
		strongLowerBound = player1Scores - 3*player1RD
		weakUpperBound = player2Scores + 3*player2RD
	} else {
		strongLowerBound = player2Scores - 3*player2RD
		weakUpperBound = player1Scores + 3*player1RD
	}

	if weakUpperBound < strongLowerBound {
		diff := (strongLowerBound - weakUpperBound) / (BaseRankingPoints / 2.0)
		expectedResult := 1.0 / (1.0 + math.Pow(10.0, diff))
		expectedResult = math.Max(0.2, math.Sqrt(2*expectedResult))
		accuracy *= expectedResult
	}

	playerCountModifier := 2.0 / math.Sqrt(float64(playerCount))
	accuracy *= playerCountModifier

	if handicapUsed {
		accuracy *= 0.25
	}
	return accuracy
}
