// Package gp implements Grand Prix score accumulation across a
// sequence of races: per-player and per-team point/time totals, a
// pluggable scoring function (standard/inc/fixed/linear-gap/exp-gap),
// fastest-lap and pole-position bonuses, and ordering/shuffling of
// standings, grounded on original_source utils/gp_scoring.cpp/hpp.
package gp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// standardTable is STK's built-in decreasing point table: 1st place
// gets the most, trailing off to zero for positions beyond its reach.
var standardTable = []int{15, 12, 10, 8, 6, 4, 3, 2, 1}

// Scoring is a parsed scoring configuration, grounded on
// GPScoring::createFromIntParamString / toString.
type Scoring struct {
	kind   string
	params []int
}

// NewStandard returns the built-in decreasing-table scoring.
func NewStandard() *Scoring {
	return &Scoring{kind: "standard"}
}

// ParseIntParamString parses a scoring spec of the form
// "<type> <param>...", mirroring GPScoring::createFromIntParamString.
func ParseIntParamString(input string) (*Scoring, error) {
	s := &Scoring{}
	if input == "" {
		return s, nil
	}
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return s, nil
	}
	s.kind = fields[0]
	available := map[string]bool{
		"standard": true, "default": true, "": true,
		"inc": true, "fixed": true, "linear-gap": true, "exp-gap": true,
	}
	if !available[s.kind] {
		return nil, fmt.Errorf("unknown scoring type %q", s.kind)
	}
	for _, f := range fields[1:] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("unable to parse integer from custom scoring data: %q", f)
		}
		s.params = append(s.params, v)
	}
	return s, nil
}

// IsStandard reports whether this is the built-in decreasing table.
func (s *Scoring) IsStandard() bool {
	return s.kind == "" || s.kind == "standard" || s.kind == "default"
}

// PolePoints returns the configured pole-position bonus (params[0]).
func (s *Scoring) PolePoints() int {
	if len(s.params) < 1 {
		return 0
	}
	return s.params[0]
}

// FastestLapPoints returns the configured fastest-lap bonus (params[1]).
func (s *Scoring) FastestLapPoints() int {
	if len(s.params) < 2 {
		return 0
	}
	return s.params[1]
}

// RefreshCustomScores (re)builds the per-position score table for
// inc/fixed scoring, mirroring GPScoring::refreshCustomScores.
// numKarts is the number of scoring slots to produce.
func (s *Scoring) RefreshCustomScores(numKarts int) []int {
	scores := make([]int, 0, numKarts)
	switch s.kind {
	case "inc":
		for i := 2; i < len(s.params); i++ {
			scores = append(scores, s.params[i])
		}
		scores = padTo(scores, numKarts)
		sort.Ints(scores)
		for i := 1; i < len(scores); i++ {
			scores[i] += scores[i-1]
		}
		reverse(scores)
	case "fixed":
		for i := 2; i < len(s.params); i++ {
			scores = append(scores, s.params[i])
		}
		scores = padTo(scores, numKarts)
	case "linear-gap", "exp-gap":
		scores = padTo(scores, numKarts)
	}
	return scores
}

func padTo(s []int, n int) []int {
	for len(s) < n {
		s = append(s, 0)
	}
	return s
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ScoreForPosition computes the points a kart finishing in position p
// (1-based) earns, given its race time and the winner's recorded time
// (raceTimes[1]), mirroring GPScoring::getScoreForPosition.
func (s *Scoring) ScoreForPosition(p int, t float64, raceTimes map[int]float64, scoreForPosition []int) int {
	raceTimes[p] = t
	switch s.kind {
	case "inc", "fixed":
		if p-1 < 0 || p-1 >= len(scoreForPosition) {
			return 0
		}
		return scoreForPosition[p-1]
	case "linear-gap", "exp-gap":
		winnerTime := raceTimes[1]
		delta := t - winnerTime
		if s.kind == "exp-gap" {
			if winnerTime < 1e-6 {
				return 0
			}
			delta = math.Log(t/winnerTime) / math.Log(2)
		}
		points := float64(paramOr(s.params, 2, 0)) * 0.001
		continuous := paramOr(s.params, 5, 0) != 0
		timeStep := float64(paramOr(s.params, 3, 0)) * 0.001
		decrease := float64(paramOr(s.params, 4, 0)) * 0.001
		delta /= timeStep
		if !continuous {
			delta = math.Floor(delta)
		}
		points -= delta * decrease
		if points < 0 {
			points = 0
		}
		return int(math.Round(points))
	}
	return 0
}

func paramOr(params []int, idx, def int) int {
	if idx < 0 || idx >= len(params) {
		return def
	}
	return params[idx]
}

// CanGetScoreForPosition mirrors GPScoring::canGetScoreForPosition:
// the gap-based functions need the winner's time recorded first.
func (s *Scoring) CanGetScoreForPosition(p int, raceTimes map[int]float64) bool {
	if s.kind == "linear-gap" || s.kind == "exp-gap" {
		if p == 1 {
			return true
		}
		_, ok := raceTimes[1]
		return ok
	}
	return true
}

// StandardScoreForPosition returns the built-in table's points for
// position p (1-based), zero beyond the table's reach.
func StandardScoreForPosition(p int) int {
	if p < 1 || p > len(standardTable) {
		return 0
	}
	return standardTable[p-1]
}

// String serializes the scoring config, mirroring GPScoring::toString.
func (s *Scoring) String() string {
	var b strings.Builder
	b.WriteString(s.kind)
	for _, p := range s.params {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}
