// Package item implements the item policy engine: a section-based rule
// set that decides powerup handouts per lap, the blue-flag hit-validity
// check, item-ticks-till-return adjustment, and the virtual pace car
// restart procedure, grounded on original_source race/item_policy.cpp/hpp.
package item

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Rule is a bit in a section's rule bitstring.
type Rule uint16

const (
	RuleLinear          Rule = 1 << 0
	RuleClear           Rule = 1 << 1
	RuleGradual         Rule = 1 << 2
	RuleReplenish       Rule = 1 << 3
	RuleProgressiveCap  Rule = 1 << 4
	RuleOverwriteItems  Rule = 1 << 5
	RuleBlueFlags       Rule = 1 << 6
	RuleForbidBonusBox  Rule = 1 << 7
	RuleForbidBanana    Rule = 1 << 8
	RuleForbidNitro     Rule = 1 << 9
	RuleVirtualPace     Rule = 1 << 10
	RuleUnlapping       Rule = 1 << 11
	RuleBonusBoxOverride Rule = 1 << 12
	RuleAutomaticWeights Rule = 1 << 13
)

// SectionBase distinguishes lap-indexed from time-indexed sections.
// Time-based sections are accepted by the parser but not evaluated.
type SectionBase int

const (
	SectionLapsBased SectionBase = iota
	SectionTimeBased
)

// PowerupType mirrors the handful of powerup categories the policy
// engine needs to reason about; a full kart item catalogue is outside
// this engine's scope.
type PowerupType string

const (
	PowerupNothing PowerupType = "nothing"
)

// Section is one ItemPolicySection. Sections only record their start;
// the section with the highest index whose start is still applicable
// wins.
type Section struct {
	Type              SectionBase
	Start             int
	Rules             Rule
	LinearMult        float64
	ItemsPerLap       float64
	ProgressiveCap    float64
	VirtualPaceGaps   float64
	PossibleTypes     []PowerupType
	WeightDistribution []int
}

// KartItemState is the subset of a kart's item state the engine reads
// and writes; the caller owns the kart object itself.
type KartItemState struct {
	Amount         int
	Type           PowerupType
	LastLapAmount  int
}

// Policy is one ItemPolicy instance.
type Policy struct {
	Sections        []Section
	LeaderSection   int // -1 if the mode has no leader
	VirtualPaceCode int // see decodeVirtualPaceCode
	RestartCount    int
}

// NewPolicy returns a policy with no leader and normal racing.
func NewPolicy() *Policy {
	return &Policy{LeaderSection: -1, VirtualPaceCode: -1, RestartCount: 0}
}

// SelectItemFrom performs the weighted random draw over a section's
// possible powerup types.
func SelectItemFrom(types []PowerupType, weights []int) (int, error) {
	if len(types) != len(weights) {
		return -1, fmt.Errorf("item: mismatched types/weights length")
	}
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return -1, fmt.Errorf("item: non-positive total weight")
	}
	roll := rand.IntN(sum)
	for i, w := range weights {
		if roll < w {
			return i, nil
		}
		roll -= w
	}
	return -1, fmt.Errorf("item: unreachable, no item selected")
}

// ApplySectionRules recomputes a kart's item type/amount for one
// section, mirroring ItemPolicy::applySectionRules.
func (p *Policy) ApplySectionRules(section Section, state KartItemState, nextSectionStartLaps, currentLap int) (KartItemState, error) {
	if section.Type == SectionTimeBased {
		return state, nil
	}

	currType := state.Type
	currAmount := state.Amount
	sectionStart := currentLap == section.Start

	overwrite := section.Rules&RuleOverwriteItems != 0
	linearAdd := section.Rules&RuleLinear != 0
	linearClear := section.Rules&RuleClear != 0
	gradualAdd := section.Rules&RuleGradual != 0
	gradualReplenish := section.Rules&RuleReplenish != 0
	progressiveCap := section.Rules&RuleProgressiveCap != 0
	activeRole := gradualAdd || gradualReplenish

	amountToAdd := float64(section.ItemsPerLap)
	if !sectionStart {
		amountToAdd = float64(state.LastLapAmount - currAmount)
	}
	if amountToAdd > section.ItemsPerLap {
		amountToAdd = section.ItemsPerLap
	}
	if gradualAdd && !gradualReplenish {
		amountToAdd = section.ItemsPerLap
	}
	if !gradualAdd {
		amountToAdd = 0
	}

	remainingLaps := nextSectionStartLaps - currentLap
	amountToAddLinear := 0.0
	if sectionStart && linearAdd {
		amountToAddLinear = section.LinearMult * float64(remainingLaps)
	}

	newType := currType
	emptyWeights := len(section.WeightDistribution) == 0
	itemIsValid := emptyWeights
	if !emptyWeights {
		for _, t := range section.PossibleTypes {
			if t == currType {
				itemIsValid = true
				break
			}
		}
	}

	newAmount := currAmount
	if !itemIsValid {
		newAmount = 0
	}
	if sectionStart && linearClear {
		newAmount = 0
	}
	newAmount += int(amountToAdd)
	newAmount += int(amountToAddLinear)
	if progressiveCap && float64(newAmount) > section.ProgressiveCap*float64(remainingLaps) {
		newAmount = int(section.ProgressiveCap * float64(remainingLaps))
	}

	if !emptyWeights {
		selecting := overwrite || newAmount == 0
		selecting = selecting || (sectionStart && (linearClear || newAmount != 0))
		selecting = selecting || (!sectionStart && !itemIsValid && activeRole)
		if selecting {
			idx, err := SelectItemFrom(section.PossibleTypes, section.WeightDistribution)
			if err != nil {
				return state, err
			}
			newType = section.PossibleTypes[idx]
		}
	}

	if newAmount == 0 {
		newType = PowerupNothing
	}
	if newType == PowerupNothing {
		newAmount = 0
	}

	return KartItemState{Amount: newAmount, Type: newType, LastLapAmount: state.LastLapAmount}, nil
}

// ApplyRules finds the applicable section for currentLap and runs it,
// returning the section's index (or -1 if no section applies).
func (p *Policy) ApplyRules(state KartItemState, currentLap, totalLapsOfRace int) (int, KartItemState, error) {
	if len(p.Sections) == 0 {
		return -1, state, nil
	}
	for i := range p.Sections {
		nextStart := totalLapsOfRace
		if i+1 == len(p.Sections) {
			if currentLap < p.Sections[i].Start {
				return -1, state, nil
			}
			next, err := p.ApplySectionRules(p.Sections[i], state, nextStart, currentLap)
			return i, next, err
		}
		if p.Sections[i].Type != SectionLapsBased || p.Sections[i+1].Type != SectionLapsBased {
			return i, state, nil
		}
		if currentLap >= p.Sections[i].Start && currentLap < p.Sections[i+1].Start {
			nextStart = p.Sections[i+1].Start
			next, err := p.ApplySectionRules(p.Sections[i], state, nextStart, currentLap)
			return i, next, err
		}
	}
	return -1, state, nil
}

// FromString parses the space-separated policy format: "<n_sections>
// <start> <16-bit bitstring> <linear_mult> <items_per_lap>
// <progressive_cap> <virtual_pace_gaps> <n_items> [<type> <weight>]..."
// repeated per section, plus the "normal" and "tt" presets.
func FromString(input string) (*Policy, error) {
	switch input {
	case "", "normal":
		return FromString("1 0 0000000000000000 0 0 0 0 0")
	case "tt", "timetrial", "time-trial":
		return FromString("1 0 0010000000000001 1 0 0 0 1 zipper 1")
	}

	fields := strings.Fields(input)
	if len(fields) < 8 {
		return FromString("normal")
	}

	idx := 0
	next := func() (string, error) {
		if idx >= len(fields) {
			return "", fmt.Errorf("item: out of bounds parsing policy string")
		}
		v := fields[idx]
		idx++
		return v, nil
	}
	nextInt := func() (int, error) {
		s, err := next()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(s)
	}
	nextFloat := func() (float64, error) {
		s, err := next()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}

	nSections, err := nextInt()
	if err != nil {
		return nil, err
	}
	if nSections <= 0 {
		return NewPolicy(), nil
	}

	policy := NewPolicy()
	for i := 0; i < nSections; i++ {
		var s Section
		s.Type = SectionLapsBased
		if s.Start, err = nextInt(); err != nil {
			return nil, err
		}

		bitstring, err := next()
		if err != nil {
			return nil, err
		}
		for j, c := range bitstring {
			if c != '0' {
				s.Rules |= 1 << (len(bitstring) - j - 1)
			}
		}

		if s.LinearMult, err = nextFloat(); err != nil {
			return nil, err
		}
		if s.ItemsPerLap, err = nextFloat(); err != nil {
			return nil, err
		}
		if s.ProgressiveCap, err = nextFloat(); err != nil {
			return nil, err
		}
		if s.VirtualPaceGaps, err = nextFloat(); err != nil {
			return nil, err
		}

		nItems, err := nextInt()
		if err != nil {
			return nil, err
		}
		for j := 0; j < nItems; j++ {
			typeName, err := next()
			if err != nil {
				return nil, err
			}
			weightStr, err := next()
			if err != nil {
				return nil, err
			}
			weight, err := strconv.Atoi(weightStr)
			if err != nil {
				return nil, err
			}
			s.PossibleTypes = append(s.PossibleTypes, PowerupType(typeName))
			s.WeightDistribution = append(s.WeightDistribution, weight)
		}
		policy.Sections = append(policy.Sections, s)
	}
	return policy, nil
}

// ToString renders a policy in the FromString format.
func (p *Policy) ToString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d ", len(p.Sections))
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "%d ", s.Start)
		bits := make([]byte, 16)
		for j := 0; j < 16; j++ {
			if s.Rules&(1<<(15-j)) != 0 {
				bits[j] = '1'
			} else {
				bits[j] = '0'
			}
		}
		b.Write(bits)
		fmt.Fprintf(&b, " %g %g %g %g %d ", s.LinearMult, s.ItemsPerLap, s.ProgressiveCap, s.VirtualPaceGaps, len(s.PossibleTypes))
		for j := range s.PossibleTypes {
			fmt.Fprintf(&b, "%s %d ", s.PossibleTypes[j], s.WeightDistribution[j])
		}
	}
	return strings.TrimRight(b.String(), " ")
}
