package command

import "sort"

// DefaultVoteThreshold mirrors the original's 0.500001 constant: a
// strict majority, nudged above one half to break exact ties toward
// "not enough votes yet" rather than "passed".
const DefaultVoteThreshold = 0.500001

// Voting aggregates command-level votes per category (e.g. one
// CommandVoting per votable command), grounded on original_source
// network/protocols/command_voting.cpp/hpp.
type Voting struct {
	threshold float64

	votesByPoll   map[string]map[string]map[string]struct{} // category -> option -> set(player)
	votesByPlayer map[string]map[string]string              // category -> player -> option
}

func NewVoting(threshold float64) *Voting {
	if threshold <= 0 {
		threshold = DefaultVoteThreshold
	}
	return &Voting{
		threshold:     threshold,
		votesByPoll:   map[string]map[string]map[string]struct{}{},
		votesByPlayer: map[string]map[string]string{},
	}
}

// CastVote records player's vote for option within category,
// replacing any previous vote by the same player in that category.
func (v *Voting) CastVote(player, category, option string) {
	v.UncastVote(player, category)

	if v.votesByPoll[category] == nil {
		v.votesByPoll[category] = map[string]map[string]struct{}{}
	}
	if v.votesByPoll[category][option] == nil {
		v.votesByPoll[category][option] = map[string]struct{}{}
	}
	v.votesByPoll[category][option][player] = struct{}{}

	if v.votesByPlayer[category] == nil {
		v.votesByPlayer[category] = map[string]string{}
	}
	v.votesByPlayer[category][player] = option
}

// UncastVote removes player's existing vote in category, if any.
func (v *Voting) UncastVote(player, category string) {
	prev, ok := v.votesByPlayer[category][player]
	if !ok {
		return
	}
	delete(v.votesByPlayer[category], player)
	if options := v.votesByPoll[category]; options != nil {
		delete(options[prev], player)
		if len(options[prev]) == 0 {
			delete(options, prev)
		}
	}
}

// Result is the outcome of Process for one category.
type Result struct {
	Passed bool
	Option string
	Counts map[string]int
}

// Process tallies category's votes against allUsers (a multiset of
// currently-present player names, so a player who left no longer
// counts toward the denominator) and reports whether any option
// cleared the threshold, picking the option with the most votes
// (ties broken by lexicographically-smallest option name for
// determinism).
func (v *Voting) Process(category string, allUsers []string) Result {
	total := len(allUsers)
	options := v.votesByPoll[category]
	if total == 0 || len(options) == 0 {
		return Result{Counts: map[string]int{}}
	}

	present := make(map[string]struct{}, total)
	for _, u := range allUsers {
		present[u] = struct{}{}
	}

	counts := make(map[string]int, len(options))
	for option, voters := range options {
		n := 0
		for voter := range voters {
			if _, ok := present[voter]; ok {
				n++
			}
		}
		counts[option] = n
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestCount := -1
	for _, name := range names {
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}

	passed := bestCount >= 0 && float64(bestCount)/float64(total) > v.threshold
	return Result{Passed: passed, Option: best, Counts: counts}
}

// Clear drops every vote recorded for category (used once a votable
// command resolves or the poll is abandoned).
func (v *Voting) Clear(category string) {
	delete(v.votesByPoll, category)
	delete(v.votesByPlayer, category)
}
