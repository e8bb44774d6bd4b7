// Package queue implements the map/kart selection queues (one-time
// and cyclic sub-queues) and their textual filter grammar, grounded on
// original_source utils/lobby_queues.cpp/hpp and
// utils/track_filter.cpp/hpp.
package queue

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
)

// PlaceholderString marks a cyclic-queue slot that should be skipped
// rather than re-enqueued, mirroring Filter::PLACEHOLDER_STRING.
const PlaceholderString = "-"

// Context carries the inputs a Filter needs to narrow a candidate set,
// mirroring FilterContext.
type Context struct {
	Username                string
	Elements                map[string]struct{}
	NumPlayers              int
	Wildcards               []string
	AppliedAtSelectionStart bool
}

// NewContext builds a filter context over the given candidate set.
func NewContext(elements []string, numPlayers int) *Context {
	set := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		set[e] = struct{}{}
	}
	return &Context{Elements: set, NumPlayers: numPlayers}
}

// elementsSorted returns the current candidate set as a sorted slice.
func (c *Context) elementsSorted() []string {
	out := make([]string, 0, len(c.Elements))
	for e := range c.Elements {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Filter narrows a Context's candidate set, mirroring the Filter base
// class (TrackFilter/KartFilter).
type Filter interface {
	InitialString() string
	IsPlaceholder() bool
	Apply(ctx *Context)
	IgnoresPlayersInput() bool
}

func get(vec []string, index int) string {
	if index >= 0 && index < len(vec) {
		return vec[index]
	}
	if index < 0 && index >= -len(vec) {
		return vec[len(vec)+index]
	}
	return ""
}

// TrackFilter implements the filter grammar:
// "[not] token… | %i | available|unavailable|official|addon | random N".
type TrackFilter struct {
	initial string

	includeAvailable   bool
	includeUnavailable bool
	includeOfficial    bool
	includeAddons      bool
	pickRandom         bool
	randomCount        int
	allowed            map[string]struct{}
	forbidden          map[string]struct{}
	wAllowed           []int
	wForbidden         []int
	maxPlayers         map[string]int
	others             bool
}

// NewTrackFilter parses a filter expression, mirroring TrackFilter(std::string).
func NewTrackFilter(input string) *TrackFilter {
	f := &TrackFilter{
		initial:            input,
		includeAvailable:   true,
		includeUnavailable: true,
		includeOfficial:    true,
		includeAddons:      true,
		allowed:            map[string]struct{}{},
		forbidden:          map[string]struct{}{},
		maxPlayers:         map[string]int{},
	}
	if input == PlaceholderString {
		return f
	}

	tokens := strings.Fields(input)
	good := true
	unknownOthers := true

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "":
			continue
		case tok == "random":
			f.pickRandom = true
			f.randomCount = 1
			if i+1 < len(tokens) {
				if v, err := strconv.Atoi(tokens[i+1]); err == nil && v > 0 {
					f.randomCount = v
					i++
				}
			}
		case tok == "available":
			f.includeUnavailable = false
		case tok == "unavailable":
			f.includeAvailable = false
		case tok == "official":
			f.includeAddons = false
		case tok == "addon":
			f.includeOfficial = false
		case tok == "not" || tok == "no":
			good = false
			if i == 0 {
				f.others = true
			}
		case tok == "yes" || tok == "ok":
			good = true
		case tok == "other:yes":
			unknownOthers = false
			f.others = true
		case tok == "other:no":
			unknownOthers = false
			f.others = false
		case strings.HasPrefix(tok, "%"):
			idx, err := strconv.Atoi(tok[1:])
			if err != nil {
				continue
			}
			if good {
				f.wAllowed = append(f.wAllowed, idx)
			} else {
				f.wForbidden = append(f.wForbidden, idx)
			}
		default:
			if sep := strings.IndexByte(tok, ':'); sep >= 0 {
				track := tok[:sep]
				if v, err := strconv.Atoi(tok[sep+1:]); err == nil {
					f.maxPlayers[track] = v
				}
			} else if good {
				f.allowed[tok] = struct{}{}
			} else {
				f.forbidden[tok] = struct{}{}
			}
		}
	}

	if unknownOthers {
		f.others = len(f.allowed) == 0 && len(f.wAllowed) == 0
	}
	return f
}

func (f *TrackFilter) InitialString() string { return f.initial }
func (f *TrackFilter) IsPlaceholder() bool    { return f.initial == PlaceholderString }
func (f *TrackFilter) IgnoresPlayersInput() bool { return false }
func (f *TrackFilter) IsPickingRandom() bool  { return f.pickRandom }

// Apply narrows ctx.Elements in place, mirroring TrackFilter::apply.
func (f *TrackFilter) Apply(ctx *Context) {
	if f.IsPlaceholder() {
		return
	}
	copySet := ctx.Elements
	result := make(map[string]struct{})

	namesAllowed := map[string]struct{}{}
	namesForbidden := map[string]struct{}{}
	for _, x := range f.wAllowed {
		if name := get(ctx.Wildcards, x); name != "" {
			namesAllowed[name] = struct{}{}
		}
	}
	for _, x := range f.wForbidden {
		if name := get(ctx.Wildcards, x); name != "" {
			namesForbidden[name] = struct{}{}
		}
	}

	for s := range copySet {
		addon := strings.HasPrefix(s, "addon_")
		yes, no := false, false

		if max, ok := f.maxPlayers[s]; ok && max < ctx.NumPlayers {
			continue
		}
		if _, ok := namesAllowed[s]; ok {
			yes = true
		}
		if _, ok := f.allowed[s]; ok {
			yes = true
		}
		if _, ok := namesForbidden[s]; ok {
			no = true
		}
		if _, ok := f.forbidden[s]; ok {
			no = true
		}
		if (!addon && !f.includeOfficial) || (addon && !f.includeAddons) {
			yes = false
			no = true
		}
		if yes && no {
			no = false
		}
		if !yes && !no {
			if f.others {
				yes = true
			} else {
				no = true
			}
		}
		if yes {
			result[s] = struct{}{}
		}
	}

	if f.pickRandom && len(result) > f.randomCount {
		names := make([]string, 0, len(result))
		for s := range result {
			names = append(names, s)
		}
		sort.Strings(names)
		rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		names = names[:f.randomCount]
		result = make(map[string]struct{}, len(names))
		for _, n := range names {
			result[n] = struct{}{}
		}
	}

	ctx.Elements = result
}

func (f *TrackFilter) String() string {
	return "{ " + f.initial + " }"
}

// KartFilter implements a narrower grammar: forcing a fixed kart set
// or a random kart, and optionally ignoring player input entirely.
type KartFilter struct {
	initial            string
	ignorePlayersInput bool
	allowedKarts       map[string]struct{}
	forbiddenKarts     map[string]struct{}
	allowUnspecified   bool
	pickRandom         bool
}

// NewKartFilter parses a kart-filter expression, mirroring KartFilter(std::string).
func NewKartFilter(input string) *KartFilter {
	f := &KartFilter{
		initial:          input,
		allowedKarts:     map[string]struct{}{},
		forbiddenKarts:   map[string]struct{}{},
		allowUnspecified: true,
	}
	if input == PlaceholderString {
		return f
	}
	good := true
	for _, tok := range strings.Fields(input) {
		switch {
		case tok == "random":
			f.pickRandom = true
		case tok == "ignore":
			f.ignorePlayersInput = true
		case tok == "not" || tok == "no":
			good = false
		case tok == "yes" || tok == "ok":
			good = true
		default:
			if good {
				f.allowedKarts[tok] = struct{}{}
				f.allowUnspecified = false
			} else {
				f.forbiddenKarts[tok] = struct{}{}
			}
		}
	}
	return f
}

func (f *KartFilter) InitialString() string    { return f.initial }
func (f *KartFilter) IsPlaceholder() bool       { return f.initial == PlaceholderString }
func (f *KartFilter) IgnoresPlayersInput() bool { return f.ignorePlayersInput }

// Apply narrows ctx.Elements to the allowed kart set, mirroring
// KartFilter::apply.
func (f *KartFilter) Apply(ctx *Context) {
	if f.IsPlaceholder() {
		return
	}
	result := make(map[string]struct{})
	for s := range ctx.Elements {
		_, forbidden := f.forbiddenKarts[s]
		_, allowed := f.allowedKarts[s]
		if forbidden {
			continue
		}
		if allowed || (f.allowUnspecified && len(f.allowedKarts) == 0) {
			result[s] = struct{}{}
		}
	}
	if f.pickRandom && len(result) > 0 {
		names := make([]string, 0, len(result))
		for s := range result {
			names = append(names, s)
		}
		sort.Strings(names)
		pick := names[rand.IntN(len(names))]
		result = map[string]struct{}{pick: {}}
	}
	ctx.Elements = result
}
