package lobby

import (
	"math/rand/v2"
	"time"

	"stklobby/internal/assets"
	"stklobby/internal/gp"
	"stklobby/internal/item"
	"stklobby/internal/packet"
	"stklobby/internal/ranking"
	"stklobby/internal/team"
	"stklobby/internal/tyre"
)

// StartSafetyMargin pads the computed simultaneous-start instant
// beyond max(client_RTT/2) to absorb scheduling jitter.
const StartSafetyMargin = 250 * time.Millisecond

// HandleWorldLoaded records hostID's world-loaded acknowledgement and,
// once every participating peer has acked, computes the deterministic
// start instant and broadcasts StartGame.
func (l *Lobby) HandleWorldLoaded(hostID uint32, msg *packet.WorldLoaded) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != WaitForWorldLoaded || l.match == nil {
		return
	}
	if _, playing := l.match.playing[hostID]; !playing {
		return
	}
	l.match.worldLoadedAcks[hostID] = struct{}{}
	if msg != nil {
		if peer, ok := l.Sessions.Get(hostID); ok {
			peer.PingMs = float64(msg.ClientRTTMillis)
		}
	}

	if len(l.match.worldLoadedAcks) < len(l.match.playing) {
		return
	}
	l.beginRaceLocked()
}

// beginRaceLocked computes T_start and transitions to
// WAIT_FOR_RACE_STARTED; caller must hold l.mu and have already
// verified every expected peer has acked.
func (l *Lobby) beginRaceLocked() {
	var maxRTT time.Duration
	for hostID := range l.match.worldLoadedAcks {
		peer, ok := l.Sessions.Get(hostID)
		if !ok {
			continue
		}
		half := time.Duration(peer.PingMs/2) * time.Millisecond
		if half > maxRTT {
			maxRTT = half
		}
	}

	startTime := time.Now().Add(maxRTT).Add(StartSafetyMargin)
	l.match.startTime = startTime

	l.setState(WaitForRaceStarted)
	l.send.broadcast(&packet.StartGame{
		StartTimeUnixNano: startTime.UnixNano(),
		CheckCount:        uint32(len(l.match.playing)),
	})
	l.publishAdminEvent("state-change", l.state.String())
}

// BeginRacing transitions WAIT_FOR_RACE_STARTED -> RACING once the
// scheduled start instant has arrived; the tick loop calls this.
func (l *Lobby) BeginRacing(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != WaitForRaceStarted || l.match == nil {
		return
	}
	if now.Before(l.match.startTime) {
		return
	}
	l.setState(Racing)
	l.publishAdminEvent("state-change", l.state.String())
}

// FinishCriterion identifies which finish-detection rule ended the
// race.
type FinishCriterion int

const (
	FinishNone FinishCriterion = iota
	FinishLastKartCrossed
	FinishTimeLimitExpired
	FinishValueLimitReached
)

// ReportFinish records hostID's finish (score/overall time); position
// is assigned in call order (1-based). The
// caller's physics loop supplies fastestLap as 0 when hostID set no
// personal-best lap this race.
func (l *Lobby) ReportFinish(hostID uint32, raceTime, fastestLap float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Racing || l.match == nil {
		return
	}
	peer, ok := l.Sessions.Get(hostID)
	if !ok {
		return
	}
	name := peer.MainProfileNameOr("")
	var disqualified bool
	if k, ok := l.match.karts[hostID]; ok {
		k.Tyres.CommandEnd()
		disqualified = k.Tyres.Disqualified
	}
	l.match.finishOrder = append(l.match.finishOrder, finishEntry{
		HostID:       hostID,
		PlayerName:   name,
		Team:         teamColorName(l.Teams.Team(name)),
		Position:     len(l.match.finishOrder) + 1,
		Time:         raceTime,
		FastestLap:   fastestLap,
		HasLap:       fastestLap > 0,
		Disqualified: disqualified,
	})
}

// ApplyTyreDegradation advances hostID's tyre/fuel wear by one tick;
// the caller's physics loop owns kart motion and drives this every
// simulation step.
func (l *Lobby) ApplyTyreDegradation(hostID uint32, motion tyre.KartMotion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Racing || l.match == nil {
		return
	}
	if k, ok := l.match.karts[hostID]; ok {
		k.Tyres.ComputeDegradation(motion)
	}
}

// ApplyTyreCrashPenalty applies hostID's crash wear penalty.
func (l *Lobby) ApplyTyreCrashPenalty(hostID uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil {
		return
	}
	if k, ok := l.match.karts[hostID]; ok {
		k.Tyres.ApplyCrashPenalty()
	}
}

// RequestPitStop performs hostID's pit stop: compound==tyre.RefuelOnlyCompound
// refuels without a tyre change, compound==0 picks a compound at
// random, and any other value selects that compound (wrapping modulo
// the compound count). ok is false if hostID has no live kart state.
func (l *Lobby) RequestPitStop(hostID uint32, compound int) (result tyre.ChangeResult, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil {
		return tyre.ChangeResult{}, false
	}
	k, found := l.match.karts[hostID]
	if !found {
		return tyre.ChangeResult{}, false
	}
	return k.Tyres.CommandChange(compound, func(numCompounds int) int {
		return rand.IntN(numCompounds) + 1
	}), true
}

// CommandLap advances hostID's tyre stint lap counter and reapplies
// the item policy's per-lap handout rules for its current section.
func (l *Lobby) CommandLap(hostID uint32, currentLap, totalLaps int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil {
		return
	}
	k, ok := l.match.karts[hostID]
	if !ok {
		return
	}
	k.Tyres.CommandLap()
	if l.match.itemPolicy == nil {
		return
	}
	if _, next, err := l.match.itemPolicy.ApplyRules(k.Items, currentLap, totalLaps); err == nil {
		next.LastLapAmount = next.Amount
		k.Items = next
	}
}

// CheckItemHitValid reports whether an item hit between two karts is
// valid under the race's blue-flag rules.
func (l *Lobby) CheckItemHitValid(senderDistance, senderLap float64, senderPosition int, recvDistance, recvLap float64, recvPosition int, trackLength float64, currentTime int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil || l.match.itemPolicy == nil {
		return true
	}
	return l.match.itemPolicy.IsHitValid(senderDistance, senderLap, senderPosition, recvDistance, recvLap, recvPosition, trackLength, currentTime)
}

// ticksPerSecond is the fixed-rate conversion the item policy's time-
// to-ticks bookkeeping uses; the server's stepped physics clock is the
// single source of truth for this in the original game.
const ticksPerSecond = 60.0

func secondsToTicks(seconds float64) int { return int(seconds * ticksPerSecond) }

// EnforceVirtualPaceCarRules computes the slowdown command to apply to
// the kart in position for the current tick.
func (l *Lobby) EnforceVirtualPaceCarRules(position int, isLastPlace bool, currentTime int) item.SlowdownCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil || l.match.itemPolicy == nil {
		return item.SlowdownCommand{}
	}
	return l.match.itemPolicy.EnforceVirtualPaceCarRulesForKart(position, isLastPlace, currentTime, secondsToTicks)
}

// CheckAndApplyVirtualPaceCarRules arms or advances a virtual-pace-car
// restart for the kart in position, mirroring the leader-triggered
// staggered restart the item policy drives at a section boundary.
func (l *Lobby) CheckAndApplyVirtualPaceCarRules(position, kartSection, finishedLaps, numberOfKarts, currentTime int) item.SlowdownCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.match == nil || l.match.itemPolicy == nil {
		return item.SlowdownCommand{}
	}
	return l.match.itemPolicy.CheckAndApplyVirtualPaceCarRules(position, kartSection, finishedLaps, numberOfKarts, currentTime, secondsToTicks)
}

func teamColorName(c team.Color) string {
	switch c {
	case team.ColorRed:
		return "red"
	case team.ColorBlue:
		return "blue"
	default:
		return ""
	}
}

// CheckFinish evaluates the three finish criteria and, if one holds,
// transitions RACING -> WAIT_FOR_RACE_STOPPED -> RESULT_DISPLAY
// and broadcasts RaceFinished. remainingKarts is the count of
// non-eliminated karts still on track (supplied by the caller's
// physics loop, which owns kart position state); timeLimit/valueLimit
// are the configured limits for this match (0 disables the
// corresponding check); valueCount is the current hit/capture/goal
// tally.
func (l *Lobby) CheckFinish(now time.Time, remainingKarts int, timeLimit float64, valueLimit, valueCount int) FinishCriterion {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Racing || l.match == nil {
		return FinishNone
	}

	var crit FinishCriterion
	switch {
	case remainingKarts <= 1 && len(l.match.finishOrder) > 0:
		crit = FinishLastKartCrossed
	case timeLimit > 0 && now.Sub(l.match.startTime).Seconds() >= timeLimit:
		crit = FinishTimeLimitExpired
	case valueLimit > 0 && valueCount >= valueLimit:
		crit = FinishValueLimitReached
	default:
		return FinishNone
	}

	l.finishRaceLocked()
	return crit
}

// finishRaceLocked broadcasts RaceFinished and starts the result-
// display ack window; caller must hold l.mu.
func (l *Lobby) finishRaceLocked() {
	l.setState(WaitForRaceStopped)

	var fastestName string
	var fastestTime float64
	for _, e := range l.match.finishOrder {
		if e.HasLap && (fastestTime == 0 || e.FastestLap < fastestTime) {
			fastestTime, fastestName = e.FastestLap, e.PlayerName
		}
	}

	var pointChanges []packet.PointChange
	if l.GP != nil {
		pointChanges = l.applyGPResultsLocked(fastestName)
	}

	eliminatedNames := map[string]bool{}
	if l.Elimination.IsEnabled() {
		times := make(map[string]float64, len(l.match.finishOrder))
		for _, e := range l.match.finishOrder {
			times[e.PlayerName] = e.Time
		}
		eliminated := l.Elimination.OnRaceFinished(times)
		for _, name := range eliminated {
			eliminatedNames[name] = true
		}
		if len(eliminated) > 0 {
			l.log.Info().Strs("eliminated", eliminated).Msg("kart elimination round resolved")
		}
	}

	if l.cfg.Server.Ranked {
		l.applyRankingLocked(eliminatedNames)
	}

	l.Queues.PopOnRaceFinished()

	l.setState(ResultDisplay)
	l.match.raceFinishedAcks = map[uint32]struct{}{}
	l.match.raceFinishedAckDeadline = time.Now().Add(time.Duration(l.cfg.Server.Timeouts.ResultSeconds * float64(time.Second)))

	l.send.broadcast(&packet.RaceFinished{
		HasFastestLap:     fastestName != "",
		FastestLapSeconds: float32(fastestTime),
		FastestKartName:   fastestName,
		HasGPScores:       l.GP != nil,
		PointChanges:      pointChanges,
	})
	l.publishAdminEvent("race-finished", fastestName)
}

// applyGPResultsLocked feeds this race's finish order into the GP
// manager and diffs the before/after standings into the per-player
// PointChanges a RaceFinished packet carries; caller must hold l.mu
// and have confirmed l.GP != nil.
func (l *Lobby) applyGPResultsLocked(fastestName string) []packet.PointChange {
	before := make(map[string]gp.Entry, len(l.match.finishOrder))
	for _, e := range l.GP.Standings() {
		before[e.PlayerName] = e
	}

	results := make([]gp.RaceResult, 0, len(l.match.finishOrder))
	for _, e := range l.match.finishOrder {
		results = append(results, gp.RaceResult{
			PlayerName: e.PlayerName,
			Team:       e.Team,
			Position:   e.Position,
			Time:       e.Time,
			FastestLap: e.PlayerName == fastestName,
			Pole:       false,
		})
	}
	l.GP.ProcessRace(results)

	nameToHostID := make(map[string]uint32, len(l.match.finishOrder))
	for _, e := range l.match.finishOrder {
		nameToHostID[e.PlayerName] = e.HostID
	}

	changes := make([]packet.PointChange, 0, len(l.match.finishOrder))
	for _, after := range l.GP.Standings() {
		hostID, ok := nameToHostID[after.PlayerName]
		if !ok {
			continue
		}
		prev := before[after.PlayerName]
		changes = append(changes, packet.PointChange{
			HostID:     hostID,
			PointDelta: int32(after.Points - prev.Points),
			NewPoints:  int32(after.Points),
			NewTime:    float32(after.AccumulatedTime),
		})
	}
	return changes
}

// applyRankingLocked folds this race's finish order into every
// participant's persistent rating record; caller must hold l.mu and
// have confirmed cfg.Server.Ranked.
func (l *Lobby) applyRankingLocked(eliminated map[string]bool) {
	entries := make([]ranking.RaceEntry, len(l.match.finishOrder))
	for i, e := range l.match.finishOrder {
		state, ok := l.Rankings[e.PlayerName]
		if !ok {
			state = ranking.NewPlayerState()
		}
		entries[i] = ranking.RaceEntry{
			State:        state,
			IsEliminated: eliminated[e.PlayerName],
			Time:         e.Time,
		}
	}

	updated := ranking.UpdateState(entries, l.cfg.Mode == assets.ModeTimeTrial)
	for i, e := range l.match.finishOrder {
		l.Rankings[e.PlayerName] = updated[i]
	}
}

// RankingFor returns a player's persistent rating record, if known.
func (l *Lobby) RankingFor(playerName string) (ranking.PlayerState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.Rankings[playerName]
	return state, ok
}

// HandleRaceFinishedAck records hostID's result-display acknowledgement.
func (l *Lobby) HandleRaceFinishedAck(hostID uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != ResultDisplay || l.match == nil {
		return
	}
	l.match.raceFinishedAcks[hostID] = struct{}{}
}

// AllAcksReceivedOrTimedOut reports whether every playing peer has
// acked RaceFinished, or the ack deadline has passed: a peer that
// stops responding during result display counts as acked after the
// deadline.
func (l *Lobby) AllAcksReceivedOrTimedOut(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != ResultDisplay || l.match == nil {
		return false
	}
	if now.After(l.match.raceFinishedAckDeadline) {
		return true
	}
	return len(l.match.raceFinishedAcks) >= len(l.match.playing)
}
