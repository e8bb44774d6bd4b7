package item

import "math"

// isUnderVirtualPaceSlowdown mirrors isKartUnderVirtualPaceCarSlowdown:
// true while the start-of-race virtual pace car holds, or while a
// restart is in progress and position's gap window hasn't elapsed.
func (p *Policy) isUnderVirtualPaceSlowdown(position int, currentTime int) bool {
	if p.LeaderSection <= -1 && len(p.Sections) > 0 && p.Sections[0].Rules&RuleVirtualPace != 0 {
		return true
	}
	if p.VirtualPaceCode <= -3 {
		restartTime := -(p.VirtualPaceCode + 3)
		gap := p.Sections[p.LeaderSection].VirtualPaceGaps * float64(position)
		restartTime += int(gap)
		if currentTime > restartTime {
			return false
		}
		return true
	}
	return false
}

// IsHitValid implements the blue-flag hit-validity check, grounded on
// ItemPolicy::isHitValid: lapped karts may not damage or
// be damaged by the leader's section unless the hit is a clean
// same-lap hit, or a plausible across-the-line hit one lap apart.
func (p *Policy) IsHitValid(senderDistance, senderLap float64, senderPosition int, recvDistance, recvLap float64, recvPosition int, trackLength float64, currentTime int) bool {
	if p.LeaderSection <= -1 {
		return true
	}
	if p.Sections[p.LeaderSection].Rules&RuleBlueFlags == 0 {
		return true
	}
	if p.isUnderVirtualPaceSlowdown(senderPosition, currentTime) || p.isUnderVirtualPaceSlowdown(recvPosition, currentTime) {
		return false
	}

	distanceNormal := math.Abs(senderDistance - recvDistance)
	distanceComplementary := trackLength - distanceNormal

	acrossFinishLine := false
	forwardsThrow := false
	if distanceComplementary < distanceNormal {
		acrossFinishLine = true
		forwardsThrow = senderDistance > recvDistance
	}

	ratio := distanceNormal / trackLength
	if ratio > 0.45 && ratio < 0.55 {
		acrossFinishLine = false
	}

	switch {
	case acrossFinishLine && forwardsThrow:
		return recvLap-senderLap == 1
	case acrossFinishLine && !forwardsThrow:
		return senderLap-recvLap == 1
	default:
		return senderLap == recvLap
	}
}
