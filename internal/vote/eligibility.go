package vote

// Eligible implements the voter eligibility predicate: validated, not
// a spectator-by-limit, and (in a tournament) the round's votability
// flag matches the peer's role.
func Eligible(validated, spectatorByLimit bool, inTournament, tournamentVotable, isPlayerRole bool) bool {
	if !validated || spectatorByLimit {
		return false
	}
	if inTournament && !tournamentVotable {
		return false
	}
	if inTournament && !isPlayerRole {
		return false
	}
	return true
}
