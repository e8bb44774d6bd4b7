package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackFilterAllowsOnlyNamedTracks(t *testing.T) {
	f := NewTrackFilter("zen_garden hacienda")
	ctx := NewContext([]string{"zen_garden", "hacienda", "snowtuxpeak"}, 2)
	f.Apply(ctx)
	_, hasZen := ctx.Elements["zen_garden"]
	_, hasSnow := ctx.Elements["snowtuxpeak"]
	require.True(t, hasZen)
	require.False(t, hasSnow)
}

func TestTrackFilterNotExcludesNamedTracks(t *testing.T) {
	f := NewTrackFilter("not hacienda")
	ctx := NewContext([]string{"zen_garden", "hacienda"}, 2)
	f.Apply(ctx)
	_, hasHacienda := ctx.Elements["hacienda"]
	_, hasZen := ctx.Elements["zen_garden"]
	require.False(t, hasHacienda)
	require.True(t, hasZen)
}

func TestTrackFilterOfficialExcludesAddons(t *testing.T) {
	f := NewTrackFilter("official")
	ctx := NewContext([]string{"zen_garden", "addon_foo"}, 2)
	f.Apply(ctx)
	_, hasAddon := ctx.Elements["addon_foo"]
	_, hasOfficial := ctx.Elements["zen_garden"]
	require.False(t, hasAddon)
	require.True(t, hasOfficial)
}

func TestTrackFilterMaxPlayersExcludesTooBigLobby(t *testing.T) {
	f := NewTrackFilter("zen_garden:2")
	ctx := NewContext([]string{"zen_garden"}, 4)
	f.Apply(ctx)
	require.Empty(t, ctx.Elements)
}

func TestTrackFilterRandomLimitsCount(t *testing.T) {
	f := NewTrackFilter("random 1")
	ctx := NewContext([]string{"a", "b", "c", "d"}, 2)
	f.Apply(ctx)
	require.Len(t, ctx.Elements, 1)
}

func TestTrackFilterWildcardAllowed(t *testing.T) {
	f := NewTrackFilter("%0")
	ctx := NewContext([]string{"zen_garden", "hacienda"}, 2)
	ctx.Wildcards = []string{"zen_garden"}
	f.Apply(ctx)
	_, hasZen := ctx.Elements["zen_garden"]
	_, hasHacienda := ctx.Elements["hacienda"]
	require.True(t, hasZen)
	require.False(t, hasHacienda)
}

func TestTrackFilterPlaceholderIsNoop(t *testing.T) {
	f := NewTrackFilter(PlaceholderString)
	ctx := NewContext([]string{"a", "b"}, 2)
	f.Apply(ctx)
	require.Len(t, ctx.Elements, 2)
	require.True(t, f.IsPlaceholder())
}

func TestKartFilterRestrictsToAllowedSet(t *testing.T) {
	f := NewKartFilter("tux nolok")
	ctx := NewContext([]string{"tux", "nolok", "gnu"}, 2)
	f.Apply(ctx)
	_, hasGnu := ctx.Elements["gnu"]
	_, hasTux := ctx.Elements["tux"]
	require.False(t, hasGnu)
	require.True(t, hasTux)
}

func TestKartFilterIgnoreMarksIgnoresPlayersInput(t *testing.T) {
	f := NewKartFilter("ignore tux")
	require.True(t, f.IgnoresPlayersInput())
}

func TestSplitQuotedRespectsBraces(t *testing.T) {
	out := SplitQuoted("a {b c} d", ' ', '{', '}')
	require.Equal(t, []string{"a", "b c", "d"}, out)
}

func TestQueuesLoadAndPopOneTimeThenCyclic(t *testing.T) {
	q := NewQueues()
	q.LoadTracksFromConfig("zen_garden hacienda", "snowtuxpeak", "", "")
	require.Len(t, q.OnetimeTracksQueue(), 2)
	require.Len(t, q.CyclicTracksQueue(), 3) // 2 placeholders + 1 cyclic entry

	q.PopOnRaceFinished()
	require.Len(t, q.OnetimeTracksQueue(), 1)
	// first cyclic entry was a placeholder, dropped without re-enqueue
	require.Len(t, q.CyclicTracksQueue(), 2)
}

func TestQueuesCyclicReEnqueuesNonPlaceholder(t *testing.T) {
	q := NewQueues()
	q.LoadTracksFromConfig("", "zen_garden hacienda", "", "")
	require.Len(t, q.CyclicTracksQueue(), 2)
	front := q.CyclicTracksQueue()[0].InitialString()
	q.PopOnRaceFinished()
	require.Len(t, q.CyclicTracksQueue(), 2)
	require.Equal(t, front, q.CyclicTracksQueue()[len(q.CyclicTracksQueue())-1].InitialString())
}

func TestQueuesResetToDefaultSettingsPreservesNamedQueues(t *testing.T) {
	q := NewQueues()
	q.LoadTracksFromConfig("zen_garden", "hacienda", "tux", "nolok")
	q.ResetToDefaultSettings(map[string]struct{}{"queue": {}})
	require.Len(t, q.OnetimeTracksQueue(), 1)
	require.Empty(t, q.CyclicTracksQueue())
	require.Empty(t, q.OnetimeKartsQueue())
}

func TestQueuesAreKartFiltersIgnoringKarts(t *testing.T) {
	q := NewQueues()
	q.LoadTracksFromConfig("", "", "ignore tux", "")
	require.True(t, q.AreKartFiltersIgnoringKarts())
}
