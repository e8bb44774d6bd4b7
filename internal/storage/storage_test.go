package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Options{
		Path:         ":memory:",
		DBVersion:    1,
		ServerUID:    "unittest",
		StoreResults: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreCreatesTablesAndAllowsLastHostIDQuery(t *testing.T) {
	s := newTestStore(t)
	id, err := s.LastHostID()
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)
}

func TestRecordConnectionAndDisconnectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordConnection(ConnectionStat{
		HostID: 7, IP: 1234, Port: 4242, OnlineID: 55,
		Username: "alice", PlayerNum: 1, Version: "1.4", OS: "linux",
	})
	require.NoError(t, err)

	id, err := s.LastHostID()
	require.NoError(t, err)
	require.Equal(t, uint32(7), id)

	require.NoError(t, s.RecordDisconnect(7, 30, 2))
	require.NoError(t, s.MarkStaleConnectionsDisconnected())
}

func TestRecordResultNoopWhenStoreResultsDisabled(t *testing.T) {
	s, err := NewStore(Options{Path: ":memory:", DBVersion: 1, ServerUID: "nostore", StoreResults: false})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RecordResult(RaceResult{Username: "bob", Result: 61.2}))
}

func TestRecordResultInsertsWhenEnabled(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordResult(RaceResult{
		Venue: "zen_garden", Mode: "normal-race", Username: "carl",
		Result: 88.4, Kart: "tux", StartPos: 1,
	})
	require.NoError(t, err)
}

func TestWriteReportInsertsRow(t *testing.T) {
	s := newTestStore(t)
	err := s.WriteReport(Report{
		ServerUID: "unittest", ReporterOnlineID: 1, ReporterUsername: "alice",
		Info: "being rude", ReportingOnlineID: 2, ReportingUsername: "dave",
	})
	require.NoError(t, err)
}

func TestIPBansForReturnsEmptyWithoutConfiguredTable(t *testing.T) {
	s := newTestStore(t)
	bans, err := s.IPBansFor(12345)
	require.NoError(t, err)
	require.Empty(t, bans)
}

func TestIPv6BansForReturnsEmptyWithoutConfiguredTable(t *testing.T) {
	s := newTestStore(t)
	bans, err := s.IPv6BansFor("2001:db8::1")
	require.NoError(t, err)
	require.Empty(t, bans)
}

func TestIPBanLifecycleWithConfiguredTable(t *testing.T) {
	s, err := NewStore(Options{
		Path: ":memory:", DBVersion: 1, ServerUID: "banned", IPBanTable: "ip_bans",
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`CREATE TABLE ip_bans (
		ip_start INTEGER, ip_end INTEGER, reason TEXT, description TEXT,
		starting_time TIMESTAMP DEFAULT '2000-01-01', expired_days INTEGER DEFAULT NULL,
		trigger_count INTEGER DEFAULT 0, last_trigger TIMESTAMP
	);`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO ip_bans (ip_start, ip_end, reason, description)
		VALUES (100, 200, "cheating", "repeat offender");`)
	require.NoError(t, err)

	bans, err := s.IPBansFor(150)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	require.Equal(t, "cheating", bans[0].Reason)

	require.NoError(t, s.IncreaseIPBanTriggerCount(100, 200))
}

func TestIP2CountryResolvesFromCountriesTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(`ALTER TABLE ` + s.countriesTable + ` ADD COLUMN ip_start INTEGER;`)
	require.NoError(t, err)
	_, err = s.db.Exec(`ALTER TABLE ` + s.countriesTable + ` ADD COLUMN ip_end INTEGER;`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO ` + s.countriesTable + ` (country_code, country_flag, country_name, ip_start, ip_end)
		VALUES ("fr", "FR", "France", 1000, 2000);`)
	require.NoError(t, err)

	code, err := s.IP2Country(1500)
	require.NoError(t, err)
	require.Equal(t, "fr", code)

	code, err = s.IP2Country(9999)
	require.NoError(t, err)
	require.Equal(t, "", code)
}

func TestUpperIPv6PacksAddressDeterministically(t *testing.T) {
	a := upperIPv6("2001:db8::1")
	b := upperIPv6("2001:db8::1")
	require.Equal(t, a, b)
	require.NotZero(t, a)
	require.Zero(t, upperIPv6("not-an-address"))
	require.Zero(t, upperIPv6("127.0.0.1"))
}

func TestInsideIPv6CIDRDetectsContainment(t *testing.T) {
	require.True(t, insideIPv6CIDR("2001:db8::/32", "2001:db8::1"))
	require.False(t, insideIPv6CIDR("2001:db8::/32", "2001:dead::1"))
	require.False(t, insideIPv6CIDR("not-a-cidr", "2001:db8::1"))
}
