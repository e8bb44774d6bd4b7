// Package storage implements SQLite persistence for connection stats,
// race results, IP/online-id bans and player reports, mirroring
// DatabaseConnector's table layout and query surface.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store owns the SQLite handle and the versioned table names derived
// from the server UID, mirroring DatabaseConnector's m_server_stats_table
// / m_results_table_name bookkeeping.
type Store struct {
	db *sql.DB

	statsTable     string
	countriesTable string
	resultsTable   string
	ipBanTable     string
	ipv6BanTable   string
	onlineBanTable string
	reportsTable   string

	storeResults  bool
	ipv6Enabled   bool
	ipBanExists   bool
	ipv6BanExists bool
	onlineBanOK   bool
}

// Options configures NewStore.
type Options struct {
	Path          string // "" or ":memory:" for an in-memory database
	DBVersion     int
	ServerUID     string
	IPv6Enabled   bool
	StoreResults  bool
	IPBanTable    string // empty disables IPv4 ban checks
	IPv6BanTable  string // empty disables IPv6 ban checks
	OnlineIDTable string // empty disables online-id ban checks
}

// NewStore opens (creating if needed) the SQLite database at opts.Path,
// registers the upperIPv6/insideIPv6CIDR scalar functions, and creates
// the versioned stats/countries/results tables, mirroring
// DatabaseConnector::initServerStatsTable.
func NewStore(opts Options) (*Store, error) {
	if err := registerSQLFunctions(); err != nil {
		return nil, errors.Wrap(err, "registering sqlite scalar functions")
	}

	path := opts.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}

	prefix := fmt.Sprintf("v%d_%s", opts.DBVersion, opts.ServerUID)
	s := &Store{
		db:             db,
		statsTable:     prefix + "_stats",
		countriesTable: fmt.Sprintf("v%d_countries", opts.DBVersion),
		resultsTable:   prefix + "_results",
		ipBanTable:     opts.IPBanTable,
		ipv6BanTable:   opts.IPv6BanTable,
		onlineBanTable: opts.OnlineIDTable,
		storeResults:   opts.StoreResults,
		ipv6Enabled:    opts.IPv6Enabled,
		ipBanExists:    opts.IPBanTable != "",
		ipv6BanExists:  opts.IPv6BanTable != "",
		onlineBanOK:    opts.OnlineIDTable != "",
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	ipv6Col := ""
	if s.ipv6Enabled {
		ipv6Col = "ipv6 TEXT NOT NULL DEFAULT '',"
	}
	statsSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		host_id INTEGER NOT NULL PRIMARY KEY,
		ip INTEGER NOT NULL,
		%s
		port INTEGER NOT NULL,
		online_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		player_num INTEGER NOT NULL,
		country_code TEXT DEFAULT NULL,
		version TEXT NOT NULL,
		os TEXT NOT NULL,
		connected_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		disconnected_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ping INTEGER NOT NULL DEFAULT 0,
		packet_loss INTEGER NOT NULL DEFAULT 0,
		addon_karts_count INTEGER NOT NULL DEFAULT -1,
		addon_tracks_count INTEGER NOT NULL DEFAULT -1,
		addon_arenas_count INTEGER NOT NULL DEFAULT -1,
		addon_soccers_count INTEGER NOT NULL DEFAULT -1
	);`, s.statsTable, ipv6Col)
	if _, err := s.db.Exec(statsSchema); err != nil {
		return errors.Wrap(err, "creating stats table")
	}

	countriesSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		country_code TEXT NOT NULL PRIMARY KEY,
		country_flag TEXT NOT NULL,
		country_name TEXT NOT NULL
	);`, s.countriesTable)
	if _, err := s.db.Exec(countriesSchema); err != nil {
		return errors.Wrap(err, "creating countries table")
	}

	if s.storeResults {
		resultsSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			venue TEXT NOT NULL DEFAULT '',
			reverse TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			value_limit INTEGER NOT NULL DEFAULT 0,
			time_limit REAL NOT NULL DEFAULT 0,
			difficulty INTEGER DEFAULT -1,
			config TEXT DEFAULT '',
			items TEXT DEFAULT '',
			flag_return_timeout INTEGER DEFAULT 0,
			flag_deactivated_time INTEGER DEFAULT 0,
			visible INTEGER DEFAULT 1,
			username TEXT NOT NULL DEFAULT '',
			result REAL NOT NULL,
			kart TEXT DEFAULT '',
			kart_class TEXT DEFAULT '',
			kart_color REAL DEFAULT 0,
			team INTEGER DEFAULT -1,
			handicap INTEGER DEFAULT -1,
			start_pos INTEGER DEFAULT -1,
			fastest_lap REAL DEFAULT -1,
			sog_time REAL DEFAULT -1,
			online_id INTEGER DEFAULT -1,
			country_code TEXT DEFAULT '',
			is_autofinish INTEGER DEFAULT 0,
			is_not_full INTEGER DEFAULT 0,
			game_duration REAL DEFAULT -1,
			when_joined REAL DEFAULT -1,
			when_left REAL DEFAULT -1,
			game_event INTEGER DEFAULT 0,
			other_info TEXT DEFAULT ''
		);`, s.resultsTable)
		if _, err := s.db.Exec(resultsSchema); err != nil {
			return errors.Wrap(err, "creating results table")
		}
	}

	reportsSchema := `CREATE TABLE IF NOT EXISTS player_reports (
		server_uid TEXT NOT NULL,
		reporter_ip INTEGER NOT NULL DEFAULT 0,
		reporter_ipv6 TEXT NOT NULL DEFAULT '',
		reporter_online_id INTEGER NOT NULL DEFAULT 0,
		reporter_username TEXT NOT NULL DEFAULT '',
		info TEXT NOT NULL DEFAULT '',
		reporting_ip INTEGER NOT NULL DEFAULT 0,
		reporting_ipv6 TEXT NOT NULL DEFAULT '',
		reporting_online_id INTEGER NOT NULL DEFAULT 0,
		reporting_username TEXT NOT NULL DEFAULT '',
		time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(reportsSchema); err != nil {
		return errors.Wrap(err, "creating reports table")
	}
	s.reportsTable = "player_reports"

	return nil
}

// ConnectionStat is one row of the stats table, recorded on peer
// connect and updated on disconnect.
type ConnectionStat struct {
	HostID            uint32
	IP                uint32
	IPv6              string
	Port              uint16
	OnlineID          uint32
	Username          string
	PlayerNum         int
	CountryCode       string
	Version           string
	OS                string
	Ping              uint32
	PacketLoss        int
	AddonKartsCount   int
	AddonTracksCount  int
	AddonArenasCount  int
	AddonSoccersCount int
}

// RecordConnection inserts a new stats row for a connecting peer,
// mirroring DatabaseConnector's stats insertion on STKPeer connect.
func (s *Store) RecordConnection(stat ConnectionStat) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(host_id, ip, %s port, online_id, username, player_num, country_code,
		 version, os, ping, addon_karts_count, addon_tracks_count,
		 addon_arenas_count, addon_soccers_count)
		VALUES (?, ?, %s ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		s.statsTable, ipv6ColName(s.ipv6Enabled), ipv6Placeholder(s.ipv6Enabled))

	args := []any{stat.HostID, stat.IP}
	if s.ipv6Enabled {
		args = append(args, stat.IPv6)
	}
	args = append(args, stat.Port, stat.OnlineID, stat.Username, stat.PlayerNum,
		stat.CountryCode, stat.Version, stat.OS, stat.Ping, stat.AddonKartsCount,
		stat.AddonTracksCount, stat.AddonArenasCount, stat.AddonSoccersCount)

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "recording connection stat")
	}
	return nil
}

func ipv6ColName(enabled bool) string {
	if enabled {
		return "ipv6,"
	}
	return ""
}

func ipv6Placeholder(enabled bool) string {
	if enabled {
		return "?,"
	}
	return ""
}

// RecordDisconnect sets disconnected_time and ping/packet_loss for a
// host that is leaving, mirroring the UPDATE performed on STKPeer
// disconnect.
func (s *Store) RecordDisconnect(hostID uint32, ping uint32, packetLoss int) error {
	query := fmt.Sprintf(`UPDATE %s SET disconnected_time = CURRENT_TIMESTAMP,
		ping = ?, packet_loss = ? WHERE host_id = ?;`, s.statsTable)
	if _, err := s.db.Exec(query, ping, packetLoss, hostID); err != nil {
		return errors.Wrap(err, "recording disconnect")
	}
	return nil
}

// MarkStaleConnectionsDisconnected closes any stats rows left open by
// a prior crash, mirroring initServerStatsTable's startup cleanup
// UPDATE.
func (s *Store) MarkStaleConnectionsDisconnected() error {
	query := fmt.Sprintf(`UPDATE %s SET disconnected_time = CURRENT_TIMESTAMP
		WHERE connected_time = disconnected_time;`, s.statsTable)
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(err, "marking stale connections disconnected")
	}
	return nil
}

// LastHostID returns the highest host_id ever recorded, used to seed
// the next session's host id counter (STKHost::setNextHostId).
func (s *Store) LastHostID() (uint32, error) {
	query := fmt.Sprintf("SELECT MAX(host_id) FROM %s;", s.statsTable)
	var id sql.NullInt64
	if err := s.db.QueryRow(query).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "reading last host id")
	}
	return uint32(id.Int64), nil
}

// RaceResult is one row of the results table, recorded after a race
// or soccer/CTF game finishes.
type RaceResult struct {
	Venue       string
	Reverse     string
	Mode        string
	ValueLimit  int
	TimeLimit   float64
	Difficulty  int
	Username    string
	Result      float64
	Kart        string
	KartClass   string
	KartColor   float64
	Team        int
	Handicap    int
	StartPos    int
	FastestLap  float64
	OnlineID    int
	CountryCode string
	IsAutoFinish bool
	GameDuration float64
}

// RecordResult inserts a race/game result row. It is a no-op (and
// returns nil) when the store was configured with StoreResults=false,
// mirroring DatabaseConnector's ServerConfig::m_store_results guard.
func (s *Store) RecordResult(r RaceResult) error {
	if !s.storeResults {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(venue, reverse, mode, value_limit, time_limit, difficulty, username,
		 result, kart, kart_class, kart_color, team, handicap, start_pos,
		 fastest_lap, online_id, country_code, is_autofinish, game_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		s.resultsTable)
	autofinish := 0
	if r.IsAutoFinish {
		autofinish = 1
	}
	_, err := s.db.Exec(query, r.Venue, r.Reverse, r.Mode, r.ValueLimit,
		r.TimeLimit, r.Difficulty, r.Username, r.Result, r.Kart, r.KartClass,
		r.KartColor, r.Team, r.Handicap, r.StartPos, r.FastestLap, r.OnlineID,
		r.CountryCode, autofinish, r.GameDuration)
	if err != nil {
		return errors.Wrap(err, "recording race result")
	}
	return nil
}

// Report is one entry in the player-reports table, written when one
// player reports another.
type Report struct {
	ServerUID          string
	ReporterIP         uint32
	ReporterIPv6       string
	ReporterOnlineID   uint32
	ReporterUsername   string
	Info               string
	ReportingIP        uint32
	ReportingIPv6      string
	ReportingOnlineID  uint32
	ReportingUsername  string
}

// WriteReport inserts a player report, mirroring
// DatabaseConnector::writeReport.
func (s *Store) WriteReport(r Report) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(server_uid, reporter_ip, reporter_ipv6, reporter_online_id, reporter_username,
		 info, reporting_ip, reporting_ipv6, reporting_online_id, reporting_username)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`, s.reportsTable)
	_, err := s.db.Exec(query, r.ServerUID, r.ReporterIP, r.ReporterIPv6,
		r.ReporterOnlineID, r.ReporterUsername, r.Info, r.ReportingIP,
		r.ReportingIPv6, r.ReportingOnlineID, r.ReportingUsername)
	if err != nil {
		return errors.Wrap(err, "writing report")
	}
	return nil
}

// IPBan is one row of the IPv4 ban range table.
type IPBan struct {
	RowID       int64
	IPStart     uint32
	IPEnd       uint32
	Reason      string
	Description string
}

// IPBansFor returns active IPv4 bans covering ip, or all active bans
// if ip is zero, mirroring DatabaseConnector::getIpBanTableData.
func (s *Store) IPBansFor(ip uint32) ([]IPBan, error) {
	if !s.ipBanExists {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT rowid, ip_start, ip_end, reason, description FROM %s WHERE `,
		s.ipBanTable)
	args := []any{}
	if ip != 0 {
		query += "ip_start <= ? AND ip_end >= ? AND "
		args = append(args, ip, ip)
	}
	query += `datetime('now') > datetime(starting_time) AND
		(expired_days is NULL OR datetime(starting_time, '+'||expired_days||' days') > datetime('now'))`
	if ip != 0 {
		query += " LIMIT 1"
	}
	query += ";"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying ipv4 bans")
	}
	defer rows.Close()

	var out []IPBan
	for rows.Next() {
		var b IPBan
		if err := rows.Scan(&b.RowID, &b.IPStart, &b.IPEnd, &b.Reason, &b.Description); err != nil {
			return nil, errors.Wrap(err, "scanning ipv4 ban row")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IncreaseIPBanTriggerCount records another hit against an IPv4 ban
// range, mirroring DatabaseConnector::increaseIpBanTriggerCount.
func (s *Store) IncreaseIPBanTriggerCount(ipStart, ipEnd uint32) error {
	query := fmt.Sprintf(`UPDATE %s SET trigger_count = trigger_count + 1,
		last_trigger = CURRENT_TIMESTAMP WHERE ip_start = ? AND ip_end = ?;`, s.ipBanTable)
	if _, err := s.db.Exec(query, ipStart, ipEnd); err != nil {
		return errors.Wrap(err, "increasing ipv4 ban trigger count")
	}
	return nil
}

// IPv6Ban is one row of the IPv6 CIDR ban table.
type IPv6Ban struct {
	RowID       int64
	CIDR        string
	Reason      string
	Description string
}

// IPv6BansFor returns active IPv6 bans covering ipv6 (via the
// registered insideIPv6CIDR scalar function), or all active bans if
// ipv6 is empty, mirroring DatabaseConnector::getIpv6BanTableData.
func (s *Store) IPv6BansFor(ipv6 string) ([]IPv6Ban, error) {
	if !s.ipv6BanExists {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT rowid, ipv6_cidr, reason, description FROM %s WHERE `,
		s.ipv6BanTable)
	args := []any{}
	if ipv6 != "" {
		query += "insideIPv6CIDR(ipv6_cidr, ?) = 1 AND "
		args = append(args, ipv6)
	}
	query += `datetime('now') > datetime(starting_time) AND
		(expired_days is NULL OR datetime(starting_time, '+'||expired_days||' days') > datetime('now'))`
	if ipv6 != "" {
		query += " LIMIT 1"
	}
	query += ";"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying ipv6 bans")
	}
	defer rows.Close()

	var out []IPv6Ban
	for rows.Next() {
		var b IPv6Ban
		if err := rows.Scan(&b.RowID, &b.CIDR, &b.Reason, &b.Description); err != nil {
			return nil, errors.Wrap(err, "scanning ipv6 ban row")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IncreaseIPv6BanTriggerCount records another hit against an IPv6
// CIDR ban, mirroring DatabaseConnector::increaseIpv6BanTriggerCount.
func (s *Store) IncreaseIPv6BanTriggerCount(cidr string) error {
	query := fmt.Sprintf(`UPDATE %s SET trigger_count = trigger_count + 1,
		last_trigger = CURRENT_TIMESTAMP WHERE ipv6_cidr = ?;`, s.ipv6BanTable)
	if _, err := s.db.Exec(query, cidr); err != nil {
		return errors.Wrap(err, "increasing ipv6 ban trigger count")
	}
	return nil
}

// OnlineIDBan is one row of the online-account ban table.
type OnlineIDBan struct {
	RowID       int64
	OnlineID    uint32
	Reason      string
	Description string
}

// OnlineIDBansFor returns active bans against onlineID, or all active
// bans if onlineID is zero, mirroring
// DatabaseConnector::getOnlineIdBanTableData.
func (s *Store) OnlineIDBansFor(onlineID uint32) ([]OnlineIDBan, error) {
	if !s.onlineBanOK {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT rowid, online_id, reason, description FROM %s WHERE `,
		s.onlineBanTable)
	args := []any{}
	if onlineID != 0 {
		query += "online_id = ? AND "
		args = append(args, onlineID)
	}
	query += `datetime('now') > datetime(starting_time) AND
		(expired_days is NULL OR datetime(starting_time, '+'||expired_days||' days') > datetime('now'))`
	if onlineID != 0 {
		query += " LIMIT 1"
	}
	query += ";"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying online id bans")
	}
	defer rows.Close()

	var out []OnlineIDBan
	for rows.Next() {
		var b OnlineIDBan
		if err := rows.Scan(&b.RowID, &b.OnlineID, &b.Reason, &b.Description); err != nil {
			return nil, errors.Wrap(err, "scanning online id ban row")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IP2Country resolves the 2-letter country code for an IPv4 decimal
// address using the countries table populated by the server owner,
// mirroring DatabaseConnector::ip2Country.
func (s *Store) IP2Country(ip uint32) (string, error) {
	query := fmt.Sprintf(`SELECT country_code FROM %s WHERE ip_start <= ? AND ip_end >= ?
		ORDER BY ip_start DESC LIMIT 1;`, s.countriesTable)
	var code string
	err := s.db.QueryRow(query, ip, ip).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolving ipv4 country")
	}
	return code, nil
}

// IPv62Country resolves the 2-letter country code for an IPv6 address
// via the registered upperIPv6 scalar function, mirroring
// DatabaseConnector::ipv62Country.
func (s *Store) IPv62Country(ipv6 string) (string, error) {
	query := fmt.Sprintf(`SELECT country_code FROM %s
		WHERE ip_start <= upperIPv6(?) AND ip_end >= upperIPv6(?)
		ORDER BY ip_start DESC LIMIT 1;`, s.countriesTable)
	var code string
	err := s.db.QueryRow(query, ipv6, ipv6).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolving ipv6 country")
	}
	return code, nil
}
