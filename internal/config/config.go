// Package config loads the server's XML configuration file: admission
// thresholds, timeouts, mode/track/kart lists, the fuel/tyre setup, and
// the tournament rules string, grounded on the fields exposed by
// server_configuration_dialog.cpp/hpp.
package config

import (
	"encoding/xml"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FuelSettings mirrors the fuel-related spinners in the server
// configuration dialog (fuel/fuel-stop/fuel-weight/fuel-rate/fuel-regen,
// plus up to three allowed tyre compounds).
type FuelSettings struct {
	Fuel             float64 `xml:"fuel"`
	FuelStop         float64 `xml:"fuel-stop"`
	FuelWeight       float64 `xml:"fuel-weight"`
	FuelRate         float64 `xml:"fuel-rate"`
	FuelRegen        float64 `xml:"fuel-regen"`
	AllowedCompound1 int     `xml:"allowed-compound-1"`
	AllowedCompound2 int     `xml:"allowed-compound-2"`
	AllowedCompound3 int     `xml:"allowed-compound-3"`
}

// AssetThresholds mirrors the join/play admission percentages and
// addon-count caps exposed through the asset manager.
type AssetThresholds struct {
	OfficialKartsJoin  float64 `xml:"official-karts-threshold"`
	OfficialTracksJoin float64 `xml:"official-tracks-threshold"`
	OfficialKartsPlay  float64 `xml:"official-karts-play-threshold"`
	OfficialTracksPlay float64 `xml:"official-tracks-play-threshold"`
	AddonKartsJoin     int     `xml:"max-addon-karts"`
	AddonTracksJoin    int     `xml:"max-addon-tracks"`
	AddonArenasJoin    int     `xml:"max-addon-arenas"`
	AddonSoccersJoin   int     `xml:"max-addon-soccers"`
	AddonKartsPlay     int     `xml:"max-addon-karts-play"`
	AddonTracksPlay    int     `xml:"max-addon-tracks-play"`
	AddonArenasPlay    int     `xml:"max-addon-arenas-play"`
	AddonSoccersPlay   int     `xml:"max-addon-soccers-play"`
}

// TimeoutSettings mirrors the lobby's assorted timers.
type TimeoutSettings struct {
	ServerOwnerLessSeconds float64 `xml:"server-owner-less-timeout"`
	VotingSeconds          float64 `xml:"voting-timeout"`
	ResultSeconds          float64 `xml:"result-screen-timeout"`
	IdleSeconds            float64 `xml:"idle-timeout"`
	KickIdlePlayerSeconds  float64 `xml:"kick-idle-player-seconds"`
}

// StorageSettings controls the optional SQLite persistence layer.
type StorageSettings struct {
	Enabled       bool   `xml:"sql-management"`
	Path          string `xml:"database-path"`
	DBVersion     int    `xml:"server-db-version"`
	StoreResults  bool   `xml:"store-results"`
	IPv6Enabled   bool   `xml:"ipv6-connection"`
	IPBanTable    string `xml:"ip-ban-table"`
	IPv6BanTable  string `xml:"ipv6-ban-table"`
	OnlineIDTable string `xml:"online-id-ban-table"`
}

// ServerConfig is the root of the XML configuration document: every
// field that is expressed textually rather than passed on the CLI --
// thresholds, timeouts, mode lists, and the tournament rules string.
type ServerConfig struct {
	XMLName xml.Name `xml:"server-config"`

	ServerUID     string `xml:"server-uid"`
	ServerName    string `xml:"server-name"`
	MaxPlayers    int    `xml:"max-players"`
	Mode          string `xml:"mode"`
	Difficulty    int    `xml:"difficulty"`
	Password      string `xml:"password"`
	PublicAddress string `xml:"public-address"`

	OnetimeTracks      string `xml:"tracks"`
	CyclicTracks       string `xml:"cyclic-tracks"`
	OnetimeKarts       string `xml:"karts"`
	CyclicKarts        string `xml:"cyclic-karts"`
	TournamentMatch    string `xml:"tournament-match"`
	TournamentRules    string `xml:"tournament-rules"`

	Ranked    bool   `xml:"ranked"`
	ItemStyle string `xml:"item-style"`

	Fuel      FuelSettings    `xml:"fuel-settings"`
	Assets    AssetThresholds `xml:"asset-thresholds"`
	Timeouts  TimeoutSettings `xml:"timeouts"`
	Storage   StorageSettings `xml:"storage"`
}

// Default returns a ServerConfig populated with the values the
// original dialog preselects for a fresh server (fuel=1000, all
// compounds allowed, asset thresholds wide open).
func Default() ServerConfig {
	return ServerConfig{
		MaxPlayers: 8,
		Mode:       "normal-race",
		Difficulty: 1,
		Fuel: FuelSettings{
			Fuel:             1000,
			FuelStop:         0,
			FuelWeight:       0,
			FuelRate:         0,
			FuelRegen:        0,
			AllowedCompound1: -1,
			AllowedCompound2: -1,
			AllowedCompound3: -1,
		},
		Assets: AssetThresholds{
			OfficialKartsJoin:  0,
			OfficialTracksJoin: 0,
			OfficialKartsPlay:  0,
			OfficialTracksPlay: 0,
			AddonKartsJoin:     -1,
			AddonTracksJoin:    -1,
			AddonArenasJoin:    -1,
			AddonSoccersJoin:   -1,
			AddonKartsPlay:     -1,
			AddonTracksPlay:    -1,
			AddonArenasPlay:    -1,
			AddonSoccersPlay:   -1,
		},
		Timeouts: TimeoutSettings{
			ServerOwnerLessSeconds: 180,
			VotingSeconds:          20,
			ResultSeconds:          15,
			IdleSeconds:            60,
			KickIdlePlayerSeconds:  60,
		},
		Storage: StorageSettings{
			DBVersion: 1,
		},
	}
}

// Load reads and parses the XML configuration file at path, starting
// from Default() so any field the file omits keeps its default value.
func Load(path string) (ServerConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config xml")
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise produce a confusing
// failure deeper in the stack, logging warnings for values that are
// out-of-range but recoverable by clamping.
func (c *ServerConfig) Validate(log zerolog.Logger) error {
	if c.MaxPlayers <= 0 {
		return errors.New("max-players must be positive")
	}
	if c.MaxPlayers > 255 {
		log.Warn().Int("max-players", c.MaxPlayers).Msg("clamping max-players to 255")
		c.MaxPlayers = 255
	}
	if c.Difficulty < 0 || c.Difficulty > 3 {
		log.Warn().Int("difficulty", c.Difficulty).Msg("clamping difficulty to normal")
		c.Difficulty = 1
	}
	if c.Storage.DBVersion <= 0 {
		c.Storage.DBVersion = 1
	}
	return nil
}
