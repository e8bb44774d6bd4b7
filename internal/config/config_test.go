package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesFuelAndTimeouts(t *testing.T) {
	cfg := Default()
	require.Equal(t, 1000.0, cfg.Fuel.Fuel)
	require.Equal(t, -1, cfg.Fuel.AllowedCompound1)
	require.Equal(t, 180.0, cfg.Timeouts.ServerOwnerLessSeconds)
	require.Equal(t, 1, cfg.Storage.DBVersion)
}

func TestLoadOverridesDefaultsFromXML(t *testing.T) {
	doc := `<server-config>
		<server-uid>abc123</server-uid>
		<max-players>16</max-players>
		<mode>soccer</mode>
		<tracks>zen_garden hacienda</tracks>
		<tournament-rules>nochat 7 GG RB ++;not %0;not %1</tournament-rules>
		<fuel-settings>
			<fuel>500</fuel>
			<allowed-compound-1>2</allowed-compound-1>
		</fuel-settings>
		<storage>
			<sql-management>true</sql-management>
			<store-results>true</store-results>
		</storage>
	</server-config>`
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "abc123", cfg.ServerUID)
	require.Equal(t, 16, cfg.MaxPlayers)
	require.Equal(t, "soccer", cfg.Mode)
	require.Equal(t, "zen_garden hacienda", cfg.OnetimeTracks)
	require.Equal(t, 500.0, cfg.Fuel.Fuel)
	require.Equal(t, 2, cfg.Fuel.AllowedCompound1)
	require.True(t, cfg.Storage.Enabled)
	require.True(t, cfg.Storage.StoreResults)
	// fields the document omitted keep their Default() value
	require.Equal(t, 180.0, cfg.Timeouts.ServerOwnerLessSeconds)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveMaxPlayers(t *testing.T) {
	cfg := Default()
	cfg.MaxPlayers = 0
	err := cfg.Validate(zerolog.Nop())
	require.Error(t, err)
}

func TestValidateClampsOutOfRangeFields(t *testing.T) {
	cfg := Default()
	cfg.MaxPlayers = 9000
	cfg.Difficulty = 99
	require.NoError(t, cfg.Validate(zerolog.Nop()))
	require.Equal(t, 255, cfg.MaxPlayers)
	require.Equal(t, 1, cfg.Difficulty)
}
