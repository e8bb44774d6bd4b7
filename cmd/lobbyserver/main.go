// Command lobbyserver runs the authoritative lobby-and-match
// orchestrator: it loads the server's XML configuration, wires every
// lobby sub-component, and serves both the wire-protocol accept loop
// and the admin gRPC surface until told to shut down.
package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"stklobby/internal/adminrpc"
	"stklobby/internal/assets"
	"stklobby/internal/config"
	"stklobby/internal/gp"
	"stklobby/internal/lobby"
	"stklobby/internal/storage"
	"stklobby/internal/tournament"
	"stklobby/internal/transport"
	"stklobby/internal/vote"
)

const (
	exitClean              = 0
	exitRegistrationFailed = 1
	exitAssetLoadFailed    = 2
	exitConfigError        = 3
)

var flags struct {
	configDir     string
	serverUID     string
	publicAddress string
	password      string
	maxPlayers    int
	mode          string
	difficulty    int
}

func main() {
	root := &cobra.Command{
		Use:   "lobbyserver",
		Short: "authoritative lobby-and-match orchestrator",
		RunE:  run,
	}
	root.Flags().StringVar(&flags.configDir, "config-dir", ".", "directory holding the server's XML configuration")
	root.Flags().StringVar(&flags.serverUID, "server-uid", "", "overrides the configured server-uid")
	root.Flags().StringVar(&flags.publicAddress, "public-address", "", "overrides the configured public-address (host:port)")
	root.Flags().StringVar(&flags.password, "password", "", "overrides the configured join password")
	root.Flags().IntVar(&flags.maxPlayers, "max-players", 0, "overrides the configured max-players (0 keeps the config value)")
	root.Flags().StringVar(&flags.mode, "mode", "", "overrides the configured game mode")
	root.Flags().IntVar(&flags.difficulty, "difficulty", -1, "overrides the configured difficulty (-1 keeps the config value)")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitErr pins a specific exit code to an error.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }

func exitCodeFor(err error) int {
	if ee, ok := err.(*exitErr); ok {
		return ee.code
	}
	return exitRegistrationFailed
}

func run(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := loadConfig(log)
	if err != nil {
		return &exitErr{exitConfigError, err}
	}
	if err := cfg.Validate(log); err != nil {
		return &exitErr{exitConfigError, err}
	}

	mode, err := parseMode(cfg.Mode)
	if err != nil {
		return &exitErr{exitAssetLoadFailed, err}
	}

	assetsMgr := assets.New(assets.Thresholds{
		OfficialKartsJoin:  cfg.Assets.OfficialKartsJoin,
		OfficialTracksJoin: cfg.Assets.OfficialTracksJoin,
		OfficialKartsPlay:  cfg.Assets.OfficialKartsPlay,
		OfficialTracksPlay: cfg.Assets.OfficialTracksPlay,
		AddonKartsJoin:     cfg.Assets.AddonKartsJoin,
		AddonTracksJoin:    cfg.Assets.AddonTracksJoin,
		AddonArenasJoin:    cfg.Assets.AddonArenasJoin,
		AddonSoccersJoin:   cfg.Assets.AddonSoccersJoin,
		AddonKartsPlay:     cfg.Assets.AddonKartsPlay,
		AddonTracksPlay:    cfg.Assets.AddonTracksPlay,
		AddonArenasPlay:    cfg.Assets.AddonArenasPlay,
		AddonSoccersPlay:   cfg.Assets.AddonSoccersPlay,
	})

	var store *storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.NewStore(storage.Options{
			Path:          cfg.Storage.Path,
			DBVersion:     cfg.Storage.DBVersion,
			ServerUID:     cfg.ServerUID,
			IPv6Enabled:   cfg.Storage.IPv6Enabled,
			StoreResults:  cfg.Storage.StoreResults,
			IPBanTable:    cfg.Storage.IPBanTable,
			IPv6BanTable:  cfg.Storage.IPv6BanTable,
			OnlineIDTable: cfg.Storage.OnlineIDTable,
		})
		if err != nil {
			return &exitErr{exitRegistrationFailed, err}
		}
		defer store.Close()
	}

	var startHostID uint32
	if store != nil {
		if last, err := store.LastHostID(); err == nil {
			startHostID = last + 1
		}
	}

	var trn *tournament.Tournament
	if cfg.TournamentMatch != "" {
		trn = tournament.New(cfg.TournamentMatch, cfg.TournamentRules, func(string) []string { return nil })
	}

	admin := adminrpc.NewAdminServer(log)

	lobbyCfg := lobby.Config{
		Server:          cfg,
		ProtocolVersion: 1,
		Mode:            mode,
		VoteAlgorithm:   vote.AlgorithmStandard,
		Restrictions:    vote.Restrictions{},
		StartHostID:     startHostID,
		GPScoring:       gp.NewStandard(),
		VerifyPassword: func(payload []byte) bool {
			return cfg.Password == "" || string(payload) == cfg.Password
		},
	}
	if flags.password != "" {
		lobbyCfg.Server.Password = flags.password
	}

	wt := transport.New(log)
	lb := lobby.New(log, lobbyCfg, wt.Sender(), store, admin, assetsMgr, trn)
	wt.Lobby = lb

	listenAddr := lobbyCfg.Server.PublicAddress
	if listenAddr == "" {
		listenAddr = ":2759"
	}
	wireLis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return &exitErr{exitRegistrationFailed, err}
	}
	go wt.AcceptLoop(wireLis)

	grpcServer := grpc.NewServer()
	adminrpc.RegisterAdminServiceServer(grpcServer, admin)
	adminLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return &exitErr{exitRegistrationFailed, err}
	}
	go func() {
		if err := grpcServer.Serve(adminLis); err != nil {
			log.Error().Err(err).Msg("admin rpc server stopped")
		}
	}()

	log.Info().Str("addr", listenAddr).Str("admin-addr", adminLis.Addr().String()).Str("server-uid", cfg.ServerUID).Msg("lobby server listening")

	stop := make(chan struct{})
	go tickLoop(lb, stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	close(stop)
	grpcServer.GracefulStop()
	wireLis.Close()
	log.Info().Msg("lobby server shut down")
	return nil
}

// tickLoop drives the Lobby State Machine's polled transitions on a
// fixed cadence, mirroring the teacher's physicsLoop goroutine.
func tickLoop(lb *lobby.Lobby, stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			lb.Tick(now)
		}
	}
}

func loadConfig(log zerolog.Logger) (config.ServerConfig, error) {
	path := filepath.Join(flags.configDir, "server_config.xml")
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "reading config file") {
			log.Warn().Str("path", path).Msg("no configuration file found, using defaults")
			cfg = config.Default()
		} else {
			return cfg, err
		}
	}

	if flags.serverUID != "" {
		cfg.ServerUID = flags.serverUID
	}
	if cfg.ServerUID == "" {
		cfg.ServerUID = fmt.Sprintf("%08x", rand.Uint32())
	}
	if flags.publicAddress != "" {
		cfg.PublicAddress = flags.publicAddress
	}
	if flags.maxPlayers > 0 {
		cfg.MaxPlayers = flags.maxPlayers
	}
	if flags.mode != "" {
		cfg.Mode = flags.mode
	}
	if flags.difficulty >= 0 {
		cfg.Difficulty = flags.difficulty
	}
	return cfg, nil
}

func parseMode(mode string) (assets.Mode, error) {
	switch strings.ToLower(mode) {
	case "", "normal-race", "race", "time-trial-race", "follow-leader":
		return assets.ModeRace, nil
	case "time-trial":
		return assets.ModeTimeTrial, nil
	case "free-for-all", "ffa", "battle":
		return assets.ModeFFA, nil
	case "capture-the-flag", "ctf":
		return assets.ModeCTF, nil
	case "soccer":
		return assets.ModeSoccer, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
}
