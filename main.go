package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/memoryserver/board"
	"github.com/wfunc/memoryserver/config"
	"github.com/wfunc/memoryserver/logger"
	"github.com/wfunc/memoryserver/monitor"
	"github.com/wfunc/memoryserver/persistence"
	"github.com/wfunc/memoryserver/rpc"
	"github.com/wfunc/memoryserver/server"
	"github.com/wfunc/memoryserver/services"
	"github.com/wfunc/memoryserver/settings"
	"github.com/wfunc/memoryserver/timer"
)

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := server.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Log.Infow("Database ready", "driver", cfg.Database.Driver)

	defaults, err := settings.NewDefaults(cfg.Game.Defaults)
	if err != nil {
		logger.Log.Fatalf("Invalid memory game defaults: %v", err)
	}
	leaderboard := services.NewLeaderboardService(db, cfg.Leaderboard.LeaderboardSettings())

	mon := monitor.NewMonitor("memory_game", prometheus.DefaultRegisterer)
	mon.PublishExpvar()

	timers := timer.NewTimerManager()
	defer timers.Stop()

	gameServer := server.NewGameServer(cfg.Server, cfg.Game.Areas, server.Dependencies{
		Leaderboard: leaderboard,
		Defaults:    defaults,
		Monitor:     mon,
		Timers:      timers,
		Gatherer:    prometheus.DefaultGatherer,
		NewRNG:      rngFactory(cfg.Game.Seed),
	})

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewMemoryService(leaderboard, defaults)); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(gameServer.Start)
	g.Go(rpcServer.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("Shutting down")
		rpcServer.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gameServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Errorf("Server exited: %v", err)
	}
}

// rngFactory gives every game its own board RNG. A configured seed makes
// boards reproducible: game n uses "<seed>:<n>".
func rngFactory(seed string) func() board.RNG {
	if seed == "" {
		return func() board.RNG { return board.NewRandom() }
	}
	logger.Log.Warnw("Board generation is seeded; boards are predictable", "seed", seed)
	var n atomic.Int64
	return func() board.RNG {
		return board.NewSeeded(fmt.Sprintf("%s:%d", seed, n.Add(1)))
	}
}
