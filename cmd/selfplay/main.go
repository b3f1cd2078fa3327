// Command selfplay runs a batch of self-play games and appends the
// resulting training experiences to a sharded dataset on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kharnhold/tacticsrl/internal/archive/postgres"
	"github.com/kharnhold/tacticsrl/internal/auth"
	"github.com/kharnhold/tacticsrl/internal/config"
	"github.com/kharnhold/tacticsrl/internal/coordinate/redis"
	"github.com/kharnhold/tacticsrl/internal/dataset"
	"github.com/kharnhold/tacticsrl/internal/logger"
	"github.com/kharnhold/tacticsrl/internal/monitor"
	"github.com/kharnhold/tacticsrl/internal/predictor"
	"github.com/kharnhold/tacticsrl/internal/predictor/onnx"
	"github.com/kharnhold/tacticsrl/internal/rosterio"
	"github.com/kharnhold/tacticsrl/internal/selfplay"
)

func main() {
	logger.Init()
	log := log.Logger

	var (
		numGames    int
		simsPerMove int
		turnLimit   int
		boardSize   int
		boardScale  float64
		rosterCSV   string
		placeCSV    string
		shardDir    string
		modelDir    string
		temperature float64
		seed        int64
		runID       string
		dryRun      bool
		monitorAddr string
	)

	flag.IntVar(&numGames, "num-games", 1, "number of games to self-play")
	flag.IntVar(&simsPerMove, "search-budget", 200, "MCTS iterations per move")
	flag.IntVar(&turnLimit, "turn-limit", 20, "turns before the game is scored a draw")
	flag.IntVar(&boardSize, "board-size", 12, "board width and height in cells")
	flag.Float64Var(&boardScale, "board-scale", 1.0, "board distance scale used by movement/range checks")
	flag.StringVar(&rosterCSV, "roster-csv", "", "path to the unit roster CSV (required)")
	flag.StringVar(&placeCSV, "placements-csv", "", "path to the starting placements CSV (required)")
	flag.StringVar(&shardDir, "shard-dir", "./shards", "directory experience shards are written to")
	flag.StringVar(&modelDir, "onnx-model-dir", "", "directory containing policy.onnx and value.onnx (empty = uniform fake predictor)")
	flag.Float64Var(&temperature, "final-policy-tau", 1.0, "visit-count temperature for the final move policy")
	flag.Int64Var(&seed, "seed", 0, "base RNG seed (each game offsets from this)")
	flag.StringVar(&runID, "run-id", "", "identifier used for Redis/Postgres coordination (default: generated)")
	flag.BoolVar(&dryRun, "dry-run", false, "use a uniform fake predictor instead of loading ONNX models")
	flag.StringVar(&monitorAddr, "monitor-addr", "", "bind address for the monitor HTTP server (empty = disabled)")
	flag.Parse()

	if rosterCSV == "" || placeCSV == "" {
		fmt.Fprintln(os.Stderr, "selfplay: -roster-csv and -placements-csv are required")
		os.Exit(2)
	}
	if turnLimit <= 0 {
		fmt.Fprintln(os.Stderr, "selfplay: -turn-limit must be positive")
		os.Exit(2)
	}
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	roster, err := rosterio.LoadRoster(rosterCSV)
	if err != nil {
		log.Error().Err(err).Str("path", rosterCSV).Msg("selfplay: load roster")
		os.Exit(2)
	}
	placements, err := rosterio.LoadPlacements(placeCSV)
	if err != nil {
		log.Error().Err(err).Str("path", placeCSV).Msg("selfplay: load placements")
		os.Exit(2)
	}

	store, err := dataset.NewStore(shardDir)
	if err != nil {
		log.Error().Err(err).Str("dir", shardDir).Msg("selfplay: open shard store")
		os.Exit(1)
	}

	var pred predictor.BatchPredictor
	if dryRun || modelDir == "" {
		pred = predictor.Uniform{}
	} else {
		p, err := onnx.Load(modelDir, boardSize)
		if err != nil {
			log.Error().Err(err).Str("dir", modelDir).Msg("selfplay: load onnx models")
			os.Exit(1)
		}
		pred = p
	}

	cfg := config.Load()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("selfplay: connect redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		store.SetShardIndexer(func() (int, error) {
			return redisClient.NextShardIndex(context.Background(), runID)
		})
	}

	var gameRepo *postgres.GameRepo
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("selfplay: connect postgres")
			os.Exit(1)
		}
		defer db.Close()
		gameRepo = postgres.NewGameRepo(db)
	}

	mgrCfg := selfplay.Config{
		Roster:      roster,
		Placements:  placements,
		BoardSize:   boardSize,
		BoardScale:  boardScale,
		TurnLimit:   turnLimit,
		NumGames:    numGames,
		SimsPerMove: simsPerMove,
		Temperature: temperature,
		Seed:        seed,
	}
	if mgrCfg.Seed == 0 {
		mgrCfg.Seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63()
	}

	mgr := selfplay.NewManager(mgrCfg, pred, store)

	var mon *monitor.Server
	if monitorAddr != "" {
		jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
		mon = monitor.NewServer(jwtMgr, nil, mgr.Stop, log)
	}

	mgr.OnOutcome(func(o selfplay.GameOutcome) {
		winnerLabel := ""
		if o.Winner != nil {
			if *o.Winner == 1 {
				winnerLabel = "B"
			} else {
				winnerLabel = "A"
			}
		}
		if redisClient != nil {
			if err := redisClient.RecordGameFinished(context.Background(), runID, o.TurnCount, winnerLabel); err != nil {
				log.Warn().Err(err).Msg("selfplay: record game finished in redis")
			}
		}
		if gameRepo != nil {
			if err := gameRepo.Record(context.Background(), runID, o); err != nil {
				log.Warn().Err(err).Msg("selfplay: archive game to postgres")
			}
		}
		if mon != nil {
			mon.Broadcast(o)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("selfplay: shutdown requested, stopping after current batch")
		mgr.Stop()
	}()

	if mon != nil {
		srv := &http.Server{Addr: monitorAddr, Handler: mon.Handler("*")}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("selfplay: monitor server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().Str("run_id", runID).Int("games", numGames).Msg("selfplay: starting run")
	if err := mgr.Run(ctx); err != nil {
		log.Error().Err(err).Msg("selfplay: run failed")
		os.Exit(1)
	}
}
