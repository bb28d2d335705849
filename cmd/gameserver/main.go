// Package main provides the game server binary: the gRPC command service, the
// websocket snapshot feed and, with the postgres driver, durable storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/tiledungeon/internal/config"
	"github.com/cory-johannsen/tiledungeon/internal/feed"
	"github.com/cory-johannsen/tiledungeon/internal/game/bot"
	"github.com/cory-johannsen/tiledungeon/internal/game/content"
	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
	"github.com/cory-johannsen/tiledungeon/internal/observability"
	"github.com/cory-johannsen/tiledungeon/internal/scripting"
	"github.com/cory-johannsen/tiledungeon/internal/server"
	"github.com/cory-johannsen/tiledungeon/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting game server",
		zap.String("name", cfg.Server.Name),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.String("storage", cfg.Storage.Driver),
	)

	catalog, err := content.LoadDir(cfg.Game.ContentDir)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("deck", catalog.DeckSize()),
		zap.Int("monsters", len(catalog.Monsters)),
	)

	battleDice, err := dice.Parse(cfg.Game.BattleDice)
	if err != nil {
		logger.Fatal("parsing battle dice", zap.Error(err))
	}
	src := dice.NewCryptoSource()
	roller := dice.NewLoggedRoller(src, battleDice, logger)
	eng := engine.New(catalog, roller, src, engine.Rules{
		ActionBudget: cfg.Game.ActionBudget,
		MaxHP:        cfg.Game.MaxHP,
	}, logger)

	var policy bot.Policy = bot.Heuristic{}
	if cfg.Game.BotScript != "" {
		scripts := scripting.NewManager(roller, logger, 0)
		defer scripts.Close()
		if err := scripts.LoadFile(bot.ScriptName, cfg.Game.BotScript); err != nil {
			logger.Fatal("loading bot script", zap.Error(err))
		}
		policy = bot.NewLuaPolicy(scripts, bot.Heuristic{}, logger)
		logger.Info("bot script loaded", zap.String("path", cfg.Game.BotScript))
	}
	scheduler := gameserver.NewScheduler(eng, policy, cfg.Game.BotMaxCommands, logger)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	var (
		store      gameserver.Store
		serializer gameserver.Serializer
		notifier   gameserver.Notifier = gameserver.NewLogNotifier(logger)
	)
	local := gameserver.NewLocalSerializer()
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		store = pool.Games()
		serializer = gameserver.ChainSerializer{local, pool.Locker()}
		notifier = gameserver.MultiNotifier{notifier, pool.Results()}

		stop := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				pool.Watch(stop, 30*time.Second)
				return nil
			},
			StopFn: func() {
				close(stop)
				pool.Close()
			},
		})
	default:
		store = gameserver.NewMemoryStore()
		serializer = local
	}

	svc := gameserver.NewService(eng, store, serializer, scheduler, notifier, logger)

	grpcServer := grpc.NewServer()
	gameserver.NewGRPCServer(svc, logger).Register(grpcServer)
	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GameServer.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: grpcServer.GracefulStop,
	})

	if cfg.GameServer.FeedPort != 0 {
		hub := feed.NewHub(logger)
		svc.SetPublisher(hub)
		httpServer := &http.Server{
			Addr:              cfg.GameServer.FeedAddr(),
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		lifecycle.Add("feed", &server.FuncService{
			StartFn: func() error {
				logger.Info("snapshot feed listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			StopFn: func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			},
		})
	}

	logger.Info("game server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
