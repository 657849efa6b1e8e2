package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/api"
	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/database"
	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/importer"
	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/repository"
	"github.com/otahak/herald/internal/utils"
	"github.com/otahak/herald/internal/websocket"
	"go.uber.org/zap"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// expired games are kept around this long before the sweeper purges them
const expiredRetention = 24 * time.Hour

type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	games      *game.Service
	httpServer *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("herald %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting herald",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	if s.cfg.Server.Mode == "production" || s.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	repos := repository.NewManager(database.GetDB())
	rooms := websocket.NewManager()
	s.games = game.NewService(repos, rooms, &s.cfg.Game)

	tokens := utils.NewTokenManager(&s.cfg.Security.JWT)
	imports := importer.NewService(importer.NewClient(&s.cfg.Import), s.games)
	wsHandler := websocket.NewHandler(s.games, rooms, tokens, &s.cfg.WebSocket)

	router := api.NewRouter(s.games, imports, wsHandler, tokens, s.logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go s.serveHTTP()

	s.wg.Add(1)
	go s.runCleanupSweeper()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("configuration reloaded")
	})

	s.logger.Info("server started",
		zap.String("addr", s.httpServer.Addr),
	)
	return nil
}

func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "database init failed")
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "migration failed")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "database ping failed")
	}
	return nil
}

func (s *Server) serveHTTP() {
	defer s.wg.Done()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("http server error", zap.Error(err))
		s.cancel()
	}
}

// runCleanupSweeper periodically deletes games that have been expired
// longer than the retention window. Session reads already flip idle games
// to expired lazily; the sweeper only reclaims storage.
func (s *Server) runCleanupSweeper() {
	defer s.wg.Done()

	interval := s.cfg.Game.CleanupInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-expiredRetention)
			if _, err := s.games.CleanupExpired(s.ctx, cutoff); err != nil {
				s.logger.Warn("cleanup sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
		s.logger.Info("internal shutdown requested")
	}
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down...")
	s.cancel()

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	if err := database.Close(); err != nil {
		s.logger.Error("database close error", zap.Error(err))
	}
	return nil
}
