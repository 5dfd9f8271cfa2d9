package main

import (
	"flag"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/acme"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/auth"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/blocklists"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/cache"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/clustersync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/config"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/db"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/dhcp"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/logx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ptrsync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/querylog"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ws"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/zones"
)

func main() {
	configFile := flag.String("config", "", "path to an INI config file (env vars take precedence)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFromINI(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logx.Init(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Configuration loaded")

	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		logger.Fatalf("Failed to initialize MySQL: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.GetDB()); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		if err := db.SeedDefaultAdmin(db.GetDB()); err != nil {
			logger.Fatalf("Failed to seed admin user: %v", err)
		}
	}

	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer cache.Close()

	auth.InitJWT(cfg.JWT.Secret)

	factory := nodes.NewClientFactory(
		time.Duration(cfg.Technitium.TimeoutSec)*time.Second,
		cfg.Technitium.SkipTLSVerify,
	)

	engine := ptrsync.NewService(ptrsync.Config{
		Logger:             logx.Component(logger, "ptrsync"),
		IPv4PrefixLength:   cfg.PTRSync.IPv4PrefixLength,
		IPv6PrefixLength:   cfg.PTRSync.IPv6PrefixLength,
		ScanWorkers:        cfg.PTRSync.ScanWorkers,
		SourceZoneCacheTTL: time.Duration(cfg.PTRSync.SourceZoneCacheSec) * time.Second,
		Snapshots:          ptrsync.NewFileSnapshotStore(cfg.PTRSync.SnapshotDir),
	})

	if err := ws.InitServer(logx.Component(logger, "ws")); err != nil {
		logger.Fatalf("Failed to initialize event server: %v", err)
	}

	var health *nodes.HealthWorker
	if cfg.NodeHealth.Enabled {
		health = nodes.NewHealthWorker(&nodes.HealthConfig{
			DB:                   db.GetDB(),
			Factory:              factory,
			Logger:               logx.Component(logger, "health"),
			IntervalSec:          cfg.NodeHealth.IntervalSec,
			OfflineFailThreshold: cfg.NodeHealth.OfflineFailThreshold,
			Concurrency:          cfg.NodeHealth.Concurrency,
		})
		health.Start()
		defer health.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// Event stream shares the console JWT via the handshake
	sio := gin.WrapH(ws.WrapWithAuth(ws.Server))
	r.GET("/socket.io/*any", sio)
	r.POST("/socket.io/*any", sio)

	v1.SetupRouter(r, v1.Deps{
		DB:      db.GetDB(),
		Cfg:     cfg,
		Logger:  logx.Component(logger, "api"),
		Factory: factory,
		Engine:  engine,
		Health:  health,

		Zones:      zones.NewService(factory, logx.Component(logger, "zones")),
		QueryLogs:  querylog.NewService(factory, logx.Component(logger, "querylog"), time.Duration(cfg.QueryLog.CacheSec)*time.Second, cfg.QueryLog.PageSize),
		DHCP:       dhcp.NewService(factory, logx.Component(logger, "dhcp")),
		Blocklists: blocklists.NewService(factory, logx.Component(logger, "blocklists")),
		Sync:       clustersync.NewService(factory, logx.Component(logger, "clustersync")),
		ACME:       acme.NewService(cfg.ACME.DirectoryURL, cfg.ACME.Email, logx.Component(logger, "acme")),
	})

	logger.Infof("Server starting on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
