package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	authapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/auth"
	blocklistsapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/blocklists"
	certsapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/certs"
	dhcpapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/dhcp"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/middleware"
	nodesapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/nodes"
	ptrapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/ptr"
	querylogsapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/querylogs"
	syncapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/sync"
	zonesapi "github.com/Fail-Safe/Technitium-DNS-Companion-sub002/api/v1/zones"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/acme"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/blocklists"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/clustersync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/config"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/dhcp"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ptrsync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/querylog"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/zones"
)

// Deps carries the shared services the API handlers wrap
type Deps struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Logger  *logrus.Entry
	Factory *nodes.ClientFactory
	Engine  *ptrsync.Service
	Health  *nodes.HealthWorker

	Zones      *zones.Service
	QueryLogs  *querylog.Service
	DHCP       *dhcp.Service
	Blocklists *blocklists.Service
	Sync       *clustersync.Service
	ACME       *acme.Service
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, deps Deps) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", pingHandler)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authapi.LoginHandler(deps.DB, deps.Cfg))
		}

		// Everything below requires a console session
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			nodesHandler := nodesapi.NewHandler(deps.Health)
			nodesGroup := protected.Group("/nodes")
			{
				nodesGroup.GET("", nodesHandler.List)
				nodesGroup.POST("/create", nodesHandler.Create)
				nodesGroup.POST("/update", nodesHandler.Update)
				nodesGroup.POST("/delete", nodesHandler.Delete)
				nodesGroup.POST("/check", nodesHandler.Check)
			}

			zonesHandler := zonesapi.NewHandler(deps.Zones)
			protected.GET("/zones/overview", zonesHandler.Overview)

			ptrHandler := ptrapi.NewHandler(deps.Engine, deps.Factory, deps.Logger)
			ptrGroup := protected.Group("/ptr")
			{
				ptrGroup.GET("/source-zones", ptrHandler.SourceZones)
				ptrGroup.POST("/preview", ptrHandler.Preview)
				ptrGroup.POST("/apply", ptrHandler.Apply)
				ptrGroup.GET("/runs", ptrHandler.Runs)
				ptrGroup.GET("/runs/:id", ptrHandler.Run)
			}

			querylogsHandler := querylogsapi.NewHandler(deps.QueryLogs)
			protected.GET("/querylogs", querylogsHandler.Query)
			protected.GET("/querylogs/stats", querylogsHandler.Stats)

			dhcpHandler := dhcpapi.NewHandler(deps.DHCP)
			protected.GET("/dhcp/scopes", dhcpHandler.Scopes)
			protected.GET("/dhcp/leases", dhcpHandler.Leases)

			blocklistsHandler := blocklistsapi.NewHandler(deps.Blocklists)
			blGroup := protected.Group("/blocklists")
			{
				blGroup.GET("", blocklistsHandler.List)
				blGroup.POST("/add", blocklistsHandler.Add)
				blGroup.POST("/remove", blocklistsHandler.Remove)
			}

			syncHandler := syncapi.NewHandler(deps.Sync)
			protected.POST("/sync/diff", syncHandler.Diff)
			protected.POST("/sync/push", syncHandler.Push)

			certsHandler := certsapi.NewHandler(deps.ACME, deps.Factory)
			protected.POST("/certs/obtain", certsHandler.Obtain)
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}
