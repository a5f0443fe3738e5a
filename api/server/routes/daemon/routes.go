// Package daemon provides the daemon health routes
package daemon

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api"
	"github.com/stacksym/stacksym/api/types"
)

// AddRoutes adds the daemon routes to the router
func AddRoutes(rg *gin.RouterGroup) {
	// swagger:route HEAD /_ping Daemon headDaemonPing
	//
	// Ping
	//
	// Returns 200 if stacksymd is running.
	rg.HEAD("/_ping", pingHandler)
	// swagger:route GET /_ping Daemon getDaemonPing
	//
	// Ping
	//
	// Returns "OK" if stacksymd is running.
	rg.GET("/_ping", pingHandler)
	// swagger:route GET /version Daemon getDaemonVersion
	//
	// Version
	//
	// Returns the API version and the build of the running daemon.
	rg.GET("/version", versionHandler)
}

func pingHandler(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)
		return
	}
	c.String(http.StatusOK, "OK")
}

func versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, types.Version{
		APIVersion:     api.DefaultVersion,
		OSType:         runtime.GOOS,
		BuilderVersion: types.BuildVersion,
		BuildTime:      types.BuildTime,
	})
}
