// Package routes contains all the routes for the API
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api/server/routes/daemon"
	"github.com/stacksym/stacksym/api/server/routes/syms"
	"github.com/stacksym/stacksym/internal/symbolicate"
)

// Add adds the command routes to the router
func Add(rg *gin.RouterGroup, sym *symbolicate.Symbolicator) {
	daemon.AddRoutes(rg)
	syms.AddRoutes(rg, sym)
}
