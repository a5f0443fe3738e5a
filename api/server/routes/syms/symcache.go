package syms

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/internal/symbolicate"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

func addSymCacheRoutes(rg *gin.RouterGroup, sym *symbolicate.Symbolicator) {
	// swagger:route GET /symcache SymCache getSymCache
	//
	// List
	//
	// List the stored symbol cache keys.
	//
	//     Produces:
	//     - application/json
	//
	//     Responses:
	//       200: symCacheKeys
	//       503: genericError
	rg.GET("/symcache", func(c *gin.Context) {
		keys, err := sym.Keys(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		c.JSON(http.StatusOK, types.SymCacheKeys{Keys: keys})
	})
	// swagger:route POST /symcache SymCache postSymCache
	//
	// Prime
	//
	// Build and store the symbol cache for the release a trace came from.
	// The multipart form takes a 'trace' field and an optional 'debuginfo' file.
	//
	//     Produces:
	//     - application/json
	//
	//     Responses:
	//       200: symCacheKey
	//       400: genericError
	//       404: genericError
	//       422: genericError
	//       503: genericError
	rg.POST("/symcache", func(c *gin.Context) {
		trace, debugInfo, err := readTraceRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		st, err := stacktrace.DecodeString(trace)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := sym.Prime(c.Request.Context(), st.Header, debugInfo); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.SymCacheKey{Key: st.Header.CacheKey()})
	})
	// swagger:route DELETE /symcache SymCache deleteSymCache
	//
	// Clear
	//
	// Delete every stored symbol cache.
	//
	//     Responses:
	//       204: description:cleared
	//       503: genericError
	rg.DELETE("/symcache", func(c *gin.Context) {
		if err := sym.Purge(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	// swagger:route DELETE /symcache/{key} SymCache deleteSymCacheKey
	//
	// Delete
	//
	// Delete the symbol cache stored under a key such as x86_64/linux/1.0.0.
	//
	//     Responses:
	//       204: description:deleted
	//       400: genericError
	//       503: genericError
	rg.DELETE("/symcache/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: "'key' is required"})
			return
		}
		if err := sym.Forget(c.Request.Context(), key); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
