// Package syms provides the /symbolicate, /decode and /symcache API routes
package syms

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/internal/symbolicate"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// maxTraceSize bounds raw trace bodies; encoded traces are a few KiB at most.
const maxTraceSize = 1 << 20

// swagger:response
type symbolicateResponse *stacktrace.SymbolicatedStackTrace

// swagger:response
type decodeResponse *stacktrace.StackTrace

// AddRoutes adds the syms routes to the router
func AddRoutes(rg *gin.RouterGroup, sym *symbolicate.Symbolicator) {
	// swagger:route POST /symbolicate Syms postSymbolicate
	//
	// Symbolicate
	//
	// Symbolicate an encoded stack trace. The body is either the encoded
	// trace or a multipart form with a 'trace' field and an optional
	// 'debuginfo' file used when no symbol cache exists yet.
	//
	//     Produces:
	//     - application/json
	//
	//     Responses:
	//       200: symbolicateResponse
	//       400: genericError
	//       404: genericError
	//       408: genericError
	//       422: genericError
	//       500: genericError
	//       503: genericError
	rg.POST("/symbolicate", func(c *gin.Context) {
		trace, debugInfo, err := readTraceRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		out, err := sym.Symbolicate(c.Request.Context(), trace, debugInfo)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, symbolicateResponse(out))
	})
	// swagger:route POST /decode Syms postDecode
	//
	// Decode
	//
	// Decode an encoded stack trace without symbolicating it.
	//
	//     Produces:
	//     - application/json
	//
	//     Responses:
	//       200: decodeResponse
	//       400: genericError
	rg.POST("/decode", func(c *gin.Context) {
		trace, _, err := readTraceRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		st, err := stacktrace.DecodeString(trace)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, decodeResponse(st))
	})

	addSymCacheRoutes(rg, sym)
}

// readTraceRequest reads the encoded trace and any uploaded debug info.
func readTraceRequest(c *gin.Context) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		trace := strings.TrimSpace(c.PostForm("trace"))
		if trace == "" {
			return "", nil, fmt.Errorf("'trace' form field is required")
		}
		debugInfo, err := formFile(c, "debuginfo")
		if err != nil {
			return "", nil, err
		}
		return trace, debugInfo, nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTraceSize))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read request body: %w", err)
	}
	trace := strings.TrimSpace(string(body))
	if trace == "" {
		return "", nil, fmt.Errorf("request body must contain an encoded stack trace")
	}
	return trace, nil, nil
}

// formFile returns the contents of an optional uploaded file.
func formFile(c *gin.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read '%s' upload: %w", name, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s' upload: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
