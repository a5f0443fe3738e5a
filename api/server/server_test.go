package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksym/stacksym/api"
	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/internal/store"
	"github.com/stacksym/stacksym/internal/symbolicate"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// traceA is x86_64/linux/1.0.0 with addresses 1, 2 and 3.
const traceA = "AQAAAQAAAAABAgM"

type echoResolver struct{}

func (echoResolver) Build(debugInfo []byte) ([]byte, error) {
	if len(debugInfo) == 0 || debugInfo[0] != 0x7f {
		return nil, errors.New("not an ELF file")
	}
	return debugInfo, nil
}

func (echoResolver) Load([]byte) (symbolicate.Handle, error) { return echoHandle{}, nil }

type echoHandle struct{}

func (echoHandle) Resolve(addrs []uint64) [][]stacktrace.FrameLocation {
	out := make([][]stacktrace.FrameLocation, len(addrs))
	for i, addr := range addrs {
		if addr == 3 {
			continue
		}
		out[i] = []stacktrace.FrameLocation{{Name: "fn", DemangledName: "fn", Language: "c", FullPath: "/src/a.c", Line: uint32(addr)}}
	}
	return out
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := store.NewMemory("")
	require.NoError(t, err)
	sym, err := symbolicate.New(m, echoResolver{})
	require.NoError(t, err)
	return NewServer(&Config{}, sym).Handler()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func multipartTrace(t *testing.T, path, trace string, debugInfo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("trace", trace))
	if debugInfo != nil {
		fw, err := mw.CreateFormFile("debuginfo", "app.debug")
		require.NoError(t, err)
		_, err = fw.Write(debugInfo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPing(t *testing.T) {
	h := newTestServer(t)

	w := do(h, httptest.NewRequest(http.MethodGet, "/v1/_ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(api.RequestIDHeader))

	w = do(h, httptest.NewRequest(http.MethodHead, "/v1/_ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, httptest.NewRequest(http.MethodGet, "/v1/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var v types.Version
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, api.DefaultVersion, v.APIVersion)
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/_ping", nil)
	req.Header.Set(api.RequestIDHeader, "abc-123")
	w := do(newTestServer(t), req)
	assert.Equal(t, "abc-123", w.Header().Get(api.RequestIDHeader))
}

func TestSymbolicate(t *testing.T) {
	h := newTestServer(t)

	// no symbol cache and no debug info yet
	w := do(h, httptest.NewRequest(http.MethodPost, "/v1/symbolicate", strings.NewReader(traceA)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = do(h, multipartTrace(t, "/v1/symbolicate", traceA, []byte("MZ")))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(h, multipartTrace(t, "/v1/symbolicate", traceA, []byte{0x7f, 'E', 'L', 'F'}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"header": {"traceVersion": 1, "os": "linux", "arch": "x86_64",
			"version": {"major": 1, "minor": 0, "patch": 0, "devBuild": false}},
		"frames": [
			{"addr": "0x1", "locations": [{"demangledName": "fn", "name": "fn", "language": "c", "fullPath": "/src/a.c", "line": 1}]},
			{"addr": "0x2", "locations": [{"demangledName": "fn", "name": "fn", "language": "c", "fullPath": "/src/a.c", "line": 2}]},
			{"addr": "0x3", "locations": []}
		]
	}`, w.Body.String())

	// cached now, the raw body is enough
	w = do(h, httptest.NewRequest(http.MethodPost, "/v1/symbolicate", strings.NewReader(traceA+"\n")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, httptest.NewRequest(http.MethodPost, "/v1/symbolicate", strings.NewReader("AQ$A")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, httptest.NewRequest(http.MethodPost, "/v1/symbolicate", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecode(t *testing.T) {
	h := newTestServer(t)

	w := do(h, httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(traceA)))
	require.Equal(t, http.StatusOK, w.Code)
	var st stacktrace.StackTrace
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, []uint64{1, 2, 3}, st.Addrs)
	assert.Equal(t, "x86_64/linux/1.0.0", st.Header.CacheKey())

	w = do(h, httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader("AAdvdGhlcm9z")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSymCacheRoutes(t *testing.T) {
	h := newTestServer(t)

	w := do(h, httptest.NewRequest(http.MethodGet, "/v1/symcache", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keys": []}`, w.Body.String())

	w = do(h, multipartTrace(t, "/v1/symcache", traceA, []byte{0x7f, 'E', 'L', 'F'}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"key": "x86_64/linux/1.0.0"}`, w.Body.String())

	w = do(h, httptest.NewRequest(http.MethodGet, "/v1/symcache", nil))
	assert.JSONEq(t, `{"keys": ["x86_64/linux/1.0.0"]}`, w.Body.String())

	w = do(h, httptest.NewRequest(http.MethodDelete, "/v1/symcache/x86_64/linux/1.0.0", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, httptest.NewRequest(http.MethodGet, "/v1/symcache", nil))
	assert.JSONEq(t, `{"keys": []}`, w.Body.String())

	w = do(h, multipartTrace(t, "/v1/symcache", traceA, []byte{0x7f, 'E', 'L', 'F'}))
	require.Equal(t, http.StatusOK, w.Code)
	w = do(h, httptest.NewRequest(http.MethodDelete, "/v1/symcache", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(h, httptest.NewRequest(http.MethodGet, "/v1/symcache", nil))
	assert.JSONEq(t, `{"keys": []}`, w.Body.String())
}

func TestMetrics(t *testing.T) {
	h := newTestServer(t)
	do(h, multipartTrace(t, "/v1/symbolicate", traceA, []byte{0x7f, 'E', 'L', 'F'}))

	w := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stacksym_symcache_builds_total")
}
