package symcache

import (
	"bytes"
	"debug/elf"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// inlineFixture describes a function at 0x1000-0x1100 with a callee inlined at
// 0x1010-0x1020 and a symbol-only function at 0x2000-0x2010.
func inlineFixture() *cacheData {
	return &cacheData{
		Arch:     "x86_64",
		LoadAddr: 0x1000,
		Files:    []string{"/src/a.rs", "/src/b.rs"},
		Functions: []function{
			{Name: "_ZN4demo5outer17h0011223344556677E", Demangled: "demo::outer", Language: "rust"},
			{Name: "inner", Demangled: "inner", Language: "c"},
			{Name: "stripped", Demangled: "stripped", Language: languageUnknown},
		},
		Scopes: []scope{
			{Low: 0x1000, High: 0x1100, Func: 0, Depth: 0, CallFile: noFile},
			{Low: 0x1010, High: 0x1020, Func: 1, Depth: 1, CallFile: 0, CallLine: 10},
		},
		Lines: []lineRow{
			{Addr: 0x1000, File: 0, Line: 5},
			{Addr: 0x1010, File: 1, Line: 77},
			{Addr: 0x1020, File: 0, Line: 11},
			{Addr: 0x1100, File: noFile},
		},
		Symbols: []symbol{{Addr: 0x2000, Size: 0x10, Func: 2}},
	}
}

func assertFixtureLookups(t *testing.T, c *SymCache) {
	t.Helper()

	inlined := c.Lookup(0x15)
	require.Len(t, inlined, 2)
	assert.Equal(t, stacktrace.FrameLocation{
		DemangledName: "inner", Name: "inner", Language: "c", FullPath: "/src/b.rs", Line: 77,
	}, inlined[0])
	assert.Equal(t, stacktrace.FrameLocation{
		DemangledName: "demo::outer", Name: "_ZN4demo5outer17h0011223344556677E", Language: "rust",
		FullPath: "/src/a.rs", Line: 10,
	}, inlined[1])

	outer := c.Lookup(0x30)
	require.Len(t, outer, 1)
	assert.Equal(t, "demo::outer", outer[0].DemangledName)
	assert.Equal(t, uint32(11), outer[0].Line)

	sym := c.Lookup(0x1005)
	require.Len(t, sym, 1)
	assert.Equal(t, "stripped", sym[0].Name)
	assert.Equal(t, unknownFile, sym[0].FullPath)
	assert.Zero(t, sym[0].Line)

	missing := c.Lookup(0x2000)
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}

func TestLookup(t *testing.T) {
	assertFixtureLookups(t, &SymCache{data: inlineFixture()})
}

func TestLookupDoesNotWrap(t *testing.T) {
	c := &SymCache{data: inlineFixture()}
	// wraps to 0x1015 when added to the load address
	wrapped := uint64(math.MaxUint64) - 0x1000 + 0x16
	got := c.Lookup(wrapped)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = c.Lookup(math.MaxUint64)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEncodeLoad(t *testing.T) {
	blob, err := encode(inlineFixture())
	require.NoError(t, err)
	assert.Equal(t, "SYMC", string(blob[:4]))

	c, err := Load(blob)
	require.NoError(t, err)
	assert.Equal(t, "x86_64", c.Arch())
	assert.Equal(t, uint64(0x1000), c.LoadAddress())
	assertFixtureLookups(t, c)

	got := c.Resolve([]uint64{0x15, 0x2000, 0x30})
	require.Len(t, got, 3)
	assert.Len(t, got[0], 2)
	assert.Empty(t, got[1])
	assert.Len(t, got[2], 1)
}

func TestLoadRejectsGarbage(t *testing.T) {
	for name, blob := range map[string][]byte{
		"empty":     nil,
		"magic":     []byte("NOPE\x01\x00\x00\x00"),
		"version":   []byte("SYMC\x63\x00\x00\x00"),
		"truncated": []byte("SYMC\x01\x00\x00\x00\xfd7zXZ"),
	} {
		_, err := Load(blob)
		assert.ErrorIs(t, err, ErrInvalidCache, name)
	}
}

func TestLoadRejectsOutOfRangeIndexes(t *testing.T) {
	data := inlineFixture()
	data.Scopes[1].Func = 42
	blob, err := encode(data)
	require.NoError(t, err)
	_, err = Load(blob)
	assert.ErrorIs(t, err, ErrInvalidCache)
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	_, err := Build([]byte("definitely not an object file"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCollectSymbolsSizes(t *testing.T) {
	c := newCollector(&object{arch: "aarch64"})
	c.collectSymbols([]rawSymbol{
		{addr: 0x300, name: "last"},
		{addr: 0x100, name: "first"},
		{addr: 0x200, size: 0x8, name: "sized"},
		{addr: 0x100, name: "alias"},
	})
	require.Len(t, c.data.Symbols, 2)
	assert.Equal(t, symbol{Addr: 0x100, Size: 0x100, Func: 0}, c.data.Symbols[0])
	assert.Equal(t, symbol{Addr: 0x200, Size: 0x8, Func: 1}, c.data.Symbols[1])
	assert.Equal(t, "first", c.data.Functions[0].Name)
}

//go:noinline
func callerPC() (uintptr, string, int) {
	pc, file, line, _ := runtime.Caller(0)
	return pc, file, line
}

func TestBuildSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("self symbolication needs an ELF test binary")
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	f, err := elf.Open(exe)
	require.NoError(t, err)
	isPIE := f.Type == elf.ET_DYN
	hasDWARF := f.Section(".debug_info") != nil || f.Section(".zdebug_info") != nil
	f.Close()
	if isPIE {
		t.Skip("test binary is position independent")
	}
	if !hasDWARF {
		t.Skip("test binary was linked without DWARF")
	}
	raw, err := os.ReadFile(exe)
	require.NoError(t, err)

	data, err := buildData(raw)
	require.NoError(t, err)
	c := &SymCache{data: data}

	pc, file, line := callerPC()
	locs := c.Lookup(uint64(pc) - c.LoadAddress())
	require.NotEmpty(t, locs)
	assert.Equal(t, "github.com/stacksym/stacksym/pkg/symcache.callerPC", locs[0].Name)
	assert.Equal(t, "go", locs[0].Language)
	assert.Equal(t, file, locs[0].FullPath)
	assert.Equal(t, uint32(line), locs[0].Line)
}

const fixtureProgram = `package main

//go:noinline
func target() int {
	return 42
}

func main() {
	println(target())
}
`

// buildFixture compiles fixtureProgram for linux/amd64 with full debug info.
func buildFixture(t *testing.T) []byte {
	t.Helper()
	if testing.Short() {
		t.Skip("compiles a program")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not found")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(fixtureProgram), 0o644))
	out := filepath.Join(dir, "fixture")
	cmd := exec.CommandContext(t.Context(), goBin, "build", "-o", out, "main.go")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0", "GOFLAGS=", "GO111MODULE=on")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	return raw
}

func TestBuildGoFixture(t *testing.T) {
	raw := buildFixture(t)

	f, err := elf.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)
	syms, err := f.Symbols()
	require.NoError(t, err)
	var entry uint64
	for _, sym := range syms {
		if sym.Name == "main.target" {
			entry = sym.Value
		}
	}
	require.NotZero(t, entry, "main.target not in symbol table")

	blob, err := Build(raw)
	require.NoError(t, err)
	c, err := Load(blob)
	require.NoError(t, err)
	assert.Equal(t, "x86_64", c.Arch())

	_, scopes, lines, _ := c.Stats()
	assert.NotZero(t, scopes)
	assert.NotZero(t, lines)

	locs := c.Lookup(entry - c.LoadAddress())
	require.NotEmpty(t, locs)
	assert.Equal(t, "main.target", locs[0].Name)
	assert.Equal(t, "go", locs[0].Language)
	assert.Equal(t, "main.go", filepath.Base(locs[0].FullPath))
	assert.Contains(t, []uint32{4, 5}, locs[0].Line)
}
