// Package symcache builds and queries symbol caches: compact, self-contained
// snapshots of the line tables, inline scopes and symbols of a debug file that
// resolve image-relative addresses to source locations.
package symcache

import (
	"errors"
	"math"
	"sort"

	"github.com/stacksym/stacksym/pkg/stacktrace"
)

const unknownFile = "<unknown file>"

// noFile marks a missing file reference and, in line rows, the end of a sequence.
const noFile = math.MaxUint32

var (
	// ErrUnsupportedFormat is returned for debug files that are not ELF, Mach-O or PE.
	ErrUnsupportedFormat = errors.New("unsupported debug file format")
	// ErrFatArchive is returned for universal binaries with more than one architecture.
	ErrFatArchive = errors.New("fat archives are not supported")
	// ErrNoDebugInfo is returned when a file has neither DWARF nor a symbol table.
	ErrNoDebugInfo = errors.New("no debug information found")
	// ErrInvalidCache is returned by Load for blobs it cannot parse.
	ErrInvalidCache = errors.New("invalid symbol cache")
)

type function struct {
	Name      string
	Demangled string
	Language  string
}

type scope struct {
	Low, High uint64
	Func      uint32
	Depth     uint32
	CallFile  uint32
	CallLine  uint32
}

type lineRow struct {
	Addr uint64
	File uint32
	Line uint32
}

type symbol struct {
	Addr uint64
	Size uint64
	Func uint32
}

// cacheData is the serialized form of a SymCache. Scopes, Lines and Symbols are
// sorted by address; all addresses are absolute within the image.
type cacheData struct {
	Arch      string
	LoadAddr  uint64
	Files     []string
	Functions []function
	Scopes    []scope
	Lines     []lineRow
	Symbols   []symbol
}

// SymCache is a loaded symbol cache. It is safe for concurrent use.
type SymCache struct {
	data *cacheData
}

// Load parses a blob produced by Build.
func Load(blob []byte) (*SymCache, error) {
	data, err := decode(blob)
	if err != nil {
		return nil, err
	}
	return &SymCache{data: data}, nil
}

// Arch is the architecture of the image the cache was built from.
func (c *SymCache) Arch() string { return c.data.Arch }

// LoadAddress is the address the image expects to be loaded at. Lookups take
// addresses relative to it.
func (c *SymCache) LoadAddress() uint64 { return c.data.LoadAddr }

// Stats reports the number of functions, scopes, line rows and symbols.
func (c *SymCache) Stats() (functions, scopes, lines, symbols int) {
	return len(c.data.Functions), len(c.data.Scopes), len(c.data.Lines), len(c.data.Symbols)
}

// Resolve looks up every address. The result has the same length and order as addrs.
func (c *SymCache) Resolve(addrs []uint64) [][]stacktrace.FrameLocation {
	out := make([][]stacktrace.FrameLocation, len(addrs))
	for i, addr := range addrs {
		out[i] = c.Lookup(addr)
	}
	return out
}

// Lookup resolves an image-relative address to its inline chain, innermost
// function first. An unknown address yields an empty slice.
func (c *SymCache) Lookup(addr uint64) []stacktrace.FrameLocation {
	if addr > math.MaxUint64-c.data.LoadAddr {
		return []stacktrace.FrameLocation{}
	}
	pc := addr + c.data.LoadAddr
	chain := c.scopesAt(pc)
	if len(chain) == 0 {
		return c.symbolAt(pc)
	}
	locs := make([]stacktrace.FrameLocation, 0, len(chain))
	file, line := c.lineAt(pc)
	for _, s := range chain {
		locs = append(locs, c.location(s.Func, file, line))
		file, line = s.CallFile, s.CallLine
	}
	return locs
}

// scopesAt returns the scopes containing pc ordered innermost first. Nested
// scopes sort after their enclosing function, so scanning backwards from pc
// stops at the first top-level scope.
func (c *SymCache) scopesAt(pc uint64) []scope {
	scopes := c.data.Scopes
	i := sort.Search(len(scopes), func(i int) bool { return scopes[i].Low > pc }) - 1
	var chain []scope
	seen := make(map[uint32]bool)
	for ; i >= 0; i-- {
		s := scopes[i]
		if pc < s.High && !seen[s.Depth] {
			seen[s.Depth] = true
			chain = append(chain, s)
		}
		if s.Depth == 0 {
			break
		}
	}
	sort.Slice(chain, func(a, b int) bool { return chain[a].Depth > chain[b].Depth })
	return chain
}

func (c *SymCache) lineAt(pc uint64) (file, line uint32) {
	lines := c.data.Lines
	i := sort.Search(len(lines), func(i int) bool { return lines[i].Addr > pc }) - 1
	if i < 0 || lines[i].File == noFile {
		return noFile, 0
	}
	return lines[i].File, lines[i].Line
}

func (c *SymCache) symbolAt(pc uint64) []stacktrace.FrameLocation {
	syms := c.data.Symbols
	i := sort.Search(len(syms), func(i int) bool { return syms[i].Addr > pc }) - 1
	if i < 0 || pc >= syms[i].Addr+syms[i].Size {
		return []stacktrace.FrameLocation{}
	}
	file, line := c.lineAt(pc)
	return []stacktrace.FrameLocation{c.location(syms[i].Func, file, line)}
}

func (c *SymCache) location(fn, file, line uint32) stacktrace.FrameLocation {
	f := c.data.Functions[fn]
	path := unknownFile
	if file != noFile {
		path = c.data.Files[file]
	}
	return stacktrace.FrameLocation{
		DemangledName: f.Demangled,
		Name:          f.Name,
		Language:      f.Language,
		FullPath:      path,
		Line:          line,
	}
}
