package symcache

import (
	"fmt"
	"sort"
)

// Build converts a debug file (ELF, Mach-O or PE, with or without DWARF) into
// a symbol cache blob that Load accepts.
func Build(debugInfo []byte) ([]byte, error) {
	data, err := buildData(debugInfo)
	if err != nil {
		return nil, err
	}
	return encode(data)
}

func buildData(debugInfo []byte) (*cacheData, error) {
	obj, err := openObject(debugInfo)
	if err != nil {
		return nil, err
	}
	if obj.dwarf == nil && len(obj.symbols) == 0 {
		return nil, ErrNoDebugInfo
	}

	c := newCollector(obj)
	if obj.dwarf != nil {
		if err := c.collectDWARF(obj.dwarf); err != nil {
			return nil, fmt.Errorf("failed to read DWARF: %w", err)
		}
	}
	c.collectSymbols(obj.symbols)
	c.data.sort()
	return c.data, nil
}

// collectSymbols records symbol table entries. Symbols without a size extend
// to the next symbol, the way nm -S reports them.
func (c *collector) collectSymbols(raw []rawSymbol) {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].addr < raw[j].addr })
	for i, s := range raw {
		if i > 0 && raw[i-1].addr == s.addr {
			continue
		}
		size := s.size
		if size == 0 {
			for _, next := range raw[i+1:] {
				if next.addr > s.addr {
					size = next.addr - s.addr
					break
				}
			}
		}
		if size == 0 {
			continue
		}
		c.data.Symbols = append(c.data.Symbols, symbol{
			Addr: s.addr,
			Size: size,
			Func: c.function(s.name, languageUnknown),
		})
	}
}

func (d *cacheData) sort() {
	sort.SliceStable(d.Scopes, func(i, j int) bool {
		a, b := d.Scopes[i], d.Scopes[j]
		if a.Low != b.Low {
			return a.Low < b.Low
		}
		return a.Depth < b.Depth
	})
	// an end of sequence row sorts before a row starting the next sequence at the same address
	sort.SliceStable(d.Lines, func(i, j int) bool {
		a, b := d.Lines[i], d.Lines[j]
		if a.Addr != b.Addr {
			return a.Addr < b.Addr
		}
		return a.File == noFile && b.File != noFile
	})
}
