package symcache

import (
	"debug/dwarf"
	"errors"
	"io"
)

// DW_AT_MIPS_linkage_name, still emitted by older GCC and clang
const attrMIPSLinkageName dwarf.Attr = 0x2007

type funcKey struct {
	name string
	lang string
}

type funcName struct {
	linkage string
	name    string
}

// collector converts DWARF and symbol tables into cacheData, interning file
// paths and function names as it goes.
type collector struct {
	data  *cacheData
	files map[string]uint32
	funcs map[funcKey]uint32

	d     *dwarf.Data
	refs  *dwarf.Reader
	names map[dwarf.Offset]funcName
}

func newCollector(obj *object) *collector {
	return &collector{
		data: &cacheData{
			Arch:     obj.arch,
			LoadAddr: obj.loadAddr,
		},
		files: make(map[string]uint32),
		funcs: make(map[funcKey]uint32),
		names: make(map[dwarf.Offset]funcName),
	}
}

func (c *collector) file(path string) uint32 {
	if idx, ok := c.files[path]; ok {
		return idx
	}
	idx := uint32(len(c.data.Files))
	c.data.Files = append(c.data.Files, path)
	c.files[path] = idx
	return idx
}

func (c *collector) function(name, lang string) uint32 {
	key := funcKey{name: name, lang: lang}
	if idx, ok := c.funcs[key]; ok {
		return idx
	}
	idx := uint32(len(c.data.Functions))
	c.data.Functions = append(c.data.Functions, function{
		Name:      name,
		Demangled: demangleName(name),
		Language:  lang,
	})
	c.funcs[key] = idx
	return idx
}

// collectDWARF walks every compile unit, recording its line table and the
// address ranges of its subprograms and inlined subroutines. Depth counts the
// enclosing function scopes of an entry.
func (c *collector) collectDWARF(d *dwarf.Data) error {
	c.d = d
	c.refs = d.Reader()

	var (
		lang      string
		lineFiles []uint32
		open      []bool // one per entry with children; true for function scopes
		depth     uint32
	)
	r := d.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		if e.Tag == 0 {
			if n := len(open); n > 0 {
				if open[n-1] {
					depth--
				}
				open = open[:n-1]
			}
			continue
		}

		isScope := false
		switch e.Tag {
		case dwarf.TagCompileUnit:
			open, depth = open[:0], 0
			lang = languageOf(e)
			lineFiles = c.collectLines(e)
		case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
			isScope = true
			c.collectScope(e, lang, depth, lineFiles)
		}
		if e.Children {
			open = append(open, isScope)
			if isScope {
				depth++
			}
		}
	}
}

// collectLines appends the unit's line rows and returns the mapping from the
// unit's file indexes to interned file indexes.
func (c *collector) collectLines(cu *dwarf.Entry) []uint32 {
	lr, err := c.d.LineReader(cu)
	if err != nil || lr == nil {
		return nil
	}
	var le dwarf.LineEntry
	for {
		if err := lr.Next(&le); err != nil {
			if !errors.Is(err, io.EOF) {
				return nil
			}
			break
		}
		row := lineRow{Addr: le.Address, File: noFile}
		if !le.EndSequence && le.File != nil {
			row.File = c.file(le.File.Name)
			row.Line = uint32(le.Line)
		}
		c.data.Lines = append(c.data.Lines, row)
	}
	files := lr.Files()
	mapped := make([]uint32, len(files))
	for i, f := range files {
		mapped[i] = noFile
		if f != nil {
			mapped[i] = c.file(f.Name)
		}
	}
	return mapped
}

func (c *collector) collectScope(e *dwarf.Entry, lang string, depth uint32, lineFiles []uint32) {
	ranges, err := c.d.Ranges(e)
	if err != nil || len(ranges) == 0 {
		return
	}
	n := c.nameOf(e, 0)
	name := n.linkage
	if name == "" {
		name = n.name
	}
	if name == "" {
		return
	}

	s := scope{Func: c.function(name, lang), Depth: depth, CallFile: noFile}
	if e.Tag == dwarf.TagInlinedSubroutine {
		if idx, ok := e.Val(dwarf.AttrCallFile).(int64); ok && idx >= 0 && idx < int64(len(lineFiles)) {
			s.CallFile = lineFiles[idx]
		}
		if line, ok := e.Val(dwarf.AttrCallLine).(int64); ok {
			s.CallLine = uint32(line)
		}
	}
	for _, rng := range ranges {
		if rng[1] <= rng[0] {
			continue
		}
		s.Low, s.High = rng[0], rng[1]
		c.data.Scopes = append(c.data.Scopes, s)
	}
}

// nameOf returns the linkage and plain names of e, following abstract origins
// and specifications for whichever is missing.
func (c *collector) nameOf(e *dwarf.Entry, hops int) funcName {
	if n, ok := c.names[e.Offset]; ok {
		return n
	}
	var n funcName
	n.linkage, _ = e.Val(dwarf.AttrLinkageName).(string)
	if n.linkage == "" {
		n.linkage, _ = e.Val(attrMIPSLinkageName).(string)
	}
	n.name, _ = e.Val(dwarf.AttrName).(string)

	if (n.linkage == "" || n.name == "") && hops < 8 {
		for _, attr := range []dwarf.Attr{dwarf.AttrAbstractOrigin, dwarf.AttrSpecification} {
			off, ok := e.Val(attr).(dwarf.Offset)
			if !ok {
				continue
			}
			c.refs.Seek(off)
			ref, err := c.refs.Next()
			if err != nil || ref == nil {
				continue
			}
			origin := c.nameOf(ref, hops+1)
			if n.linkage == "" {
				n.linkage = origin.linkage
			}
			if n.name == "" {
				n.name = origin.name
			}
			break
		}
	}
	c.names[e.Offset] = n
	return n
}
