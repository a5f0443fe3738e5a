package symcache

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

// object is the format independent view of a debug file.
type object struct {
	arch     string
	loadAddr uint64
	dwarf    *dwarf.Data // nil when the file has no DWARF
	symbols  []rawSymbol
}

type rawSymbol struct {
	addr uint64
	size uint64
	name string
}

func openObject(data []byte) (*object, error) {
	if len(data) < 4 {
		return nil, ErrUnsupportedFormat
	}
	switch be := binary.BigEndian.Uint32(data); {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		return openELF(data)
	case be == uint32(types.Magic32) || be == uint32(types.Magic64) || be == 0xcefaedfe || be == 0xcffaedfe:
		return openMachO(data)
	case be == uint32(types.MagicFat) || be == 0xcafebabf:
		return openFat(data)
	case data[0] == 'M' && data[1] == 'Z':
		return openPE(data)
	}
	return nil, ErrUnsupportedFormat
}

func openELF(data []byte) (*object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}
	defer f.Close()

	obj := &object{arch: elfArch(f.Machine)}
	first := true
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD && (first || p.Vaddr < obj.loadAddr) {
			obj.loadAddr = p.Vaddr
			first = false
		}
	}
	if d, err := f.DWARF(); err == nil {
		obj.dwarf = d
	}

	syms, err := f.Symbols()
	if err != nil || len(syms) == 0 {
		syms, _ = f.DynamicSymbols()
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
			continue
		}
		if int(s.Section) >= len(f.Sections) || f.Sections[s.Section].Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		obj.symbols = append(obj.symbols, rawSymbol{addr: s.Value, size: s.Size, name: s.Name})
	}
	return obj, nil
}

func elfArch(m elf.Machine) string {
	switch m {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_AARCH64:
		return "aarch64"
	case elf.EM_386:
		return "x86"
	case elf.EM_ARM:
		return "arm"
	case elf.EM_RISCV:
		return "riscv64"
	}
	return strings.ToLower(strings.TrimPrefix(m.String(), "EM_"))
}

func openFat(data []byte) (*object, error) {
	ff, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse universal binary: %w", err)
	}
	if len(ff.Arches) != 1 {
		return nil, fmt.Errorf("%w: found %d architectures", ErrFatArchive, len(ff.Arches))
	}
	return machoObject(ff.Arches[0].File)
}

func openMachO(data []byte) (*object, error) {
	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MachO: %w", err)
	}
	return machoObject(m)
}

func machoObject(m *macho.File) (*object, error) {
	obj := &object{}
	switch m.CPU {
	case types.CPUAmd64:
		obj.arch = "x86_64"
	case types.CPUArm64:
		obj.arch = "aarch64"
	default:
		obj.arch = strings.ToLower(m.CPU.String())
	}
	if text := m.Segment("__TEXT"); text != nil {
		obj.loadAddr = text.Addr
	}

	d, err := machoDWARF(m)
	if err != nil && !errors.Is(err, errNoDWARF) {
		return nil, err
	}
	obj.dwarf = d

	if m.Symtab != nil {
		for _, s := range m.Symtab.Syms {
			// skip stabs and anything not defined in a section
			if s.Type&0xe0 != 0 || s.Type&0x0e != 0x0e || s.Name == "" {
				continue
			}
			obj.symbols = append(obj.symbols, rawSymbol{
				addr: s.Value,
				name: strings.TrimPrefix(s.Name, "_"),
			})
		}
	}
	return obj, nil
}

var errNoDWARF = errors.New("no __DWARF segment")

// machoDWARF assembles DWARF from the __DWARF segment. Section names are
// truncated to 16 bytes, so __debug_str_offs stands in for .debug_str_offsets.
func machoDWARF(m *macho.File) (*dwarf.Data, error) {
	sections := make(map[string][]byte)
	for _, sec := range m.Sections {
		if sec.Seg != "__DWARF" || !strings.HasPrefix(sec.Name, "__debug_") {
			continue
		}
		dat, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", sec.Seg, sec.Name, err)
		}
		sections[strings.TrimPrefix(sec.Name, "__debug_")] = dat
	}
	if sections["info"] == nil {
		return nil, errNoDWARF
	}
	d, err := dwarf.New(sections["abbrev"], nil, nil, sections["info"], sections["line"], nil, sections["ranges"], sections["str"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse DWARF: %w", err)
	}
	for short, name := range map[string]string{
		"addr":     ".debug_addr",
		"line_str": ".debug_line_str",
		"str_offs": ".debug_str_offsets",
		"rnglists": ".debug_rnglists",
		"loclists": ".debug_loclists",
	} {
		if dat, ok := sections[short]; ok {
			if err := d.AddSection(name, dat); err != nil {
				return nil, fmt.Errorf("failed to add DWARF section %s: %w", name, err)
			}
		}
	}
	return d, nil
}

func openPE(data []byte) (*object, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PE: %w", err)
	}
	defer f.Close()

	obj := &object{}
	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		obj.arch = "x86_64"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		obj.arch = "aarch64"
	case pe.IMAGE_FILE_MACHINE_I386:
		obj.arch = "x86"
	default:
		obj.arch = fmt.Sprintf("pe-%#x", f.Machine)
	}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		obj.loadAddr = oh.ImageBase
	case *pe.OptionalHeader32:
		obj.loadAddr = uint64(oh.ImageBase)
	}
	if d, err := f.DWARF(); err == nil {
		obj.dwarf = d
	}

	const functionType = 0x20
	for _, s := range f.Symbols {
		if s.Type != functionType || s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.Sections) {
			continue
		}
		sec := f.Sections[s.SectionNumber-1]
		obj.symbols = append(obj.symbols, rawSymbol{
			addr: obj.loadAddr + uint64(sec.VirtualAddress) + uint64(s.Value),
			name: s.Name,
		})
	}
	return obj, nil
}
