package stacktrace

// Canonical platform names.
const (
	OSLinux   = "linux"
	OSMacOS   = "macos"
	OSWindows = "windows"

	ArchX86_64  = "x86_64"
	ArchAarch64 = "aarch64"
)

// enumString is a field whose first byte is either a reserved id from a fixed
// mapping or the length of a literal that follows it. Literals must be at least
// minLen bytes long so their length byte never collides with a reserved id.
type enumString struct {
	field  string
	names  []string
	minLen int
}

var (
	osEnum = enumString{
		field:  "os",
		names:  []string{OSLinux, OSMacOS, OSWindows},
		minLen: 3,
	}
	archEnum = enumString{
		field:  "arch",
		names:  []string{ArchX86_64, ArchAarch64},
		minLen: 2,
	}
)

func (e enumString) lookup(id byte) (string, bool) {
	if int(id) < len(e.names) {
		return e.names[id], true
	}
	return "", false
}

func (e enumString) id(name string) (byte, bool) {
	for i, n := range e.names {
		if n == name {
			return byte(i), true
		}
	}
	return 0, false
}
