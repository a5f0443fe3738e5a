package symcache

import (
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

var rustHashSuffix = regexp.MustCompile(`::h[0-9a-f]{16}$`)

// demangleName returns the human readable form of a linkage name without
// parameter lists or Rust disambiguation hashes. Names that are not mangled
// are returned unchanged.
func demangleName(name string) string {
	out := demangle.Filter(name, demangle.NoParams)
	if out == name && strings.HasPrefix(name, "__Z") {
		// Mach-O symbol tables keep an extra leading underscore
		if d := demangle.Filter(name[1:], demangle.NoParams); d != name[1:] {
			out = d
		}
	}
	return rustHashSuffix.ReplaceAllString(out, "")
}
