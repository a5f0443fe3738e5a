package stacktrace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

const devMetadata = "dev"

// ParseVersion parses a version string such as "1.0.0", "1.0.0+dev" or
// "1.0.0-134f14fe+dev". A pre-release becomes the canary hash and a "dev"
// build metadata marks a dev build.
func ParseVersion(s string) (VersionInfo, error) {
	v, err := version.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return VersionInfo{}, fmt.Errorf("failed to parse version %q: %w", s, err)
	}
	segs := v.Segments64()
	if len(segs) < 3 {
		return VersionInfo{}, fmt.Errorf("failed to parse version %q: expected major.minor.patch", s)
	}
	md := v.Metadata()
	if md != "" && md != devMetadata {
		return VersionInfo{}, fmt.Errorf("failed to parse version %q: unknown build metadata %q", s, md)
	}
	return VersionInfo{
		Major:      uint64(segs[0]),
		Minor:      uint64(segs[1]),
		Patch:      uint64(segs[2]),
		CanaryHash: v.Prerelease(),
		DevBuild:   md == devMetadata,
	}, nil
}

// String renders the version in the form accepted by ParseVersion.
func (v VersionInfo) String() string {
	var sb strings.Builder
	sb.WriteString(v.semver())
	if v.CanaryHash != "" {
		sb.WriteString("-" + v.CanaryHash)
	}
	if v.DevBuild {
		sb.WriteString("+" + devMetadata)
	}
	return sb.String()
}

func (v VersionInfo) semver() string {
	return strconv.FormatUint(v.Major, 10) + "." +
		strconv.FormatUint(v.Minor, 10) + "." +
		strconv.FormatUint(v.Patch, 10)
}
