package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	base := Header{
		TraceVersion: 0,
		OS:           OSMacOS,
		Arch:         ArchAarch64,
		Version:      VersionInfo{Major: 2, Minor: 1, Patch: 4},
	}
	assert.Equal(t, "aarch64/macos/2.1.4", base.CacheKey())

	canary := base
	canary.Version.CanaryHash = "134f14fe"
	assert.Equal(t, "aarch64/macos/2.1.4-134f14fe", canary.CacheKey())

	dev := base
	dev.Version.DevBuild = true
	dev.TraceVersion = 7
	assert.Equal(t, base.CacheKey(), dev.CacheKey(), "devBuild and traceVersion must not affect the key")

	literal := base
	literal.OS = "otheros"
	literal.Arch = "riscv64"
	assert.Equal(t, "riscv64/otheros/2.1.4", CacheKey(literal))
}
