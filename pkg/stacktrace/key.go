package stacktrace

// CacheKey returns the symbol cache key for h:
//
//	{arch}/{os}/{major}.{minor}.{patch}[-{canaryHash}]
//
// TraceVersion and DevBuild are not part of the key, so dev and release builds
// of the same version share an entry. The key says nothing about the debug
// info itself; if debug info changes without a version or canary bump the old
// entry keeps being served.
func CacheKey(h Header) string {
	key := h.Arch + "/" + h.OS + "/" + h.Version.semver()
	if h.Version.CanaryHash != "" {
		key += "-" + h.Version.CanaryHash
	}
	return key
}

// CacheKey is a shorthand for CacheKey(h).
func (h Header) CacheKey() string {
	return CacheKey(h)
}
