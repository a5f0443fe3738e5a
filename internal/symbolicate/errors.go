package symbolicate

import "errors"

var (
	// ErrStorage is returned when the symbol cache store fails for a reason
	// other than a missing entry.
	ErrStorage = errors.New("symbol cache storage failed")
	// ErrDebugInfoUnavailable is returned on a cache miss when no debug info
	// was provided and none could be fetched.
	ErrDebugInfoUnavailable = errors.New("debug info unavailable")
	// ErrBuildFailed is returned when debug info cannot be converted into a
	// symbol cache. Nothing is persisted.
	ErrBuildFailed = errors.New("failed to build symbol cache")
	// ErrResolveFailed is returned when a stored symbol cache cannot be loaded.
	ErrResolveFailed = errors.New("failed to load symbol cache")
)
