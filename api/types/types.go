// Package types contains the request and response bodies shared by the daemon and its clients.
package types

var (
	BuildVersion string
	BuildTime    string
)

// Version is the version struct
type Version struct {
	APIVersion     string `json:"api_version,omitempty"`
	OSType         string `json:"os_type,omitempty"`
	BuilderVersion string `json:"builder_version,omitempty"`
	BuildTime      string `json:"build_time,omitempty"`
}

// swagger:response genericError
type GenericError struct {
	Error string `json:"error"`
}

// swagger:response symCacheKeys
type SymCacheKeys struct {
	Keys []string `json:"keys"`
}

// swagger:response symCacheKey
type SymCacheKey struct {
	Key string `json:"key"`
}
