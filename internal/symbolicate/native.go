package symbolicate

import (
	"github.com/stacksym/stacksym/pkg/symcache"
)

type nativeResolver struct{}

// NativeResolver builds symbol caches with pkg/symcache.
func NativeResolver() Resolver {
	return nativeResolver{}
}

func (nativeResolver) Build(debugInfo []byte) ([]byte, error) {
	return symcache.Build(debugInfo)
}

func (nativeResolver) Load(blob []byte) (Handle, error) {
	c, err := symcache.Load(blob)
	if err != nil {
		return nil, err
	}
	return c, nil
}
