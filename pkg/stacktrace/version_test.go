package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    VersionInfo
		wantErr bool
	}{
		{in: "1.0.0", want: VersionInfo{Major: 1}},
		{in: "v2.3.4", want: VersionInfo{Major: 2, Minor: 3, Patch: 4}},
		{in: "1.0.0+dev", want: VersionInfo{Major: 1, DevBuild: true}},
		{
			in:   "1.0.0-134f14fe3e9a2b1c+dev",
			want: VersionInfo{Major: 1, CanaryHash: "134f14fe3e9a2b1c", DevBuild: true},
		},
		{in: "2.1.0-abcdef0", want: VersionInfo{Major: 2, Minor: 1, CanaryHash: "abcdef0"}},
		{in: "not a version", wantErr: true},
		{in: "1.0.0+release", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionStringRoundTrip(t *testing.T) {
	for _, v := range []VersionInfo{
		{Major: 1},
		{Major: 1, Minor: 2, Patch: 3, DevBuild: true},
		{Major: 1, CanaryHash: "134f14fe", DevBuild: true},
		{Major: 10, Minor: 0, Patch: 1, CanaryHash: "deadbeef"},
	} {
		got, err := ParseVersion(v.String())
		require.NoError(t, err, v.String())
		assert.Equal(t, v, got)
	}
}
