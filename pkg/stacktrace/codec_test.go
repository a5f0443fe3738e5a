package stacktrace

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioA(t *testing.T) {
	st := &StackTrace{
		Header: Header{
			TraceVersion: 1,
			OS:           OSLinux,
			Arch:         ArchX86_64,
			Version:      VersionInfo{Major: 1},
		},
		Addrs: []uint64{1, 2, 3},
	}

	buf, err := Encode(st)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 1, 0, 0, 0, 0, 1, 2, 3}, buf)

	text, err := EncodeString(st)
	require.NoError(t, err)
	assert.Equal(t, "AQAAAQAAAAABAgM", text)

	got, err := DecodeString(text)
	require.NoError(t, err)
	if diff := cmp.Diff(st, got); diff != "" {
		t.Fatalf("decode(encode(x)) mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "x86_64/linux/1.0.0", CacheKey(got.Header))
}

func TestScenarioCUnknownOS(t *testing.T) {
	buf := append([]byte{0, 7}, "otheros"...)
	buf = append(buf, 0, 1, 0, 0, 0, 0)

	st, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, "otheros", st.Header.OS)
	assert.Equal(t, ArchX86_64, st.Header.Arch)
	assert.Equal(t, VersionInfo{Major: 1}, st.Header.Version)
	assert.Empty(t, st.Addrs)

	st, err = DecodeString("AAdvdGhlcm9zAAEAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "otheros", st.Header.OS)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		st   StackTrace
	}{
		{
			name: "release no addrs",
			st: StackTrace{
				Header: Header{OS: OSMacOS, Arch: ArchAarch64, Version: VersionInfo{Major: 2, Minor: 1, Patch: 4}},
				Addrs:  []uint64{},
			},
		},
		{
			name: "canary dev build",
			st: StackTrace{
				Header: Header{
					TraceVersion: 3,
					OS:           OSWindows,
					Arch:         ArchX86_64,
					Version:      VersionInfo{Major: 1, Minor: 46, Patch: 0, CanaryHash: "134f14fe0e9d", DevBuild: true},
				},
				Addrs: []uint64{0x1234, 0x7fff_ffff, 0},
			},
		},
		{
			name: "dev build without canary",
			st: StackTrace{
				Header: Header{OS: OSLinux, Arch: ArchAarch64, Version: VersionInfo{Patch: 9, DevBuild: true}},
				Addrs:  []uint64{42},
			},
		},
		{
			name: "canary without dev build",
			st: StackTrace{
				Header: Header{OS: OSLinux, Arch: ArchX86_64, Version: VersionInfo{CanaryHash: "c"}},
				Addrs:  []uint64{7},
			},
		},
		{
			name: "literal os and arch",
			st: StackTrace{
				Header: Header{OS: "freebsd", Arch: "riscv64", Version: VersionInfo{Major: 300, Minor: 1 << 20}},
				Addrs:  []uint64{math.MaxUint64, 1 << 63, 127, 128},
			},
		},
		{
			name: "shortest literals",
			st: StackTrace{
				Header: Header{OS: "bsd", Arch: "rv", Version: VersionInfo{Major: math.MaxUint64}},
				Addrs:  []uint64{1},
			},
		},
		{
			name: "longest literal",
			st: StackTrace{
				Header: Header{OS: strings.Repeat("o", 255), Arch: ArchX86_64, Version: VersionInfo{CanaryHash: strings.Repeat("f", 255)}},
				Addrs:  []uint64{1, 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := EncodeString(&tt.st)
			require.NoError(t, err)
			got, err := DecodeString(text)
			require.NoError(t, err)
			if diff := cmp.Diff(&tt.st, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeRejectsAmbiguousLiterals(t *testing.T) {
	tests := []struct {
		name   string
		header Header
	}{
		{"os collides with reserved id", Header{OS: "ab", Arch: ArchX86_64}},
		{"empty os", Header{OS: "", Arch: ArchX86_64}},
		{"arch collides with reserved id", Header{OS: OSLinux, Arch: "a"}},
		{"os too long", Header{OS: strings.Repeat("x", 256), Arch: ArchX86_64}},
		{"canary too long", Header{OS: OSLinux, Arch: ArchX86_64, Version: VersionInfo{CanaryHash: strings.Repeat("x", 256)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(&StackTrace{Header: tt.header})
			assert.Error(t, err)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	header := []byte{1, 0, 0, 1, 0, 0, 0, 0}
	tests := []struct {
		name   string
		buf    []byte
		offset int
		field  string
	}{
		{"empty", nil, 0, "traceVersion"},
		{"missing os", []byte{0}, 1, "os"},
		{"truncated os literal", []byte{0, 5, 'a', 'b'}, 1, "os"},
		{"missing arch", []byte{0, 0}, 2, "arch"},
		{"truncated arch literal", []byte{0, 0, 9, 'r', 'i'}, 2, "arch"},
		{"missing major", []byte{0, 0, 0}, 3, "version.major"},
		{"truncated minor", []byte{0, 0, 0, 1, 0x80}, 4, "version.minor"},
		{"missing canary length", []byte{0, 0, 0, 1, 0, 0}, 6, "version.canaryHash"},
		{"truncated canary", []byte{0, 0, 0, 1, 0, 0, 3, 'a'}, 6, "version.canaryHash"},
		{"missing dev build", []byte{0, 0, 0, 1, 0, 0, 0}, 7, "version.devBuild"},
		{"truncated address", append(append([]byte{}, header...), 1, 0x80), 9, "addrs"},
		{"overflowing trace version", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0, "traceVersion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			require.Error(t, err)
			var ie *InvalidEncodingError
			require.True(t, errors.As(err, &ie), "expected *InvalidEncodingError, got %T", err)
			assert.Equal(t, tt.offset, ie.Offset)
			assert.Equal(t, tt.field, ie.Field)
		})
	}
}

func TestDecodeStringInvalidBase64(t *testing.T) {
	_, err := DecodeString("AQ$A")
	var ie *InvalidEncodingError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 2, ie.Offset)
}

func TestDecodeStringToleratesPadding(t *testing.T) {
	st, err := DecodeString(" AQAAAQAAAAABAgM=\n")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, st.Addrs)
}

func TestDecodeLenientDevBuild(t *testing.T) {
	st, err := Decode([]byte{0, 0, 0, 1, 0, 0, 0, 2})
	require.NoError(t, err)
	assert.False(t, st.Header.Version.DevBuild)
}
