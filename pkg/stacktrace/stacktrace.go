// Package stacktrace implements the compact binary stack trace format and the
// types shared by everything that symbolicates it.
package stacktrace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VersionInfo is the version of the program that produced a trace.
type VersionInfo struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
	// CanaryHash identifies a non-release build; empty means a release build.
	CanaryHash string `json:"canaryHash,omitempty"`
	DevBuild   bool   `json:"devBuild"`
}

// Header describes the platform and version a trace was captured on.
type Header struct {
	TraceVersion uint64      `json:"traceVersion"`
	OS           string      `json:"os"`
	Arch         string      `json:"arch"`
	Version      VersionInfo `json:"version"`
}

// StackTrace is a decoded trace. Frame N corresponds to Addrs[N].
type StackTrace struct {
	Header Header
	Addrs  []uint64
}

// FrameLocation is one source-level attribution for an address.
type FrameLocation struct {
	DemangledName string `json:"demangledName"`
	Name          string `json:"name"`
	Language      string `json:"language"`
	FullPath      string `json:"fullPath"`
	Line          uint32 `json:"line"`
}

// SymbolicatedFrame is an address together with its resolved locations. An
// empty Locations slice means the address could not be resolved.
type SymbolicatedFrame struct {
	Addr      uint64
	Locations []FrameLocation
}

// SymbolicatedStackTrace is a StackTrace with every address resolved.
type SymbolicatedStackTrace struct {
	Header Header              `json:"header"`
	Frames []SymbolicatedFrame `json:"frames"`
}

// FormatAddr renders an address the way it appears in JSON documents.
func FormatAddr(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}

// ParseAddr parses an address rendered by FormatAddr. Plain decimal is accepted too.
func ParseAddr(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		return strconv.ParseUint(hex, 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

type jsonFrame struct {
	Addr      string          `json:"addr"`
	Locations []FrameLocation `json:"locations"`
}

// MarshalJSON implements json.Marshaler.
func (f SymbolicatedFrame) MarshalJSON() ([]byte, error) {
	locs := f.Locations
	if locs == nil {
		locs = []FrameLocation{}
	}
	return json.Marshal(jsonFrame{Addr: FormatAddr(f.Addr), Locations: locs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *SymbolicatedFrame) UnmarshalJSON(data []byte) error {
	var jf jsonFrame
	if err := json.Unmarshal(data, &jf); err != nil {
		return err
	}
	addr, err := ParseAddr(jf.Addr)
	if err != nil {
		return fmt.Errorf("invalid frame address %q: %w", jf.Addr, err)
	}
	f.Addr = addr
	f.Locations = jf.Locations
	if f.Locations == nil {
		f.Locations = []FrameLocation{}
	}
	return nil
}

type jsonTrace struct {
	Header Header   `json:"header"`
	Addrs  []string `json:"addrs"`
}

// MarshalJSON implements json.Marshaler.
func (st StackTrace) MarshalJSON() ([]byte, error) {
	addrs := make([]string, len(st.Addrs))
	for i, addr := range st.Addrs {
		addrs[i] = FormatAddr(addr)
	}
	return json.Marshal(jsonTrace{Header: st.Header, Addrs: addrs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (st *StackTrace) UnmarshalJSON(data []byte) error {
	var jt jsonTrace
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	st.Header = jt.Header
	st.Addrs = make([]uint64, len(jt.Addrs))
	for i, s := range jt.Addrs {
		addr, err := ParseAddr(s)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", s, err)
		}
		st.Addrs[i] = addr
	}
	return nil
}
