package symcache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/ulikunitz/xz"
)

const (
	blobMagic = "SYMC"
	// FormatVersion is bumped whenever the layout of cacheData changes.
	FormatVersion uint32 = 1
)

func encode(data *cacheData) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(blobMagic)
	if err := binary.Write(&buf, binary.LittleEndian, FormatVersion); err != nil {
		return nil, err
	}
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if err := gob.NewEncoder(xw).Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode symbol cache: %w", err)
	}
	if err := xw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress symbol cache: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(blob []byte) (*cacheData, error) {
	if len(blob) < len(blobMagic)+4 || string(blob[:len(blobMagic)]) != blobMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidCache)
	}
	if v := binary.LittleEndian.Uint32(blob[len(blobMagic):]); v != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d (expected %d)", ErrInvalidCache, v, FormatVersion)
	}
	xr, err := xz.NewReader(bytes.NewReader(blob[len(blobMagic)+4:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCache, err)
	}
	var data cacheData
	if err := gob.NewDecoder(xr).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCache, err)
	}
	if err := data.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCache, err)
	}
	return &data, nil
}

// validate checks every index so lookups on a corrupt blob cannot panic.
func (d *cacheData) validate() error {
	nfuncs, nfiles := uint32(len(d.Functions)), uint32(len(d.Files))
	fileOK := func(f uint32) bool { return f == noFile || f < nfiles }
	for i, s := range d.Scopes {
		if s.Func >= nfuncs || !fileOK(s.CallFile) {
			return fmt.Errorf("scope %d out of range", i)
		}
	}
	for i, l := range d.Lines {
		if !fileOK(l.File) {
			return fmt.Errorf("line row %d out of range", i)
		}
	}
	for i, s := range d.Symbols {
		if s.Func >= nfuncs {
			return fmt.Errorf("symbol %d out of range", i)
		}
	}
	return nil
}
