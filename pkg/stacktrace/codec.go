package stacktrace

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnsupportedTraceVersion is reserved for trace versions with a layout this
// package does not know. No such version exists yet.
var ErrUnsupportedTraceVersion = errors.New("unsupported trace version")

// InvalidEncodingError reports malformed or truncated wire bytes.
type InvalidEncodingError struct {
	// Offset is the byte offset of the field that failed to decode. For
	// base64url errors it is the offset into the text.
	Offset int
	Field  string
	Reason string
}

func (e *InvalidEncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid stack trace encoding at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("invalid stack trace encoding at offset %d (%s): %s", e.Offset, e.Field, e.Reason)
}

// DecodeString decodes base64url text into a StackTrace. Padding and
// surrounding whitespace are tolerated.
func DecodeString(text string) (*StackTrace, error) {
	text = strings.TrimRight(strings.TrimSpace(text), "=")
	buf, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		var cie base64.CorruptInputError
		if errors.As(err, &cie) {
			return nil, &InvalidEncodingError{Offset: int(cie), Reason: "invalid base64url"}
		}
		return nil, &InvalidEncodingError{Reason: err.Error()}
	}
	return Decode(buf)
}

// Decode decodes the binary stack trace layout.
func Decode(buf []byte) (*StackTrace, error) {
	d := &decoder{buf: buf}
	traceVersion, err := d.uvarint("traceVersion")
	if err != nil {
		return nil, err
	}
	l, err := layoutFor(traceVersion)
	if err != nil {
		return nil, err
	}
	st, err := l.decode(d)
	if err != nil {
		return nil, err
	}
	st.Header.TraceVersion = traceVersion
	return st, nil
}

// EncodeString encodes st as unpadded base64url text.
func EncodeString(st *StackTrace) (string, error) {
	buf, err := Encode(st)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Encode encodes st into the binary layout. It fails for values that cannot be
// represented exactly, such as literals too short to be told apart from a
// reserved id.
func Encode(st *StackTrace) ([]byte, error) {
	l, err := layoutFor(st.Header.TraceVersion)
	if err != nil {
		return nil, err
	}
	buf := binary.AppendUvarint(nil, st.Header.TraceVersion)
	return l.encode(buf, st)
}

// layout is the part of the format that follows traceVersion.
type layout struct {
	decode func(*decoder) (*StackTrace, error)
	encode func([]byte, *StackTrace) ([]byte, error)
}

var layoutV0 = layout{decode: decodeV0, encode: encodeV0}

// layoutFor selects the layout for a trace version. Only one layout exists so
// far and every version uses it.
func layoutFor(uint64) (layout, error) {
	return layoutV0, nil
}

func decodeV0(d *decoder) (*StackTrace, error) {
	var (
		st  StackTrace
		err error
	)
	if st.Header.OS, err = d.enumString(osEnum); err != nil {
		return nil, err
	}
	if st.Header.Arch, err = d.enumString(archEnum); err != nil {
		return nil, err
	}
	if st.Header.Version, err = d.version(); err != nil {
		return nil, err
	}
	st.Addrs = []uint64{}
	for !d.done() {
		addr, err := d.uvarint("addrs")
		if err != nil {
			return nil, err
		}
		st.Addrs = append(st.Addrs, addr)
	}
	return &st, nil
}

func encodeV0(buf []byte, st *StackTrace) ([]byte, error) {
	var err error
	if buf, err = appendEnumString(buf, osEnum, st.Header.OS); err != nil {
		return nil, err
	}
	if buf, err = appendEnumString(buf, archEnum, st.Header.Arch); err != nil {
		return nil, err
	}
	v := st.Header.Version
	buf = binary.AppendUvarint(buf, v.Major)
	buf = binary.AppendUvarint(buf, v.Minor)
	buf = binary.AppendUvarint(buf, v.Patch)
	if len(v.CanaryHash) > math.MaxUint8 {
		return nil, fmt.Errorf("canary hash is %d bytes, at most %d can be encoded", len(v.CanaryHash), math.MaxUint8)
	}
	buf = append(buf, byte(len(v.CanaryHash)))
	buf = append(buf, v.CanaryHash...)
	if v.DevBuild {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	for _, addr := range st.Addrs {
		buf = binary.AppendUvarint(buf, addr)
	}
	return buf, nil
}

func appendEnumString(buf []byte, e enumString, value string) ([]byte, error) {
	if id, ok := e.id(value); ok {
		return append(buf, id), nil
	}
	if len(value) < e.minLen || len(value) > math.MaxUint8 {
		return nil, fmt.Errorf("%s literal %q must be between %d and %d bytes", e.field, value, e.minLen, math.MaxUint8)
	}
	buf = append(buf, byte(len(value)))
	return append(buf, value...), nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) done() bool {
	return d.off >= len(d.buf)
}

func (d *decoder) fail(start int, field, reason string) error {
	return &InvalidEncodingError{Offset: start, Field: field, Reason: reason}
}

func (d *decoder) readByte(field string) (byte, error) {
	if d.done() {
		return 0, d.fail(d.off, field, "unexpected end of buffer")
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) uvarint(field string) (uint64, error) {
	start := d.off
	v, n := binary.Uvarint(d.buf[d.off:])
	switch {
	case n == 0:
		return 0, d.fail(start, field, "unexpected end of buffer")
	case n < 0:
		return 0, d.fail(start, field, "varint overflows 64 bits")
	}
	d.off += n
	return v, nil
}

func (d *decoder) readBytes(start int, field string, n int) ([]byte, error) {
	if len(d.buf)-d.off < n {
		return nil, d.fail(start, field, fmt.Sprintf("need %d bytes, %d left", n, len(d.buf)-d.off))
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// enumString reads a reserved id or, failing that, treats the byte as the
// length of a literal.
func (d *decoder) enumString(e enumString) (string, error) {
	start := d.off
	disc, err := d.readByte(e.field)
	if err != nil {
		return "", err
	}
	if name, ok := e.lookup(disc); ok {
		return name, nil
	}
	lit, err := d.readBytes(start, e.field, int(disc))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(lit), "�"), nil
}

func (d *decoder) version() (VersionInfo, error) {
	var (
		v   VersionInfo
		err error
	)
	if v.Major, err = d.uvarint("version.major"); err != nil {
		return v, err
	}
	if v.Minor, err = d.uvarint("version.minor"); err != nil {
		return v, err
	}
	if v.Patch, err = d.uvarint("version.patch"); err != nil {
		return v, err
	}
	start := d.off
	n, err := d.readByte("version.canaryHash")
	if err != nil {
		return v, err
	}
	if n > 0 {
		hash, err := d.readBytes(start, "version.canaryHash", int(n))
		if err != nil {
			return v, err
		}
		v.CanaryHash = strings.ToValidUTF8(string(hash), "�")
	}
	dev, err := d.readByte("version.devBuild")
	if err != nil {
		return v, err
	}
	v.DevBuild = dev == 1
	return v, nil
}
