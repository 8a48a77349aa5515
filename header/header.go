// Package header implements the archive's fixed 128-byte header: the
// dimension/parameter fields the core needs to drive decompression, plus
// the entry[] cumulative offset table locating each subfile within the
// blob.
//
// spec.md's external-interface section does not reserve room for a magic
// number or integrity guard; this implementation adds one (see the header
// endianness/magic design note in SPEC_FULL.md) in the budget left over
// after the documented fields, the way the teacher's StreamInfo block
// reserves trailing bits for a future MD5 field.
package header

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/cuszgo/sz/szerr"
)

// Size is the fixed on-disk header size in bytes.
const Size = 128

// Entry indices into Header.Entry, matching spec.md §6's subfile slots.
const (
	EntryHeader = iota
	EntryAnchor
	EntryVLE
	EntrySPFMT
	EntryEnd
	entryCount
)

var magic = [8]byte{'S', 'Z', '1', 0, 0, 0, 0, 0}

const checksummedLen = 64 // bytes covered by the integrity guard: every field up to (not including) magic.

// Header is the parsed form of an archive's first 128 bytes.
type Header struct {
	X, Y, Z         uint32
	Radius          int32
	VlePardeg       int32
	Eb              float64
	ByteVLE         int32
	CodecsInUse     uint32
	NzDensityFactor int32
	HeaderNbyte     uint32
	Entry           [entryCount]uint32
}

// Marshal encodes h into a 128-byte little-endian header, appending the
// magic number and an xxhash64 guard word over the preceding field bytes.
func (h Header) Marshal() ([Size]byte, error) {
	var buf bytes.Buffer
	fields := []interface{}{
		h.X, h.Y, h.Z,
		h.Radius,
		h.VlePardeg,
		h.Eb,
		h.ByteVLE,
		h.CodecsInUse,
		h.NzDensityFactor,
		h.HeaderNbyte,
		h.Entry,
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return [Size]byte{}, szerr.Wrap(szerr.HeaderInvalid, "marshal header field", err)
		}
	}
	if buf.Len() != checksummedLen {
		return [Size]byte{}, szerr.Newf(szerr.HeaderInvalid, "internal error: encoded fixed fields are %d bytes, want %d", buf.Len(), checksummedLen)
	}

	var out [Size]byte
	copy(out[:checksummedLen], buf.Bytes())
	copy(out[checksummedLen:checksummedLen+8], magic[:])
	sum := xxhash.Sum64(out[:checksummedLen])
	binary.LittleEndian.PutUint64(out[checksummedLen+8:checksummedLen+16], sum)
	// bytes [checksummedLen+16, Size) stay zero padding.
	return out, nil
}

// Unmarshal parses a 128-byte header, validating the magic number, the
// integrity guard, and the entry[] monotonicity invariant against
// blobLen, the total length of the archive blob it came from.
func Unmarshal(raw []byte, blobLen int64) (Header, error) {
	if len(raw) < Size {
		return Header{}, szerr.Newf(szerr.HeaderInvalid, "header buffer too short: %d bytes, want %d", len(raw), Size)
	}
	if !bytes.Equal(raw[checksummedLen:checksummedLen+8], magic[:]) {
		return Header{}, szerr.New(szerr.HeaderInvalid, "bad magic number")
	}
	wantSum := binary.LittleEndian.Uint64(raw[checksummedLen+8 : checksummedLen+16])
	gotSum := xxhash.Sum64(raw[:checksummedLen])
	if wantSum != gotSum {
		return Header{}, szerr.New(szerr.HeaderInvalid, "header integrity guard mismatch")
	}

	r := bytes.NewReader(raw[:checksummedLen])
	var h Header
	fields := []interface{}{
		&h.X, &h.Y, &h.Z,
		&h.Radius,
		&h.VlePardeg,
		&h.Eb,
		&h.ByteVLE,
		&h.CodecsInUse,
		&h.NzDensityFactor,
		&h.HeaderNbyte,
		&h.Entry,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Header{}, szerr.Wrap(szerr.HeaderInvalid, "unmarshal header field", err)
		}
	}

	for k := 1; k < entryCount; k++ {
		if h.Entry[k] < h.Entry[k-1] {
			return Header{}, szerr.Newf(szerr.HeaderInvalid, "entry[%d]=%d < entry[%d]=%d, expected non-decreasing", k, h.Entry[k], k-1, h.Entry[k-1])
		}
	}
	if int64(h.Entry[EntryEnd]) != blobLen {
		return Header{}, szerr.Newf(szerr.HeaderInvalid, "entry[END]=%d does not match blob length %d", h.Entry[EntryEnd], blobLen)
	}
	return h, nil
}
