// Wire/file format (§4.5, §6): magic + length-prefixed meta + length-prefixed
// packed blob. Readers additionally tolerate three older shapes so that a
// long-lived archive of recordings never becomes unreadable after an
// upgrade (§4.5 "Readers must recognize older magics").
package frame

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/scomesh/puffin/stream"
)

const (
	magicPFD2 = "PFD2"
	magicPFD1 = "PFD1"
	magicPFD0 = "PFD0"
)

var (
	// ErrUnsupportedVersion is returned for PFD0, which this reader
	// deliberately refuses to decode (§4.5).
	ErrUnsupportedVersion = errors.New("frame: PFD0 is no longer supported")
	// ErrNewerVersion is returned for an unrecognized "PFDx" magic newer
	// than this reader knows about (§7 "Version mismatch (read)").
	ErrNewerVersion = errors.New("frame: unknown frame version newer than this reader; update your reader")
	// ErrEndOfStream is returned by Decode when it reads the clean
	// end-of-stream sentinel (a u32 zero where a magic was expected).
	ErrEndOfStream = errors.New("frame: end of stream")
)

// Encode writes fd in the current PFD2 format: magic, u32 meta_len, meta
// bytes (msgp), u32 packed_len, packed bytes (lz4). Encode forces fd into
// the packed state first (calling Pack() if needed).
func Encode(w io.Writer, fd *FrameData) error {
	packed, err := fd.packedBytes()
	if err != nil {
		return errors.Wrap(err, "frame: encode")
	}

	metaBytes, err := fd.Meta().MarshalMsg(nil)
	if err != nil {
		return errors.Wrap(err, "frame: encode meta")
	}

	if _, err := w.Write([]byte(magicPFD2)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(metaBytes))); err != nil {
		return err
	}
	if _, err := w.Write(metaBytes); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(packed))); err != nil {
		return err
	}
	_, err = w.Write(packed)
	return err
}

// WriteEndOfStream appends the end-of-stream sentinel (a u32 zero) used by
// callers reading concatenated frames to know when to stop (§4.5).
func WriteEndOfStream(w io.Writer) error {
	return writeU32(w, 0)
}

// Decode reads one frame from r, dispatching on its magic. It returns
// ErrEndOfStream on a clean sentinel, io.EOF if r is exhausted before any
// bytes are read, and ErrUnsupportedVersion / ErrNewerVersion for
// unreadable/unknown versions.
func Decode(r io.Reader) (*FrameData, error) {
	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	if n == 0 && err != nil {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, "frame: decode magic")
	}

	if binary.LittleEndian.Uint32(magic[:]) == 0 {
		return nil, ErrEndOfStream
	}

	switch string(magic[:]) {
	case magicPFD2:
		return decodePFD2(r)
	case magicPFD1:
		return decodePFD1(r)
	case magicPFD0:
		return nil, ErrUnsupportedVersion
	}

	if magic[0] == 'P' && magic[1] == 'F' && magic[2] == 'D' {
		return nil, ErrNewerVersion
	}

	// No recognized magic at all: treat the 4 bytes already read as a u32
	// length prefix of the legacy, magic-less single-structure format.
	legacyLen := binary.LittleEndian.Uint32(magic[:])
	return decodeLegacyBody(r, legacyLen)
}

func decodePFD2(r io.Reader) (*FrameData, error) {
	metaLen, err := readU32FromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "frame: read meta_len")
	}
	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return nil, errors.Wrap(err, "frame: read meta")
	}
	var meta FrameMeta
	if _, err := meta.UnmarshalMsg(metaBytes); err != nil {
		return nil, errors.Wrap(err, "frame: unmarshal meta")
	}

	packedLen, err := readU32FromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "frame: read packed_len")
	}
	packed := make([]byte, packedLen)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, errors.Wrap(err, "frame: read packed")
	}
	return FromPacked(meta, packed, nil), nil
}

// decodePFD1 reads the pre-meta/stream-split format: magic already
// consumed, followed by u32 body_len, then a fixed-width header (no RunID,
// no msgp) directly followed by the lz4 packed stream blob.
func decodePFD1(r io.Reader) (*FrameData, error) {
	bodyLen, err := readU32FromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "frame: read PFD1 body_len")
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "frame: read PFD1 body")
	}
	return decodeLegacyShapedBody(body)
}

func decodeLegacyBody(r io.Reader, length uint32) (*FrameData, error) {
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "frame: read legacy body")
	}
	return decodeLegacyShapedBody(body)
}

// decodeLegacyShapedBody decodes the fixed-width header shared by both the
// PFD1 and fully-legacy formats: u64 frame_index, i64 range_min,
// i64 range_max, u64 num_bytes, u64 num_scopes, then the packed blob runs
// to the end of body.
func decodeLegacyShapedBody(body []byte) (*FrameData, error) {
	const headerLen = 8 + 8 + 8 + 8 + 8
	if len(body) < headerLen {
		return nil, errors.New("frame: legacy body too short")
	}
	meta := FrameMeta{
		FrameIndex: binary.LittleEndian.Uint64(body[0:8]),
		Range: stream.RangeNS{
			Min: int64(binary.LittleEndian.Uint64(body[8:16])),
			Max: int64(binary.LittleEndian.Uint64(body[16:24])),
		},
		NumBytes:  binary.LittleEndian.Uint64(body[24:32]),
		NumScopes: binary.LittleEndian.Uint64(body[32:40]),
	}
	packed := append([]byte(nil), body[headerLen:]...)
	return FromPacked(meta, packed, nil), nil
}

func writeU32(w io.Writer, v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	_, err := w.Write(tmp[:])
	return err
}

func readU32FromReader(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}
