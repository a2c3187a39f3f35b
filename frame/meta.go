package frame

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/scomesh/puffin/stream"
)

// FrameMeta is the per-frame summary (§3) written as the msgp-encoded
// `meta` section of the PFD2 wire format (§4.5). RunID is an addition
// (SPEC_FULL.md §4.5) stamping which recording session a frame came from.
type FrameMeta struct {
	FrameIndex uint64
	Range      stream.RangeNS
	NumBytes   uint64
	NumScopes  uint64
	RunID      string
}

// MarshalMsg hand-encodes FrameMeta as a 6-entry msgpack map, following the
// field-map convention tinylib/msgp generates for tagged structs, written
// by hand here since no `go generate` step runs in this module.
func (m FrameMeta) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 6)
	o = msgp.AppendString(o, "idx")
	o = msgp.AppendUint64(o, m.FrameIndex)
	o = msgp.AppendString(o, "rmin")
	o = msgp.AppendInt64(o, m.Range.Min)
	o = msgp.AppendString(o, "rmax")
	o = msgp.AppendInt64(o, m.Range.Max)
	o = msgp.AppendString(o, "nbytes")
	o = msgp.AppendUint64(o, m.NumBytes)
	o = msgp.AppendString(o, "nscopes")
	o = msgp.AppendUint64(o, m.NumScopes)
	o = msgp.AppendString(o, "run")
	o = msgp.AppendString(o, m.RunID)
	return o, nil
}

// UnmarshalMsg decodes a FrameMeta previously produced by MarshalMsg,
// tolerating unknown extra keys (future PFD3 fields) by skipping them.
func (m *FrameMeta) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	for i := uint32(0); i < n; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return b, err
		}
		switch key {
		case "idx":
			m.FrameIndex, b, err = msgp.ReadUint64Bytes(b)
		case "rmin":
			m.Range.Min, b, err = msgp.ReadInt64Bytes(b)
		case "rmax":
			m.Range.Max, b, err = msgp.ReadInt64Bytes(b)
		case "nbytes":
			m.NumBytes, b, err = msgp.ReadUint64Bytes(b)
		case "nscopes":
			m.NumScopes, b, err = msgp.ReadUint64Bytes(b)
		case "run":
			m.RunID, b, err = msgp.ReadStringBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, err
		}
	}
	return b, nil
}
