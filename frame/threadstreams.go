package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/scomesh/puffin/stream"
)

// encodeThreadStreams serializes a ThreadInfo->StreamInfo mapping into the
// payload that gets lz4-compressed by Pack() (§4.5 "a length-prefixed
// encoding of the mapping plus the raw stream bytes").
//
// Layout: u32 count, then per entry:
//
//	u8 has_start, i64 start_ns, u16 name_len, name bytes,
//	u64 num_scopes, u32 depth, i64 range_min, i64 range_max,
//	u64 data_len, data bytes
func encodeThreadStreams(m map[stream.ThreadInfo]stream.StreamInfo) []byte {
	out := make([]byte, 4, 256)
	binary.LittleEndian.PutUint32(out, uint32(len(m)))

	for ti, si := range m {
		var hasStart byte
		if ti.HasStartTimeNS {
			hasStart = 1
		}
		out = append(out, hasStart)
		out = appendI64(out, ti.StartTimeNS)
		name := []byte(ti.Name)
		out = appendU16(out, uint16(len(name)))
		out = append(out, name...)

		out = appendU64(out, si.NumScopes)
		out = appendU32(out, uint32(si.Depth))
		out = appendI64(out, si.Range.Min)
		out = appendI64(out, si.Range.Max)
		out = appendU64(out, uint64(len(si.Data)))
		out = append(out, si.Data...)
	}
	return out
}

func decodeThreadStreams(b []byte) (map[stream.ThreadInfo]stream.StreamInfo, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("thread streams: truncated count")
	}
	count := binary.LittleEndian.Uint32(b)
	b = b[4:]
	out := make(map[stream.ThreadInfo]stream.StreamInfo, count)

	for i := uint32(0); i < count; i++ {
		var ti stream.ThreadInfo
		var err error
		ti.HasStartTimeNS, b, err = readBool(b)
		if err != nil {
			return nil, err
		}
		ti.StartTimeNS, b, err = readI64(b)
		if err != nil {
			return nil, err
		}
		var nameLen uint16
		nameLen, b, err = readU16(b)
		if err != nil {
			return nil, err
		}
		if len(b) < int(nameLen) {
			return nil, fmt.Errorf("thread streams: truncated name")
		}
		ti.Name = string(b[:nameLen])
		b = b[nameLen:]

		var si stream.StreamInfo
		si.NumScopes, b, err = readU64(b)
		if err != nil {
			return nil, err
		}
		var depth uint32
		depth, b, err = readU32(b)
		if err != nil {
			return nil, err
		}
		si.Depth = int(depth)
		si.Range.Min, b, err = readI64(b)
		if err != nil {
			return nil, err
		}
		si.Range.Max, b, err = readI64(b)
		if err != nil {
			return nil, err
		}
		var dataLen uint64
		dataLen, b, err = readU64(b)
		if err != nil {
			return nil, err
		}
		if uint64(len(b)) < dataLen {
			return nil, fmt.Errorf("thread streams: truncated data")
		}
		si.Data = append([]byte(nil), b[:dataLen]...)
		b = b[dataLen:]

		out[ti] = si
	}
	return out, nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI64(b []byte, v int64) []byte { return appendU64(b, uint64(v)) }

func readBool(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, b, fmt.Errorf("thread streams: truncated bool")
	}
	return b[0] != 0, b[1:], nil
}

func readU16(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, b, fmt.Errorf("thread streams: truncated u16")
	}
	return binary.LittleEndian.Uint16(b), b[2:], nil
}

func readU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, b, fmt.Errorf("thread streams: truncated u32")
	}
	return binary.LittleEndian.Uint32(b), b[4:], nil
}

func readU64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, b, fmt.Errorf("thread streams: truncated u64")
	}
	return binary.LittleEndian.Uint64(b), b[8:], nil
}

func readI64(b []byte) (int64, []byte, error) {
	v, rest, err := readU64(b)
	return int64(v), rest, err
}
