package stream

import (
	"math"

	"github.com/scomesh/puffin/cmn/cos"
)

// RangeNS is an inclusive [min_start, max_stop] nanosecond interval (§3).
// The empty range has Min > Max so that element-wise merges are correct
// without a separate "is this the first merge" branch.
type RangeNS struct {
	Min NanoSecond
	Max NanoSecond
}

// EmptyRange returns the identity element for Merge.
func EmptyRange() RangeNS { return RangeNS{Min: math.MaxInt64, Max: math.MinInt64} }

// IsEmpty reports whether r has never been extended past EmptyRange.
func (r RangeNS) IsEmpty() bool { return r.Min > r.Max }

// Merge returns the element-wise min/max of r and o.
func (r RangeNS) Merge(o RangeNS) RangeNS {
	return RangeNS{Min: cos.MinI64(r.Min, o.Min), Max: cos.MaxI64(r.Max, o.Max)}
}

// ThreadInfo identifies the origin of a stream (§3). It is a plain,
// comparable struct so it can be used directly as a map key: Go's map
// equality gives the hashable, totally ordered contract needed once
// paired with Less below.
type ThreadInfo struct {
	StartTimeNS    NanoSecond
	HasStartTimeNS bool
	Name           string
}

// Less orders ThreadInfo by start time first (unset sorts last), then by
// name, matching §3's "by start_time_ns, then by name".
func (t ThreadInfo) Less(o ThreadInfo) bool {
	if t.HasStartTimeNS != o.HasStartTimeNS {
		return t.HasStartTimeNS // has a start time sorts before "unset"
	}
	if t.HasStartTimeNS && t.StartTimeNS != o.StartTimeNS {
		return t.StartTimeNS < o.StartTimeNS
	}
	return t.Name < o.Name
}

// StreamInfo pairs a stream's raw bytes with the summary stats a reader
// would otherwise have to recompute by re-walking the tree (§3).
type StreamInfo struct {
	Data      []byte
	NumScopes uint64
	Depth     int
	Range     RangeNS
}

// EmptyStreamInfo is the identity element for Merge: an empty stream whose
// range is the identity RangeNS so element-wise min/max merges correctly.
func EmptyStreamInfo() StreamInfo {
	return StreamInfo{Range: EmptyRange()}
}

// Merge appends o's bytes after s's, and folds stats (§3 invariant:
// "FrameData.range_ns = element-wise min/max over all streams").
func (s StreamInfo) Merge(o StreamInfo) StreamInfo {
	data := make([]byte, 0, len(s.Data)+len(o.Data))
	data = append(data, s.Data...)
	data = append(data, o.Data...)
	depth := s.Depth
	if o.Depth > depth {
		depth = o.Depth
	}
	return StreamInfo{
		Data:      data,
		NumScopes: s.NumScopes + o.NumScopes,
		Depth:     depth,
		Range:     s.Range.Merge(o.Range),
	}
}
