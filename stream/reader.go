package stream

import (
	"encoding/binary"
	"unicode/utf8"
)

// Reader walks the top-level siblings of a byte stream starting at a given
// cursor. It is a plain value: constructing one at a child's
// ChildBeginPosition and calling Next repeatedly descends into that child's
// own children, terminating naturally when the cursor reaches the parent's
// closing ')' (which is not '(' and so ends iteration); no recursion
// bookkeeping is needed by the caller (§4.1 "Reading").
type Reader struct {
	data   []byte
	cursor int
}

// NewReader returns a Reader over data starting at its first byte.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReaderAt returns a Reader starting at offset, used to descend into a
// scope's children region (offset == Scope.ChildBeginPosition). offset past
// the end of data is ErrInvalidOffset (programmer error, §7).
func ReaderAt(data []byte, offset int) (*Reader, error) {
	if offset < 0 || offset > len(data) {
		return nil, ErrInvalidOffset
	}
	return &Reader{data: data, cursor: offset}, nil
}

// Cursor reports the reader's current byte position.
func (r *Reader) Cursor() int { return r.cursor }

// Next parses and returns the next top-level sibling at the reader's
// cursor. ok is false (err nil) when iteration ends naturally: the cursor
// is at end-of-data or at a byte that isn't a scope-begin sentinel (i.e.
// the enclosing parent's ')').
func (r *Reader) Next() (scope Scope, ok bool, err error) {
	d := r.data
	pos := r.cursor
	if pos >= len(d) || d[pos] != sentinelBegin {
		return Scope{}, false, nil
	}

	const headerLen = 1 + 4 + 8 + 1 // sentinel + id + start_ns + data-len byte
	if pos+headerLen > len(d) {
		return Scope{}, false, ErrPrematureEnd
	}
	id := binary.LittleEndian.Uint32(d[pos+1 : pos+5])
	startNS := int64(binary.LittleEndian.Uint64(d[pos+5 : pos+13]))
	dataLen := int(d[pos+13])

	dataStart := pos + headerLen
	dataEnd := dataStart + dataLen
	if dataEnd+8 > len(d) {
		return Scope{}, false, ErrPrematureEnd
	}
	data := validUTF8Prefix(string(d[dataStart:dataEnd]))

	sizeOff := dataEnd
	placeholder := binary.LittleEndian.Uint64(d[sizeOff : sizeOff+8])
	if placeholder == sizePlaceholder {
		return Scope{}, false, ErrUnfinishedScope
	}

	childBegin := sizeOff + 8
	childEnd := childBegin + int(placeholder)
	if childEnd < childBegin || childEnd+1+8 > len(d) {
		return Scope{}, false, ErrPrematureEnd
	}
	if d[childEnd] != sentinelEnd {
		return Scope{}, false, ErrInvalidStream
	}
	stopNS := int64(binary.LittleEndian.Uint64(d[childEnd+1 : childEnd+9]))
	if stopNS < startNS {
		return Scope{}, false, ErrInvalidStream
	}

	nextSibling := childEnd + 1 + 8
	r.cursor = nextSibling

	scope = Scope{
		Id: ScopeId(id),
		Record: Record{
			StartNS:    startNS,
			DurationNS: stopNS - startNS,
			Id:         ScopeId(id),
			Data:       data,
		},
		ChildBeginPosition:  childBegin,
		ChildEndPosition:    childEnd,
		NextSiblingPosition: nextSibling,
	}
	return scope, true, nil
}

// validUTF8Prefix returns the longest prefix of s that is valid UTF-8,
// backing off rune-by-rune from the end rather than erroring (§4.1).
func validUTF8Prefix(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	for i := len(s); i > 0; i-- {
		if utf8.ValidString(s[:i]) {
			return s[:i]
		}
	}
	return ""
}

// All parses every top-level sibling from the reader's current position to
// the end of iteration, returning them in begin order.
func (r *Reader) All() ([]Scope, error) {
	var out []Scope
	for {
		s, ok, err := r.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, s)
	}
}

// Children returns a Reader descending into scope's children region.
func Children(data []byte, scope Scope) *Reader {
	return &Reader{data: data, cursor: scope.ChildBeginPosition}
}

// Walk visits scope and every descendant depth-first, pre-order, calling fn
// with the scope and its nesting depth (0 for top-level). Walk stops and
// returns the first error either from parsing or from fn.
func Walk(data []byte, fn func(s Scope, depth int) error) error {
	var walk func(r *Reader, depth int) error
	walk = func(r *Reader, depth int) error {
		for {
			s, ok, err := r.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := fn(s, depth); err != nil {
				return err
			}
			if s.ChildEndPosition > s.ChildBeginPosition {
				if err := walk(Children(data, s), depth+1); err != nil {
					return err
				}
			}
		}
	}
	return walk(NewReader(data), 0)
}

// Depth returns the deepest nesting level found in data, the same quantity
// as StreamInfo.Depth (§3), recomputed by walking the bytes.
func Depth(data []byte) (int, error) {
	max := 0
	err := Walk(data, func(_ Scope, depth int) error {
		if depth+1 > max {
			max = depth + 1
		}
		return nil
	})
	return max, err
}
