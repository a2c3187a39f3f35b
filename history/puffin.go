package history

import (
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/scomesh/puffin/frame"
)

const puffinMagic = "PUF0"

// ErrBadMagic is returned by Import when the stream doesn't start with the
// "PUF0" magic (§6 file format).
var ErrBadMagic = errors.New("history: not a .puffin file (bad magic)")

// Export writes the deduplicated union of v's recent and slowest-K sets to
// w, in frame-index order, using the PFD2 wire format per frame, preceded
// by the "PUF0" file magic and followed by the end-of-stream sentinel
// (§4.6, §6).
func Export(w io.Writer, v *FrameView) error {
	if _, err := w.Write([]byte(puffinMagic)); err != nil {
		return err
	}

	v.mu.Lock()
	byIndex := make(map[uint64]*frame.FrameData, len(v.recent)+len(v.slow))
	for _, fd := range v.recent {
		byIndex[fd.Meta().FrameIndex] = fd
	}
	for _, it := range v.slow {
		byIndex[it.fd.Meta().FrameIndex] = it.fd
	}
	v.mu.Unlock()

	indices := make([]uint64, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		if err := frame.Encode(w, byIndex[idx]); err != nil {
			return errors.Wrapf(err, "history: export frame %d", idx)
		}
	}
	return frame.WriteEndOfStream(w)
}

// Import reads a .puffin stream back into a fresh FrameView. Per §4.6,
// max_recent is unbounded during the load so that a file written with more
// frames than the default recent-ring capacity is never truncated; the
// slowest-K cap from opts still applies as frames are replayed through
// AddFrame.
func Import(r io.Reader, opts Options) (*FrameView, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "history: read magic")
	}
	if string(magic[:]) != puffinMagic {
		return nil, ErrBadMagic
	}

	if opts.MaxSlow <= 0 {
		opts.MaxSlow = DefaultMaxSlow
	}
	v := &FrameView{maxRecent: math.MaxInt32, maxSlow: opts.MaxSlow}

	for {
		fd, err := frame.Decode(r)
		switch {
		case errors.Is(err, frame.ErrEndOfStream), errors.Is(err, io.EOF):
			return v, nil
		case err != nil:
			return v, errors.Wrap(err, "history: import")
		}
		v.AddFrame(fd)
	}
}
