package history

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"

	"github.com/scomesh/puffin/frame"
)

// archive mirrors every frame entering the slowest-K set to an on-disk
// buntdb database, keyed by zero-padded frame index so an in-order
// iteration falls out of buntdb's default byte-ordered index (§4.6, an
// explicit extension beyond the in-memory-only original: a profiled
// process can crash and still have its slowest frames recoverable).
type archive struct {
	db *buntdb.DB
}

func openArchive(dir string) (*archive, error) {
	db, err := buntdb.Open(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "history: open archive at %q", dir)
	}
	return &archive{db: db}, nil
}

func archiveKey(frameIndex uint64) string {
	return fmt.Sprintf("frame:%020d", frameIndex)
}

func (a *archive) put(fd *frame.FrameData) error {
	var buf bytes.Buffer
	if err := frame.Encode(&buf, fd); err != nil {
		return err
	}
	key := archiveKey(fd.Meta().FrameIndex)
	return a.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, buf.String(), nil)
		return err
	})
}

// LoadArchive replays every frame previously archived under dir, in frame
// index order, decoding each with the PFD2 wire format.
func LoadArchive(dir string) ([]*frame.FrameData, error) {
	db, err := buntdb.Open(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "history: open archive at %q", dir)
	}
	defer db.Close()

	var out []*frame.FrameData
	var decodeErr error
	err = db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("frame:*", func(key, value string) bool {
			fd, derr := frame.Decode(bytes.NewReader([]byte(value)))
			if derr != nil && !errors.Is(derr, io.EOF) && !errors.Is(derr, frame.ErrEndOfStream) {
				decodeErr = derr
				return false
			}
			if fd != nil {
				out = append(out, fd)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

func (a *archive) close() error {
	return a.db.Close()
}
