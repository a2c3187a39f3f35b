package history

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/scomesh/puffin/frame"
)

// LoadDir walks path and imports every *.puffin file found, in lexical
// path order, returning the combined set of frames. It's the batch-import
// counterpart to Import, for tools that scan a directory of exported
// profiles (e.g. cmd/puffinstat).
func LoadDir(path string) ([]*frame.FrameData, error) {
	var paths []string
	err := godirwalk.Walk(path, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if strings.EqualFold(filepath.Ext(osPathname), ".puffin") {
				paths = append(paths, osPathname)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "history: walk %q", path)
	}
	sort.Strings(paths)

	var out []*frame.FrameData
	for _, p := range paths {
		fds, err := loadOne(p)
		if err != nil {
			return nil, errors.Wrapf(err, "history: load %q", p)
		}
		out = append(out, fds...)
	}
	return out, nil
}

func loadOne(path string) ([]*frame.FrameData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := Import(f, Options{MaxSlow: DefaultMaxSlow})
	if err != nil {
		return nil, err
	}
	return v.RecentFrames(), nil
}
