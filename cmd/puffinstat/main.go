// Command puffinstat summarizes one or more recorded .puffin files: frame
// count, per-frame stats, the index of the slowest frame, and the merged
// scope forest across every frame, dumped as human-readable JSON via
// jsoniter.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/history"
	"github.com/scomesh/puffin/merge"
)

var prettyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type threadSummary struct {
	Thread    string   `json:"thread"`
	NumScopes uint64   `json:"num_scopes"`
	Depth     int      `json:"depth"`
	RangeNS   [2]int64 `json:"range_ns"`
}

type frameSummary struct {
	FrameIndex uint64          `json:"frame_index"`
	RunID      string          `json:"run_id"`
	DurationNS int64           `json:"duration_ns"`
	NumScopes  uint64          `json:"num_scopes"`
	NumBytes   uint64          `json:"num_bytes"`
	Threads    []threadSummary `json:"threads"`
}

type fileSummary struct {
	Path         string             `json:"path"`
	NumFrames    int                `json:"num_frames"`
	SlowestIdx   uint64             `json:"slowest_frame_index"`
	Frames       []frameSummary     `json:"frames"`
	MergedScopes []*merge.MergeNode `json:"merged_scopes,omitempty"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <dir-or-.puffin-file>...\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var out []fileSummary
	for _, path := range flag.Args() {
		s, err := summarize(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "puffinstat: %s: %v\n", path, err)
			os.Exit(1)
		}
		out = append(out, s)
	}

	b, err := prettyJSON.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "puffinstat: marshal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}

func summarize(path string) (fileSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileSummary{}, err
	}

	var fds []*frame.FrameData
	if info.IsDir() {
		fds, err = history.LoadDir(path)
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			defer f.Close()
			var v *history.FrameView
			v, err = history.Import(f, history.Options{})
			if err == nil {
				fds = v.RecentFrames()
			}
		}
	}
	if err != nil {
		return fileSummary{}, err
	}

	s := fileSummary{Path: path, NumFrames: len(fds)}
	var slowest int64 = -1
	var allStreams [][]byte
	for _, fd := range fds {
		meta := fd.Meta()
		dur := meta.Range.Max - meta.Range.Min
		if dur > slowest {
			slowest = dur
			s.SlowestIdx = meta.FrameIndex
		}

		fs := frameSummary{
			FrameIndex: meta.FrameIndex,
			RunID:      meta.RunID,
			DurationNS: dur,
			NumScopes:  meta.NumScopes,
			NumBytes:   meta.NumBytes,
		}
		streams, err := fd.Unpacked()
		if err != nil {
			return fileSummary{}, err
		}
		for thread, si := range streams {
			fs.Threads = append(fs.Threads, threadSummary{
				Thread:    thread.Name,
				NumScopes: si.NumScopes,
				Depth:     si.Depth,
				RangeNS:   [2]int64{si.Range.Min, si.Range.Max},
			})
			allStreams = append(allStreams, si.Data)
		}
		s.Frames = append(s.Frames, fs)
	}

	merged, err := merge.Merge(allStreams)
	if err != nil {
		return fileSummary{}, err
	}
	s.MergedScopes = merged
	return s, nil
}
