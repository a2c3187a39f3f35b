package history_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/history"
	"github.com/scomesh/puffin/stream"
)

func makeFrame(idx uint64, durationNS int64) *frame.FrameData {
	meta := frame.FrameMeta{
		FrameIndex: idx,
		Range:      stream.RangeNS{Min: 0, Max: durationNS},
		RunID:      "test-run",
	}
	return frame.New(meta, map[stream.ThreadInfo]stream.StreamInfo{}, nil)
}

func durationsOf(fds []*frame.FrameData) []int64 {
	out := make([]int64, len(fds))
	for i, fd := range fds {
		r := fd.Meta().Range
		out[i] = r.Max - r.Min
	}
	return out
}

var _ = Describe("FrameView", func() {
	It("resets both collections when the frame index does not advance", func() {
		v, err := history.New(history.Options{})
		Expect(err).NotTo(HaveOccurred())

		v.AddFrame(makeFrame(5, 10))
		v.AddFrame(makeFrame(6, 20))
		Expect(v.RecentFrames()).To(HaveLen(2))

		v.AddFrame(makeFrame(3, 5))
		recent := v.RecentFrames()
		Expect(recent).To(HaveLen(1))
		Expect(recent[0].Meta().FrameIndex).To(Equal(uint64(3)))
	})

	It("retains exactly the K largest durations seen", func() {
		v, err := history.New(history.Options{MaxSlow: 3})
		Expect(err).NotTo(HaveOccurred())

		durations := []int64{1, 5, 3, 8, 2, 7, 4, 6}
		for i, d := range durations {
			v.AddFrame(makeFrame(uint64(i), d))
		}

		got := durationsOf(v.SlowestFramesChronological())
		Expect(got).To(ConsistOf(int64(6), int64(7), int64(8)))
	})

	It("trims the recent ring to its configured capacity", func() {
		v, err := history.New(history.Options{MaxRecent: 3, MaxSlow: 1})
		Expect(err).NotTo(HaveOccurred())

		for i := uint64(0); i < 5; i++ {
			v.AddFrame(makeFrame(i, 1))
		}

		recent := v.RecentFrames()
		Expect(recent).To(HaveLen(3))
		Expect(recent[0].Meta().FrameIndex).To(Equal(uint64(2)))
		Expect(recent[2].Meta().FrameIndex).To(Equal(uint64(4)))
	})

	It("round-trips through a .puffin export/import cycle", func() {
		v, err := history.New(history.Options{MaxSlow: 2})
		Expect(err).NotTo(HaveOccurred())

		durations := []int64{1, 9, 4, 2}
		for i, d := range durations {
			v.AddFrame(makeFrame(uint64(i), d))
		}

		var buf bytes.Buffer
		Expect(history.Export(&buf, v)).To(Succeed())

		loaded, err := history.Import(&buf, history.Options{})
		Expect(err).NotTo(HaveOccurred())

		var indices []uint64
		for _, fd := range loaded.RecentFrames() {
			indices = append(indices, fd.Meta().FrameIndex)
		}
		Expect(indices).To(ConsistOf(uint64(0), uint64(1), uint64(2), uint64(3)))
	})

	It("rejects a stream without the PUF0 magic", func() {
		_, err := history.Import(bytes.NewReader([]byte("nope")), history.Options{})
		Expect(err).To(HaveOccurred())
	})
})
