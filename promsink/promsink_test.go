package promsink_test

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/promsink"
	"github.com/scomesh/puffin/stream"
)

func sampleFrame(idx uint64, numScopes uint64, durationNS int64) *frame.FrameData {
	meta := frame.FrameMeta{
		FrameIndex: idx,
		Range:      stream.RangeNS{Min: 0, Max: durationNS},
		NumScopes:  numScopes,
	}
	return frame.New(meta, map[stream.ThreadInfo]stream.StreamInfo{}, nil)
}

var _ = Describe("promsink", func() {
	It("registers its collectors and exposes one frame counter series", func() {
		reg := prometheus.NewRegistry()
		sink, err := promsink.New(reg)
		Expect(err).NotTo(HaveOccurred())

		sink(sampleFrame(0, 3, 100))
		sink(sampleFrame(1, 5, 200))

		count, err := testutil.GatherAndCount(reg, "puffin_frames_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("fails to register twice against the same registerer", func() {
		reg := prometheus.NewRegistry()
		_, err := promsink.New(reg)
		Expect(err).NotTo(HaveOccurred())

		_, err = promsink.New(reg)
		Expect(err).To(HaveOccurred())
	})
})
