package frame_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/stream"
)

func sampleStreams() map[stream.ThreadInfo]stream.StreamInfo {
	w := stream.NewWriter(nil)
	off := w.BeginScope(1, 0, "x")
	w.EndScope(off, 50)

	ti := stream.ThreadInfo{Name: "main", HasStartTimeNS: true, StartTimeNS: 0}
	si := stream.StreamInfo{Data: w.Bytes(), NumScopes: 1, Depth: 1, Range: stream.RangeNS{Min: 0, Max: 50}}
	return map[stream.ThreadInfo]stream.StreamInfo{ti: si}
}

var _ = Describe("FrameData", func() {
	It("packs and unpacks back to the same content", func() {
		streams := sampleStreams()
		fd := frame.New(frame.FrameMeta{FrameIndex: 3, RunID: "r1"}, streams, nil)

		Expect(fd.Pack()).To(Succeed())
		Expect(fd.IsPacked()).To(BeTrue())

		got, err := fd.Unpacked()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		for ti, si := range got {
			Expect(ti.Name).To(Equal("main"))
			Expect(si.NumScopes).To(Equal(uint64(1)))
		}
	})

	It("is idempotent: pack(); pack() is a no-op", func() {
		fd := frame.New(frame.FrameMeta{FrameIndex: 1}, sampleStreams(), nil)
		Expect(fd.Pack()).To(Succeed())
		Expect(fd.Pack()).To(Succeed())
		Expect(fd.IsPacked()).To(BeTrue())
	})

	It("caches a decompression error across repeated Unpacked() calls", func() {
		fd := frame.FromPacked(frame.FrameMeta{FrameIndex: 1}, []byte("not lz4 data"), nil)
		_, err1 := fd.Unpacked()
		_, err2 := fd.Unpacked()
		Expect(err1).To(HaveOccurred())
		Expect(err2).To(Equal(err1))
	})

	It("round-trips through the PFD2 wire format", func() {
		fd := frame.New(frame.FrameMeta{FrameIndex: 7, RunID: "abc", NumScopes: 1}, sampleStreams(), nil)

		var buf bytes.Buffer
		Expect(frame.Encode(&buf, fd)).To(Succeed())

		got, err := frame.Decode(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Meta().FrameIndex).To(Equal(uint64(7)))
		Expect(got.Meta().RunID).To(Equal("abc"))

		streams, err := got.Unpacked()
		Expect(err).NotTo(HaveOccurred())
		Expect(streams).To(HaveLen(1))
	})

	It("reports end of stream on the zero sentinel", func() {
		var buf bytes.Buffer
		Expect(frame.WriteEndOfStream(&buf)).To(Succeed())
		_, err := frame.Decode(&buf)
		Expect(err).To(Equal(frame.ErrEndOfStream))
	})

	It("rejects PFD0 explicitly", func() {
		var buf bytes.Buffer
		buf.WriteString("PFD0")
		_, err := frame.Decode(&buf)
		Expect(err).To(Equal(frame.ErrUnsupportedVersion))
	})
})
