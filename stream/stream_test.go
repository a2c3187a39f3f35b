package stream_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/stream"
)

var _ = Describe("Writer/Reader round-trip", func() {
	It("round-trips a single scope", func() {
		w := stream.NewWriter(nil)
		off := w.BeginScope(1, 100, "x")
		w.EndScope(off, 300)

		scopes, err := stream.NewReader(w.Bytes()).All()
		Expect(err).NotTo(HaveOccurred())
		Expect(scopes).To(HaveLen(1))
		Expect(scopes[0].Record.DurationNS).To(Equal(int64(200)))
		Expect(scopes[0].Record.Data).To(Equal("x"))
		Expect(scopes[0].Id).To(Equal(stream.ScopeId(1)))
	})

	It("round-trips nested scopes with correct offsets", func() {
		w := stream.NewWriter(nil)
		top := w.BeginScope(1, 100, "")
		c1 := w.BeginScope(2, 200, "")
		w.EndScope(c1, 300)
		c2 := w.BeginScope(3, 300, "")
		w.EndScope(c2, 400)
		w.EndScope(top, 400)

		tops, err := stream.NewReader(w.Bytes()).All()
		Expect(err).NotTo(HaveOccurred())
		Expect(tops).To(HaveLen(1))

		children, err := stream.Children(w.Bytes(), tops[0]).All()
		Expect(err).NotTo(HaveOccurred())
		Expect(children).To(HaveLen(2))
		Expect(children[0].Record.DurationNS).To(Equal(int64(100)))
		Expect(children[1].Record.DurationNS).To(Equal(int64(100)))
	})

	It("clamps data beyond 127 bytes at a UTF-8 boundary", func() {
		long := strings.Repeat("é", 100) // 2 bytes/rune, 200 bytes total
		w := stream.NewWriter(nil)
		off := w.BeginScope(1, 0, long)
		w.EndScope(off, 1)

		scopes, err := stream.NewReader(w.Bytes()).All()
		Expect(err).NotTo(HaveOccurred())
		Expect(len(scopes[0].Record.Data)).To(BeNumerically("<=", 127))
		Expect(len(scopes[0].Record.Data) % 2).To(Equal(0)) // never a half rune
	})

	It("reports ErrUnfinishedScope for an unpatched placeholder", func() {
		w := stream.NewWriter(nil)
		w.BeginScope(1, 0, "")
		// no EndScope: placeholder left at max

		_, err := stream.NewReader(w.Bytes()).All()
		Expect(err).To(MatchError(stream.ErrUnfinishedScope))
	})

	It("reports ErrInvalidStream when stop < start", func() {
		w := stream.NewWriter(nil)
		off := w.BeginScope(1, 1000, "")
		w.EndScope(off, 1) // stop before start

		_, err := stream.NewReader(w.Bytes()).All()
		Expect(err).To(MatchError(stream.ErrInvalidStream))
	})

	It("computes max nesting depth", func() {
		w := stream.NewWriter(nil)
		top := w.BeginScope(1, 0, "")
		mid := w.BeginScope(2, 0, "")
		leaf := w.BeginScope(3, 0, "")
		w.EndScope(leaf, 1)
		w.EndScope(mid, 2)
		w.EndScope(top, 3)

		depth, err := stream.Depth(w.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(depth).To(Equal(3))
	})
})
