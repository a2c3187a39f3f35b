package merge_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/merge"
	"github.com/scomesh/puffin/stream"
)

func oneScopeStream(id stream.ScopeId, startNS, stopNS stream.NanoSecond, data string) []byte {
	w := stream.NewWriter(nil)
	off := w.BeginScope(id, startNS, data)
	w.EndScope(off, stopNS)
	return append([]byte(nil), w.Bytes()...)
}

var _ = Describe("Merge", func() {
	It("merges two identical-data siblings into one node", func() {
		a := oneScopeStream(1, 0, 100, "x")
		b := oneScopeStream(1, 300, 500, "x")

		nodes, err := merge.Merge([][]byte{a, b})
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))

		n := nodes[0]
		Expect(n.NumPieces).To(Equal(2))
		Expect(n.TotalDurationNS).To(Equal(int64(300)))
		Expect(n.MaxDurationNS).To(Equal(int64(200)))
		Expect(n.RelativeStartNS).To(Equal(int64(0)))
		Expect(n.Data).To(Equal("x"))
	})

	It("erases data that differs across pieces", func() {
		a := oneScopeStream(1, 0, 100, "x")
		b := oneScopeStream(1, 300, 500, "y")

		nodes, err := merge.Merge([][]byte{a, b})
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
		Expect(nodes[0].Data).To(Equal(""))
	})

	It("preserves the sum of leaf durations and recursively merges children", func() {
		w := stream.NewWriter(nil)
		parent := w.BeginScope(10, 0, "p")
		c1 := w.BeginScope(20, 0, "c")
		w.EndScope(c1, 50)
		c2 := w.BeginScope(20, 50, "c")
		w.EndScope(c2, 80)
		w.EndScope(parent, 80)

		nodes, err := merge.Merge([][]byte{w.Bytes()})
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))

		root := nodes[0]
		Expect(root.TotalDurationNS).To(Equal(int64(80)))
		Expect(root.Children).To(HaveLen(1))

		child := root.Children[0]
		Expect(child.NumPieces).To(Equal(2))
		Expect(child.TotalDurationNS).To(Equal(int64(80)))
		Expect(child.RelativeStartNS).To(Equal(int64(0)))
	})

	It("pushes overlapping siblings forward so they never overlap", func() {
		w := stream.NewWriter(nil)
		parent := w.BeginScope(1, 0, "")
		c1 := w.BeginScope(21, 0, "")
		w.EndScope(c1, 100)
		c2 := w.BeginScope(22, 50, "") // overlaps c1's [0,100) window
		w.EndScope(c2, 150)
		w.EndScope(parent, 150)

		nodes, err := merge.Merge([][]byte{w.Bytes()})
		Expect(err).NotTo(HaveOccurred())
		children := nodes[0].Children
		Expect(children).To(HaveLen(2))

		Expect(children[0].RelativeStartNS).To(Equal(int64(0)))
		Expect(children[1].RelativeStartNS).To(BeNumerically(">=", children[0].RelativeStartNS+children[0].TotalDurationNS))
	})

	It("returns an empty forest for no input streams", func() {
		nodes, err := merge.Merge(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(BeEmpty())
	})
})
