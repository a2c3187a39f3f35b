package prob_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/cmn/prob"
)

var _ = Describe("Filter", func() {
	It("reports known keys as probably present", func() {
		f := prob.New(64)
		f.Add([]byte("on_update"))
		Expect(f.MaybeContains([]byte("on_update"))).To(BeTrue())
	})

	It("reports a never-inserted key as absent (no false positive here)", func() {
		f := prob.New(64)
		f.Add([]byte("a"))
		Expect(f.MaybeContains([]byte("never-added"))).To(BeFalse())
	})

	It("resets cleanly", func() {
		f := prob.New(64)
		f.Add([]byte("a"))
		f.Reset()
		Expect(f.Count()).To(Equal(0))
	})

	It("keeps every earlier key findable across a capacity-triggered rebuild", func() {
		f := prob.New(4)
		var keys [][]byte
		for i := 0; i < 64; i++ {
			k := []byte{byte(i), byte(i >> 8)}
			keys = append(keys, k)
			f.Add(k)
		}
		for _, k := range keys {
			Expect(f.MaybeContains(k)).To(BeTrue())
		}
		Expect(f.Count()).To(Equal(64))
	})
})
