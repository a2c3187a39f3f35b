package puffin_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin"
	"github.com/scomesh/puffin/frame"
)

func instrumentedWork() {
	defer puffin.ProfileFunction()()
	func() {
		defer puffin.ProfileScope("inner", "payload")()
	}()
}

var _ = Describe("puffin public API", func() {
	BeforeEach(func() {
		puffin.SetScopesOn(true)
	})

	AfterEach(func() {
		puffin.SetScopesOn(false)
	})

	It("records a frame reachable from the global frame view", func() {
		instrumentedWork()
		fd := puffin.NewFrame()
		Expect(fd).NotTo(BeNil())

		latest := puffin.GlobalFrameView().LatestFrame()
		Expect(latest).To(Equal(fd))

		streams, err := fd.Unpacked()
		Expect(err).NotTo(HaveOccurred())
		Expect(streams).To(HaveLen(1))
	})

	It("does not record when scopes are off", func() {
		puffin.SetScopesOn(false)
		instrumentedWork()
		Expect(puffin.NewFrame()).To(BeNil())
	})

	It("invokes additional sinks registered via AddSink", func() {
		var calls int
		id := puffin.AddSink(func(*frame.FrameData) { calls++ })
		defer puffin.RemoveSink(id)

		instrumentedWork()
		puffin.NewFrame()

		Expect(calls).To(Equal(1))
	})
})
