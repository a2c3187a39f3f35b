package registry_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/registry"
)

var _ = Describe("Collection", func() {
	It("allocates strictly monotonic ids", func() {
		id1 := registry.NextScopeId()
		id2 := registry.NextScopeId()
		Expect(id2).To(BeNumerically(">", id1))
	})

	It("gives two sites sharing a name distinct ids", func() {
		c := registry.New(8)
		id1, d1 := registry.RegisterScope("tick", "Update", "a.go", 10)
		id2, d2 := registry.RegisterScope("tick", "Update", "b.go", 20)
		c.Insert(id1, d1)
		c.Insert(id2, d2)

		Expect(id1).NotTo(Equal(id2))
		Expect(c.ByName("tick")).To(ConsistOf(id1, id2))
	})

	It("never mutates an inserted entry", func() {
		c := registry.New(4)
		id, d := registry.RegisterFunctionScope("F", "f.go", 1)
		c.Insert(id, d)
		c.Insert(id, registry.ScopeDetails{ScopeName: "different"})

		got, ok := c.Details(id)
		Expect(ok).To(BeTrue())
		Expect(got.ScopeName).To(Equal(""))
	})

	It("collapses concurrent dynamic registrations under the same key", func() {
		c := registry.New(4)
		const n = 32
		ids := make([]registry.ScopeId, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			i := i
			go func() {
				defer wg.Done()
				id, err := c.RegisterDynamic("same-key", "dyn", "F", "f.go", 1)
				Expect(err).NotTo(HaveOccurred())
				ids[i] = id
			}()
		}
		wg.Wait()
		for i := 1; i < n; i++ {
			Expect(ids[i]).To(Equal(ids[0]))
		}
	})
})
