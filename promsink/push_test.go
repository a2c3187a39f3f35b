package promsink_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/scomesh/puffin/promsink"
)

var _ = Describe("Pusher", func() {
	It("pushes to the gateway on each tick and stops cleanly on Close", func() {
		pushed := make(chan struct{}, 4)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			select {
			case pushed <- struct{}{}:
			default:
			}
		}))
		defer srv.Close()

		reg := prometheus.NewRegistry()
		p := promsink.StartPusher(srv.URL, "puffin_test", reg, 10*time.Millisecond)

		Eventually(pushed, time.Second).Should(Receive())
		Expect(p.Close()).To(Succeed())
	})

	It("surfaces a push error and exits on Close", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		reg := prometheus.NewRegistry()
		p := promsink.StartPusher(srv.URL, "puffin_test", reg, 10*time.Millisecond)

		time.Sleep(50 * time.Millisecond)
		Expect(p.Close()).To(HaveOccurred())
	})
})
