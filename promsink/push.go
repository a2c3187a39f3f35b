package promsink

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"golang.org/x/sync/errgroup"
)

// Pusher periodically ships a registry's gathered metrics to a Prometheus
// Pushgateway on a background goroutine, for processes (batch jobs, short
// CLI runs) that exit before a scrape would ever catch them: a single
// cancelable worker managed with errgroup.WithContext.
type Pusher struct {
	cancel context.CancelFunc
	group  *errgroup.Group
}

// StartPusher launches a Pusher that pushes reg to url under job every
// interval, until Close is called. The first push happens after the first
// tick, not immediately, so a process that exits almost instantly doesn't
// spend its whole lifetime blocked on a (possibly unreachable) gateway.
func StartPusher(url, job string, reg *prometheus.Registry, interval time.Duration) *Pusher {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	pusher := push.New(url, job).Gatherer(reg)

	group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := pusher.Push(); err != nil {
					return err
				}
			}
		}
	})

	return &Pusher{cancel: cancel, group: group}
}

// Close stops the background push loop and waits for it to exit, returning
// the last push error (if any) that caused it to stop early.
func (p *Pusher) Close() error {
	p.cancel()
	return p.group.Wait()
}
