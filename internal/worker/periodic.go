package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// periodic runs tick every interval on its own goroutine between start and stop.
type periodic struct {
	name     string
	interval time.Duration
	logger   *slog.Logger
	tick     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *periodic) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)

	p.logger.Info(p.name+" started", "interval", p.interval)
}

func (p *periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// stop cancels the loop and waits for the running tick or ctx.
func (p *periodic) stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.logger.Info(p.name + " stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
