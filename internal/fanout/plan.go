// Package fanout splits one-to-many notification writes into bounded chunks.
//
// A Plan walks a paged recipient source with a cursor and keeps an arena of
// chunks. Chunks that fail to commit stay in the arena until the caller
// requeues them; nothing is retried automatically.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RecipientPager returns up to limit recipient ids greater than afterID in
// ascending order. An empty page ends the enumeration.
type RecipientPager func(ctx context.Context, afterID uint, limit int) ([]uint, error)

// CommitFunc writes one chunk atomically.
type CommitFunc func(ctx context.Context, chunk *Chunk) error

// Chunk is one batch worth of recipients.
type Chunk struct {
	Index      int
	Recipients []uint
	Attempts   int
	Err        error
}

// Report summarizes a plan's progress.
type Report struct {
	Recipients       int  `json:"recipients"`
	Delivered        int  `json:"delivered"`
	FailedChunks     int  `json:"failed_chunks"`
	FailedRecipients int  `json:"failed_recipients"`
	Exhausted        bool `json:"exhausted"`
}

// Complete reports whether the recipient source was read to the end and
// every recipient was delivered.
func (r Report) Complete() bool {
	return r.Exhausted && r.FailedChunks == 0 && r.Delivered == r.Recipients
}

// Plan tracks a single fan-out.
type Plan struct {
	pager     RecipientPager
	chunkSize int

	mu         sync.Mutex
	cursor     uint
	exhausted  bool
	chunks     int
	queue      []*Chunk
	failed     []*Chunk
	recipients int
	delivered  int
}

// NewPlan creates a plan that reads recipients chunkSize at a time.
func NewPlan(pager RecipientPager, chunkSize int) *Plan {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &Plan{pager: pager, chunkSize: chunkSize}
}

// Next returns the next chunk to commit, or nil once both the requeued
// chunks and the recipient source are exhausted.
func (p *Plan) Next(ctx context.Context) (*Chunk, error) {
	p.mu.Lock()
	if len(p.queue) > 0 {
		c := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		return c, nil
	}
	if p.exhausted {
		p.mu.Unlock()
		return nil, nil
	}
	cursor := p.cursor
	p.mu.Unlock()

	ids, err := p.pager(ctx, cursor, p.chunkSize)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(ids) == 0 {
		p.exhausted = true
		return nil, nil
	}
	if len(ids) < p.chunkSize {
		p.exhausted = true
	}
	p.cursor = ids[len(ids)-1]
	p.recipients += len(ids)
	c := &Chunk{Index: p.chunks, Recipients: ids}
	p.chunks++
	return c, nil
}

// Ack marks a chunk as delivered.
func (p *Plan) Ack(c *Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Attempts++
	c.Err = nil
	p.delivered += len(c.Recipients)
}

// Fail parks a chunk in the failed arena.
func (p *Plan) Fail(c *Chunk, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Attempts++
	c.Err = err
	p.failed = append(p.failed, c)
}

// Failed returns the chunks currently parked after a failed commit.
func (p *Plan) Failed() []*Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Chunk, len(p.failed))
	copy(out, p.failed)
	return out
}

// Requeue moves every failed chunk back into the work queue and returns
// how many were moved.
func (p *Plan) Requeue() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.failed)
	p.queue = append(p.queue, p.failed...)
	p.failed = nil
	return n
}

// Report returns a snapshot of the plan's counters.
func (p *Plan) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := Report{
		Recipients:   p.recipients,
		Delivered:    p.delivered,
		FailedChunks: len(p.failed),
		Exhausted:    p.exhausted && len(p.queue) == 0,
	}
	for _, c := range p.failed {
		r.FailedRecipients += len(c.Recipients)
	}
	return r
}

// Run drains the plan, committing up to concurrency chunks at once.
// Commit failures are recorded on the plan rather than returned; only an
// enumeration error or context cancellation stops the run early.
func (p *Plan) Run(ctx context.Context, concurrency int, commit CommitFunc) (Report, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var runErr error
	for {
		if err := gctx.Err(); err != nil {
			runErr = err
			break
		}
		chunk, err := p.Next(gctx)
		if err != nil {
			runErr = err
			break
		}
		if chunk == nil {
			break
		}
		g.Go(func() error {
			if err := commit(gctx, chunk); err != nil {
				p.Fail(chunk, err)
				return nil
			}
			p.Ack(chunk)
			return nil
		})
	}
	_ = g.Wait()
	return p.Report(), runErr
}
