package source

import (
	"context"
	"log"
	"sync"

	"civicmon/internal/complaint"
)

// pageResult is the outcome of fetching one portal page.
type pageResult struct {
	page     int
	records  []complaint.Record
	lastPage int
	err      error
}

// pageWork fetches and decodes a single page.
type pageWork func(ctx context.Context, page int) pageResult

// pagePool fetches portal pages concurrently.
//
// Architecture:
//   - Each worker runs in its own goroutine
//   - Workers pull page numbers from a shared channel
//   - Results are sent to a results channel
//   - A failed page is reported in its result and doesn't stop the worker
//
// Both channels are buffered to the number of pages of the refresh, so
// Submit never blocks and results can be collected after Close.
type pagePool struct {
	jobs    chan int
	results chan pageResult
	wg      sync.WaitGroup
}

// newPagePool starts workerCount workers for up to size pages.
//
// Parameters:
//   - ctx: Cancels pending pages; workers report ctx.Err() for them
//   - workerCount: Number of concurrent workers
//   - size: Number of pages that will be submitted
//   - work: Fetches one page
func newPagePool(ctx context.Context, workerCount, size int, work pageWork) *pagePool {
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > size && size > 0 {
		workerCount = size
	}
	log.Printf("  → Starting %d page workers for %d pages...", workerCount, size)

	pool := &pagePool{
		jobs:    make(chan int, size),
		results: make(chan pageResult, size),
	}
	for i := 0; i < workerCount; i++ {
		pool.wg.Add(1)
		go pool.worker(ctx, i+1, work)
	}
	return pool
}

// Submit queues a page number.
func (p *pagePool) Submit(page int) {
	p.jobs <- page
}

// Close stops accepting pages and waits for every worker to finish, then
// closes the results channel.
func (p *pagePool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// Results returns the read-only results channel.
func (p *pagePool) Results() <-chan pageResult {
	return p.results
}

func (p *pagePool) worker(ctx context.Context, id int, work pageWork) {
	defer p.wg.Done()

	for page := range p.jobs {
		if err := ctx.Err(); err != nil {
			p.results <- pageResult{page: page, err: err}
			continue
		}

		result := work(ctx, page)
		if result.err != nil {
			log.Printf("  [Worker #%d] ✗ Page %d failed: %v", id, page, result.err)
		} else {
			log.Printf("  [Worker #%d] ✓ Page %d: %d complaints", id, page, len(result.records))
		}
		p.results <- result
	}
}
