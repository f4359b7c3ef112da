package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/warp/benefit-engine/benefit"
)

// =============================================================================
// DISPATCHER - Ordered asynchronous document intake
// =============================================================================

// Envelope is one document addressed to one person.
type Envelope struct {
	PersonID string
	Document benefit.Document
}

// Dispatcher fans documents out to a fixed pool of workers. The worker is
// chosen by hashing the person id, so all documents for one person are
// processed in submission order while unrelated persons run in parallel.
type Dispatcher struct {
	svc     *Service
	queues  []chan Envelope
	group   *errgroup.Group
	started bool

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher with the given number of workers.
// Queue depth per worker is fixed at 64.
func NewDispatcher(svc *Service, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan Envelope, workers)
	for i := range queues {
		queues[i] = make(chan Envelope, 64)
	}
	return &Dispatcher{svc: svc, queues: queues}
}

// Start launches the worker pool. Workers drain their queue until Stop
// closes it or the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	g, ctx := errgroup.WithContext(ctx)
	d.group = g
	for i := range d.queues {
		queue := d.queues[i]
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case env, ok := <-queue:
					if !ok {
						return nil
					}
					if err := d.svc.Process(ctx, env.PersonID, env.Document); err != nil {
						// A bad document must not take the pool down.
						log.Printf("[Dispatcher] Document %s for person %s failed: %v",
							env.Document.DocumentID(), env.PersonID, err)
					}
				}
			}
		})
	}
	log.Printf("[Dispatcher] Started with %d workers", len(d.queues))
}

// Submit enqueues a document for asynchronous processing. Blocks when the
// person's queue is full, fails when the dispatcher has been stopped.
func (d *Dispatcher) Submit(ctx context.Context, personID string, doc benefit.Document) error {
	d.mu.Lock()
	if d.closed || !d.started {
		d.mu.Unlock()
		return fmt.Errorf("submit document %s: dispatcher not running", doc.DocumentID())
	}
	queue := d.queues[d.queueFor(personID)]
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case queue <- Envelope{PersonID: personID, Document: doc}:
		return nil
	}
}

// Stop closes the queues and waits for the workers to drain them.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.started || d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	err := d.group.Wait()
	log.Println("[Dispatcher] Stopped")
	return err
}

func (d *Dispatcher) queueFor(personID string) int {
	h := fnv.New32a()
	h.Write([]byte(personID))
	return int(h.Sum32() % uint32(len(d.queues)))
}
