// Package pool is spec.md §4.9's connection pool: an idle list, a
// pending-connections count, and a FIFO waiter queue serialized on a
// single mutex, handing out single-owner *conn.Conn borrows and
// absorbing the fatal/non-fatal classification from gomysql.IsFatal
// on return.
package pool

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gomysql "github.com/dbbouncer/gomysql"
	"github.com/dbbouncer/gomysql/conn"
	"github.com/dbbouncer/gomysql/internal/observability"
)

// Config is spec.md §4.9's configuration table.
type Config struct {
	InitialSize    int
	MaxSize        int
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	PingTimeout    time.Duration
	RetryInterval  time.Duration
	ResetOnReturn  bool
	ThreadSafe     bool
}

func (c Config) withDefaults() Config {
	if c.MaxSize == 0 {
		c.MaxSize = 10
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 2 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	return c
}

// nodeState names the per-connection states from spec.md §4.9:
// initial -> connecting -> idle -> in_use -> resetting -> idle (or
// back to connecting on a fatal error). Only stateIdle and stateInUse
// are ever assigned to a node; a connection being dialed exists only
// as a count in Pool.pending.
type nodeState int

const (
	stateInitial nodeState = iota
	stateConnecting
	stateIdle
	stateInUse
	stateResetting
	stateClosed
)

// node wraps a single pooled *conn.Conn with its pool bookkeeping. The
// idle list holds nodes in insertion order; try_get_one (Acquire) pops
// from the back, giving LIFO reuse of the warmest connection.
type node struct {
	c         *conn.Conn
	state     nodeState
	createdAt time.Time
	lastUsed  time.Time
}

// waiter is one FIFO-ordered entry in the borrow queue; ready is closed
// exactly once, either with a connection or with err set.
type waiter struct {
	ready chan struct{}
	node  *node
	err   error
}

// Pool hands out *conn.Conn borrows, dialing new connections up to
// MaxSize and serving waiters in arrival order when exhausted.
type Pool struct {
	dial    func(ctx context.Context) (*conn.Conn, error)
	metrics *observability.Collector

	mu      sync.Mutex
	cfg     Config
	idle    []*node
	pending int // connecting, counted toward MaxSize
	total   int // idle + pending + in_use
	waiters *list.List // of *waiter, front = longest-waiting

	closed bool
	wg     sync.WaitGroup // background node/ping goroutines
	stopCh chan struct{}
}

// New creates a pool that dials connections via dial, and starts
// InitialSize connections eagerly in the background.
func New(cfg Config, dial func(ctx context.Context) (*conn.Conn, error), metrics *observability.Collector) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		dial:    dial,
		metrics: metrics,
		cfg:     cfg,
		waiters: list.New(),
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < cfg.InitialSize; i++ {
		p.spawn()
	}
	if cfg.PingInterval > 0 {
		p.wg.Add(1)
		go p.pingLoop()
	}
	return p
}

// spawn starts a new node connecting in the background, counted toward
// MaxSize immediately so concurrent spawns can't overshoot it.
func (p *Pool) spawn() {
	p.mu.Lock()
	if p.closed || p.total >= p.cfg.MaxSize {
		p.mu.Unlock()
		return
	}
	p.total++
	p.pending++
	p.mu.Unlock()

	p.wg.Add(1)
	go p.connectLoop()
}

// connectLoop dials with retry_interval back-off until it succeeds or
// the pool is closed (spec.md: "retry forever unless pool is
// cancelled"), then matches the new node against a waiter or idles it.
func (p *Pool) connectLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			p.mu.Lock()
			p.total--
			p.pending--
			p.mu.Unlock()
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
		c, err := p.dial(ctx)
		cancel()

		if err != nil {
			slog.Warn("pool: connect failed, retrying", "err", err, "retry_interval", p.cfg.RetryInterval)
			select {
			case <-time.After(p.cfg.RetryInterval):
				continue
			case <-p.stopCh:
				p.mu.Lock()
				p.total--
				p.pending--
				p.mu.Unlock()
				return
			}
		}

		n := &node{c: c, state: stateIdle, createdAt: time.Now(), lastUsed: time.Now()}

		p.mu.Lock()
		p.pending--
		if p.closed {
			p.mu.Unlock()
			c.Close(context.Background())
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}
		p.handOff(n)
		p.mu.Unlock()
		return
	}
}

// handOff must be called with mu held. It gives n to the longest-waiting
// waiter if one exists (FIFO fairness, spec.md §4.9 point 3), otherwise
// idles it.
func (p *Pool) handOff(n *node) {
	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		w := front.Value.(*waiter)
		n.state = stateInUse
		n.lastUsed = time.Now()
		w.node = n
		close(w.ready)
		return
	}
	n.state = stateIdle
	p.idle = append(p.idle, n)
}

// Acquire borrows a connection, creating one if the pool is under
// MaxSize, or queuing FIFO behind other waiters otherwise.
func (p *Pool) Acquire(ctx context.Context) (*conn.Conn, error) {
	start := time.Now()
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, gomysql.New(gomysql.KindClientError, fmt.Errorf("pool: closed"))
	}

	// try_get_one: pop the most recently idled node (LIFO, warm cache).
	for len(p.idle) > 0 {
		n := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		n.state = stateInUse
		n.lastUsed = time.Now()
		p.mu.Unlock()
		return n.c, nil
	}

	if p.total < p.cfg.MaxSize {
		p.total++
		p.pending++
		p.wg.Add(1)
		go p.connectLoop()
	}

	// waitForNode expects mu held on entry; it pushes the waiter and
	// unlocks itself.
	return p.waitForNode(ctx, start)
}

// waitForNode enqueues a FIFO waiter and blocks until handOff delivers a
// node, the context is cancelled, or connect_timeout elapses. Callers
// must hold p.mu on entry; waitForNode releases it.
func (p *Pool) waitForNode(ctx context.Context, start time.Time) (*conn.Conn, error) {
	w := &waiter{ready: make(chan struct{})}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	timeout := time.NewTimer(p.cfg.ConnectTimeout)
	defer timeout.Stop()

	select {
	case <-w.ready:
		if p.metrics != nil {
			p.metrics.AcquireWait(time.Since(start))
		}
		if w.err != nil {
			return nil, w.err
		}
		return w.node.c, nil

	case <-ctx.Done():
		p.removeWaiter(elem, w)
		return nil, gomysql.New(gomysql.KindCancelled, ctx.Err())

	case <-timeout.C:
		p.removeWaiter(elem, w)
		if p.metrics != nil {
			p.metrics.PoolExhausted()
		}
		return nil, gomysql.New(gomysql.KindTimeout, fmt.Errorf("acquire timed out after %s", p.cfg.ConnectTimeout))

	case <-p.stopCh:
		p.removeWaiter(elem, w)
		return nil, gomysql.New(gomysql.KindClientError, fmt.Errorf("pool: closed"))
	}
}

// removeWaiter drops a still-queued waiter, or — if handOff raced in
// and already matched it to a node — returns that node straight to the
// idle list instead of leaking it (spec.md §4.9 point 5: a cancelled
// borrow must not leak a connection).
func (p *Pool) removeWaiter(elem *list.Element, w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-w.ready:
		if w.node != nil {
			w.node.state = stateIdle
			p.idle = append(p.idle, w.node)
		}
		return
	default:
	}
	p.waiters.Remove(elem)
}

// Release returns a borrowed connection to the pool. A connection left
// fatally errored by its last operation is closed and a replacement is
// spawned; otherwise it is optionally reset before going back to idle.
func (p *Pool) Release(c *conn.Conn, lastErr error) {
	ctx := context.Background()

	if gomysql.IsFatal(lastErr) {
		c.Close(ctx)
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.spawn()
		return
	}

	if p.cfg.ResetOnReturn {
		if err := c.Reset(ctx); err != nil {
			c.Close(ctx)
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			p.spawn()
			return
		}
	}

	n := &node{c: c, state: stateIdle, createdAt: time.Now(), lastUsed: time.Now()}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.Close(ctx)
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return
	}
	p.handOff(n)
	p.mu.Unlock()
}

// pingLoop health-checks idle connections every PingInterval (spec.md
// §4.9: "Periodic idle -> resetting -> idle as a health ping"). A node
// currently in_use is never touched, since Acquire already removed it
// from p.idle.
func (p *Pool) pingLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pingIdle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) pingIdle() {
	p.mu.Lock()
	candidates := make([]*node, len(p.idle))
	copy(candidates, p.idle)
	p.idle = p.idle[:0]
	p.mu.Unlock()

	for _, n := range candidates {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PingTimeout)
		start := time.Now()
		err := n.c.Ping(ctx)
		cancel()
		if p.metrics != nil {
			p.metrics.PingCompleted(time.Since(start))
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			n.c.Close(context.Background())
			continue
		}
		if gomysql.IsFatal(err) {
			p.total--
			p.mu.Unlock()
			n.c.Close(context.Background())
			p.spawn()
			continue
		}
		p.idle = append(p.idle, n)
		p.mu.Unlock()
	}
}

// Stats reports a snapshot of pool occupancy, matching the shape
// reported over /debug/pool.
type Stats struct {
	Idle    int
	Pending int
	Total   int
	Waiting int
	MaxSize int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Idle:    len(p.idle),
		Pending: p.pending,
		Total:   p.total,
		Waiting: p.waiters.Len(),
		MaxSize: p.cfg.MaxSize,
	}
}

// UpdateConfig swaps in a new Config, used by a config.Watcher's
// hot-reload callback. Pool size limits take effect for future
// Acquire/spawn decisions; it does not forcibly shrink an
// already-larger pool.
func (p *Pool) UpdateConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg.withDefaults()
}

// Close cancels every background node/ping task and waits for them to
// finish, then closes every idle connection. After Close returns no
// further Acquire succeeds.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		select {
		case <-w.ready:
		default:
			w.err = gomysql.New(gomysql.KindClientError, fmt.Errorf("pool: closed"))
			close(w.ready)
		}
	}
	p.waiters.Init()
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()

	ctx := context.Background()
	for _, n := range idle {
		n.c.Close(ctx)
	}
}
