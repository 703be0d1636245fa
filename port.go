package serialport

import (
	"context"
	"io"
	"sync"
)

// State is the lifecycle state of a Port
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// EventKind identifies a Port notification
type EventKind int

const (
	// EventOpen fires at most once per successful open.
	EventOpen EventKind = iota
	// EventClose fires exactly once per open/close cycle, for both the
	// explicit close path and the fatal-error path.
	EventClose
	// EventError carries a fatal read-loop error. It always precedes the
	// EventClose of the same cycle.
	EventError
	// EventReadable fires when the receive buffer transitions from empty
	// to non-empty. Coalesced; consumers pull data with Read.
	EventReadable
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventReadable:
		return "readable"
	default:
		return "unknown"
	}
}

// Event is a Port notification. Err is set only for EventError.
type Event struct {
	Kind EventKind
	Err  error
}

// eventBufferDepth is the capacity of the subscription channel. Events are
// dropped rather than blocking the state machine if a subscriber falls this
// far behind.
const eventBufferDepth = 64

type writeResult struct {
	n   int
	err error
}

type writeRequest struct {
	ctx  context.Context
	data []byte
	done chan writeResult
}

// Port is a stream-oriented serial port driven by a pluggable Binding.
//
// A Port cycles Closed -> Opening -> Open -> Closing -> Closed indefinitely
// on the same value. Lifecycle operations check the current state
// synchronously and reject illegal transitions; they are never queued.
// A fatal read error while open forces the port directly to Closed,
// emitting EventError followed by exactly one EventClose.
//
// Read and Write carry the byte stream. Incoming data preserves the order
// it was read from the binding and is never dropped: when the internal
// receive buffer fills up the background read loop stops issuing reads
// until the consumer catches up. Writes are serialized FIFO with exactly
// one write in flight against the binding at a time.
type Port struct {
	path    string
	opts    Options
	binding Binding

	mu    sync.Mutex
	state State
	sess  Session

	// per-cycle plumbing, replaced on every successful open
	stop     chan struct{}
	pumpDone chan struct{}
	readDone chan struct{}

	// write queue, FIFO, guarded by mu
	wq      []*writeRequest
	wNotify chan struct{}

	// receive buffer between read loop and consumer, guarded by mu
	rxBuf      []byte
	rxReadable chan struct{}
	rxSpace    chan struct{}

	// flush barrier, guarded by mu: flushSeq is the discard generation,
	// flushing parks the read loop while the session flush runs, loopSeq
	// is the generation the read loop last acknowledged, and flushCond
	// wakes both sides.
	flushSeq  uint64
	flushing  bool
	loopSeq   uint64
	flushCond *sync.Cond

	events chan Event
}

// New creates a Port for the device at path. Unless WithAutoOpen(false) is
// given, the port is opened before New returns and the open error, if any,
// is returned directly.
func New(path string, opts ...Option) (*Port, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.Binding == nil {
		o.Binding = defaultBinding()
	}
	if o.Binding == nil {
		return nil, ErrInvalidConfig
	}

	p := &Port{
		path:    path,
		opts:    o,
		binding: o.Binding,
		state:   StateClosed,
		events:  make(chan Event, eventBufferDepth),
	}
	p.flushCond = sync.NewCond(&p.mu)

	if o.AutoOpen {
		if err := p.Open(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Path returns the device identifier the port was created with
func (p *Port) Path() string { return p.path }

// Options returns a copy of the port configuration
func (p *Port) Options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// State returns the current lifecycle state
func (p *Port) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsOpen reports whether the port is currently open
func (p *Port) IsOpen() bool {
	return p.State() == StateOpen
}

// Events returns the notification channel. The channel is buffered; a
// subscriber that stops draining it eventually misses events rather than
// blocking port operations.
func (p *Port) Events() <-chan Event {
	return p.events
}

// Open transitions the port from Closed to Open. It is legal only from the
// Closed state: concurrent or repeated opens fail with ErrAlreadyOpening or
// ErrAlreadyOpen without touching the binding. On success the background
// read loop and write pump are started and EventOpen is emitted; on failure
// the port returns to Closed and no EventOpen fires.
func (p *Port) Open() error {
	p.mu.Lock()
	switch p.state {
	case StateOpening:
		p.mu.Unlock()
		return ErrAlreadyOpening
	case StateOpen:
		p.mu.Unlock()
		return ErrAlreadyOpen
	case StateClosing:
		p.mu.Unlock()
		return ErrClosing
	}
	p.state = StateOpening
	p.mu.Unlock()

	sess, err := p.binding.Open(p.path, p.opts)

	p.mu.Lock()
	if err != nil {
		p.state = StateClosed
		p.mu.Unlock()
		return err
	}
	p.sess = sess
	p.state = StateOpen
	p.stop = make(chan struct{})
	p.pumpDone = make(chan struct{})
	p.readDone = make(chan struct{})
	p.wNotify = make(chan struct{}, 1)
	p.rxBuf = nil
	p.rxReadable = make(chan struct{}, 1)
	p.rxSpace = make(chan struct{}, 1)
	stop := p.stop
	chunkSize := p.opts.ReadChunkSize
	p.mu.Unlock()

	p.emit(Event{Kind: EventOpen})
	go p.readLoop(sess, chunkSize, stop, p.readDone)
	go p.writePump(sess, stop, p.pumpDone)
	return nil
}

// Close transitions the port from Open to Closed. It stops the read loop,
// fails all queued writes with ErrPortClosed, waits for the in-flight write
// to settle, closes the binding session and emits EventClose. Calling Close
// from any state but Open fails with ErrNotOpen.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return ErrNotOpen
	}
	p.state = StateClosing
	// Release a read loop parked on the flush barrier and any Flush
	// waiting for its acknowledgement.
	p.flushCond.Broadcast()
	sess := p.sess
	stop := p.stop
	pumpDone := p.pumpDone
	readDone := p.readDone
	p.mu.Unlock()

	// Stop issuing reads and writes; the pump finishes its in-flight
	// write before exiting.
	close(stop)
	<-pumpDone
	p.failPendingWrites()

	// Closing the session unblocks a read loop iteration stuck in the
	// binding's Read.
	err := sess.Close()
	<-readDone

	p.mu.Lock()
	p.state = StateClosed
	p.sess = nil
	p.mu.Unlock()

	p.wakeConsumer()
	p.emit(Event{Kind: EventClose})
	return err
}

// Update reconfigures the open port. The port state is unchanged whether
// the update succeeds or fails.
func (p *Port) Update(opts ...Option) error {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return ErrNotOpen
	}
	sess := p.sess
	o := p.opts
	p.mu.Unlock()

	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return err
		}
	}
	if err := sess.Update(o); err != nil {
		return err
	}

	p.mu.Lock()
	p.opts = o
	p.mu.Unlock()
	return nil
}

// Flush discards buffered data in both directions. Data read from the
// binding before or during the flush, including a read loop iteration in
// flight at the moment of the call, is discarded rather than delivered.
// Flush does not return until the read loop has acknowledged the new
// generation, so data arriving afterwards is never mistaken for stale.
func (p *Port) Flush() error {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return ErrNotOpen
	}
	p.flushSeq++
	p.flushing = true
	p.rxBuf = nil
	// Wake a read loop blocked on backpressure so it observes the new
	// flush generation and discards its chunk.
	signal(p.rxSpace)
	sess := p.sess
	seq := p.flushSeq
	p.mu.Unlock()

	// The session flush clears the device buffer and interrupts a blocked
	// session read, so the loop reaches the barrier instead of delivering
	// pre-flush bytes under the new generation.
	err := sess.Flush()

	p.mu.Lock()
	p.flushing = false
	p.flushCond.Broadcast()
	for p.loopSeq < seq && p.state == StateOpen {
		p.flushCond.Wait()
	}
	p.mu.Unlock()

	return err
}

// Drain waits until all previously written data has been transmitted
func (p *Port) Drain() error {
	sess, err := p.openSession()
	if err != nil {
		return err
	}
	return sess.Drain()
}

// SetSignals changes modem control lines on the open port
func (p *Port) SetSignals(ls LineState) error {
	sess, err := p.openSession()
	if err != nil {
		return err
	}
	return sess.SetSignals(ls)
}

// GetSignals reports modem line status of the open port
func (p *Port) GetSignals() (ModemSignals, error) {
	sess, err := p.openSession()
	if err != nil {
		return ModemSignals{}, err
	}
	return sess.GetSignals()
}

func (p *Port) openSession() (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateOpen {
		return nil, ErrNotOpen
	}
	return p.sess, nil
}

// Write queues data for transmission and blocks until it has been written
// to the binding or failed. Writes are dispatched strictly in submission
// order. A write issued while the port is not open fails fast with
// ErrPortClosed and never reaches the binding; the same applies to writes
// still queued when the port closes.
func (p *Port) Write(data []byte) (int, error) {
	return p.WriteContext(context.Background(), data)
}

// WriteContext is Write with cancellation. A cancelled context abandons the
// wait; a request not yet picked up by the write pump is skipped entirely.
func (p *Port) WriteContext(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	req := &writeRequest{ctx: ctx, data: data, done: make(chan writeResult, 1)}

	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	p.wq = append(p.wq, req)
	signal(p.wNotify)
	p.mu.Unlock()

	select {
	case res := <-req.done:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Read delivers received data in arrival order. It blocks until data is
// available or the port leaves the Open state; buffered data can still be
// drained after close, after which Read fails with ErrPortClosed.
func (p *Port) Read(buf []byte) (int, error) {
	return p.ReadContext(context.Background(), buf)
}

// ReadContext is Read with cancellation
func (p *Port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		p.mu.Lock()
		if len(p.rxBuf) > 0 {
			n := copy(buf, p.rxBuf)
			p.rxBuf = p.rxBuf[n:]
			if len(p.rxBuf) == 0 {
				p.rxBuf = nil
			}
			signal(p.rxSpace)
			p.mu.Unlock()
			return n, nil
		}
		if p.state != StateOpen {
			p.mu.Unlock()
			return 0, ErrPortClosed
		}
		readable := p.rxReadable
		p.mu.Unlock()

		select {
		case <-readable:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// readLoop runs for the duration of one open cycle. Each non-empty chunk is
// appended to the receive buffer in arrival order; an empty result simply
// triggers another attempt; an error drives the fatal-error transition.
func (p *Port) readLoop(sess Session, chunkSize int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		p.mu.Lock()
		for p.flushing && p.state == StateOpen {
			p.flushCond.Wait()
		}
		if p.state != StateOpen {
			p.mu.Unlock()
			return
		}
		seq := p.flushSeq
		p.loopSeq = seq
		p.flushCond.Broadcast()
		p.mu.Unlock()

		n, err := sess.Read(buf)
		if err != nil {
			p.fatal(err)
			return
		}
		if n == 0 {
			continue
		}
		if !p.deliver(buf[:n], seq, stop) {
			return
		}
	}
}

// deliver appends a chunk to the receive buffer, honoring backpressure and
// the flush generation snapshotted before the binding read. It returns
// false when the cycle is shutting down.
func (p *Port) deliver(chunk []byte, seq uint64, stop <-chan struct{}) bool {
	p.mu.Lock()
	for {
		if p.state != StateOpen {
			p.mu.Unlock()
			return false
		}
		if seq != p.flushSeq {
			// Flushed while this chunk was in flight; discard it.
			p.mu.Unlock()
			return true
		}
		// A chunk larger than the buffer is still accepted once the
		// buffer is empty, so ReadBufferSize < ReadChunkSize cannot
		// deadlock the loop.
		if len(p.rxBuf) == 0 || len(p.rxBuf)+len(chunk) <= p.opts.ReadBufferSize {
			break
		}
		space := p.rxSpace
		p.mu.Unlock()
		select {
		case <-space:
		case <-stop:
			return false
		}
		p.mu.Lock()
	}
	wasEmpty := len(p.rxBuf) == 0
	p.rxBuf = append(p.rxBuf, chunk...)
	signal(p.rxReadable)
	p.mu.Unlock()

	if wasEmpty {
		p.emit(Event{Kind: EventReadable})
	}
	return true
}

// writePump serializes writes: exactly one request is in flight against the
// binding at a time, dispatched strictly in FIFO order.
func (p *Port) writePump(sess Session, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		p.mu.Lock()
		if len(p.wq) == 0 {
			notify := p.wNotify
			p.mu.Unlock()
			select {
			case <-notify:
				continue
			case <-stop:
				return
			}
		}
		req := p.wq[0]
		p.wq = p.wq[1:]
		p.mu.Unlock()

		if err := req.ctx.Err(); err != nil {
			req.done <- writeResult{0, err}
			continue
		}
		n, err := writeFull(sess, req.data)
		req.done <- writeResult{n, err}
	}
}

// writeFull re-issues short writes until the whole buffer is transmitted
func writeFull(sess Session, data []byte) (int, error) {
	var n int
	for n < len(data) {
		m, err := sess.Write(data[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrNoProgress
		}
	}
	return n, nil
}

// fatal handles an unrecoverable read error: the port transitions directly
// from Open to Closed, bypassing Closing, and emits EventError followed by
// the cycle's single EventClose. Errors reported while the port is already
// Closing are the expected result of the session being torn down and are
// ignored.
func (p *Port) fatal(err error) {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return
	}
	p.state = StateClosed
	sess := p.sess
	p.sess = nil
	stop := p.stop
	// Take the queue and wake channel in the same critical section as the
	// state change so a racing Open cannot enqueue writes this stale
	// handler would steal, or swap the channel it is about to signal.
	pending := p.wq
	p.wq = nil
	readable := p.rxReadable
	p.flushCond.Broadcast()
	p.mu.Unlock()

	close(stop)
	for _, req := range pending {
		req.done <- writeResult{0, ErrPortClosed}
	}
	sess.Close()
	signal(readable)

	p.emit(Event{Kind: EventError, Err: err})
	p.emit(Event{Kind: EventClose})
}

// failPendingWrites errors out every queued write without delivering it to
// the binding.
func (p *Port) failPendingWrites() {
	p.mu.Lock()
	pending := p.wq
	p.wq = nil
	p.mu.Unlock()
	for _, req := range pending {
		req.done <- writeResult{0, ErrPortClosed}
	}
}

// wakeConsumer unblocks a Read waiting for data so it can observe the
// closed state.
func (p *Port) wakeConsumer() {
	p.mu.Lock()
	readable := p.rxReadable
	p.mu.Unlock()
	if readable != nil {
		signal(readable)
	}
}

func (p *Port) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// signal performs a coalescing send on a capacity-1 notification channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
