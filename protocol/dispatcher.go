package protocol

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Link is the connection to the glasses. Typically a GATT client or a serial
// bridge implements this interface.
//
// WriteFrame returns once the write completed. The dispatcher never calls it again
// before the previous call returned. Inbound data goes to HandleNotification and
// loss of the connection to HandleDisconnect.
type Link interface {
	WriteFrame(frame []byte) error
	MTU() int
}

// State of the dispatcher's link.
type State uint8

const (
	NotReady State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	}
	return "Unknown"
}

// ATT header bytes taken from every GATT write.
const attHeaderSize = 3

// Dispatcher serializes commands onto a Link and matches responses to them.
// One request is in flight at a time; the rest wait in submission order.
type Dispatcher struct {
	link Link
	cfg  Config
	log  logrus.FieldLogger

	mu        sync.Mutex
	state     State
	queue     *doublylinkedlist.List // *request, oldest first
	pending   map[string]*request    // queued and in flight, by correlation key
	inflight  *request
	abandoned *lru.Cache
	qid       QueryID
	seq       uint64
	paused    bool
	pauseT    *time.Timer

	wake chan struct{}
	flow chan struct{}

	rxMu   sync.Mutex
	parser FrameParser

	subMu  sync.RWMutex
	subs   map[int]func(Event)
	subSeq int

	startOnce sync.Once
	quit      chan struct{}
	wg        sync.WaitGroup
}

func NewDispatcher(link Link, cfg Config, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg = cfg.withDefaults()
	abandonedSize := cfg.AbandonedKeys
	if abandonedSize <= 0 {
		abandonedSize = 1
	}
	abandoned, _ := lru.New(abandonedSize)
	return &Dispatcher{
		link:      link,
		cfg:       cfg,
		log:       log,
		state:     NotReady,
		queue:     doublylinkedlist.New(),
		pending:   make(map[string]*request),
		abandoned: abandoned,
		qid:       InitialQueryID(),
		wake:      make(chan struct{}, 1),
		flow:      make(chan struct{}, 1),
		subs:      make(map[int]func(Event)),
		quit:      make(chan struct{}),
	}
}

// Start marks the link ready and runs the sender.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.sender()
	})
	d.HandleConnected()
}

// HandleConnected marks the link ready again after a reconnect.
func (d *Dispatcher) HandleConnected() {
	d.mu.Lock()
	if d.state == NotReady {
		d.state = Ready
	}
	d.mu.Unlock()
	d.signal(d.wake)
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close fails everything outstanding with ErrClosed and stops the sender.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.state == Closed {
		d.mu.Unlock()
		return nil
	}
	d.state = Closed
	d.failAllLocked(ErrClosed)
	if d.pauseT != nil {
		d.pauseT.Stop()
	}
	d.mu.Unlock()
	close(d.quit)
	d.wg.Wait()
	return nil
}

// Go submits cmd and returns immediately. A request whose correlation key is
// already outstanding is rejected with ErrDuplicateRequest.
func (d *Dispatcher) Go(cmd *Command) (*Call, error) {
	if cmd.frames == nil {
		return nil, errors.Errorf("%v has no frames to send", cmd)
	}
	d.mu.Lock()
	if err := d.acceptingLocked(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	var q QueryID
	if cmd.Correlation == ByQueryID {
		q = d.qid
		d.qid = d.qid.Next()
	}
	d.seq++
	key := correlationKey(cmd.Op, cmd.Correlation, q, cmd.Name, d.seq)
	if _, dup := d.pending[key]; dup {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrDuplicateRequest, "%v", cmd)
	}
	d.mu.Unlock()

	// Frames are built outside the lock; image compression can take a while.
	frames, err := cmd.frames(q, d.link.MTU())
	if err != nil {
		return nil, err
	}

	req := &request{cmd: cmd, key: key, frames: frames, done: make(chan struct{})}
	call := &Call{Command: cmd, Done: make(chan *Call, 1), req: req}
	req.call = call

	d.mu.Lock()
	if err := d.acceptingLocked(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if _, dup := d.pending[key]; dup {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrDuplicateRequest, "%v", cmd)
	}
	if d.cfg.QueueLimit > 0 && d.queue.Size() >= d.cfg.QueueLimit {
		d.mu.Unlock()
		return nil, ErrQueueFull
	}
	req.state = stateQueued
	d.pending[key] = req
	d.queue.Add(req)
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{"cmd": cmd, "key": key}).Debug("Request queued")
	d.signal(d.wake)
	return call, nil
}

// Do submits cmd and waits for its response. Cancelling ctx dequeues a request that
// has not been sent yet; a sent one keeps its slot and its response is discarded.
func (d *Dispatcher) Do(ctx context.Context, cmd *Command) (Response, error) {
	call, err := d.Go(cmd)
	if err != nil {
		return nil, err
	}
	select {
	case <-call.Done:
		return call.Reply, call.Error
	case <-ctx.Done():
		d.cancel(call.req, ctx.Err())
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) acceptingLocked() error {
	switch d.state {
	case Closed:
		return ErrClosed
	case NotReady:
		return ErrNotReady
	}
	return nil
}

func (d *Dispatcher) cancel(req *request, reason error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch req.state {
	case stateQueued:
		d.finishLocked(req, nil, reason, stateFailed)
	case stateSent:
		req.cancelled = true
		d.abandoned.Add(req.key, struct{}{})
		d.log.WithField("cmd", req.cmd).Debug("Request cancelled after send, response will be discarded")
	}
}

// finishLocked moves req to a terminal state and hands the outcome to its caller.
func (d *Dispatcher) finishLocked(req *request, resp Response, err error, st requestState) bool {
	if req.state.terminal() {
		return false
	}
	wasQueued := req.state == stateQueued
	req.state = st
	if d.pending[req.key] == req {
		delete(d.pending, req.key)
	}
	if d.inflight == req {
		d.inflight = nil
	}
	if wasQueued {
		if i := d.queue.IndexOf(req); i >= 0 {
			d.queue.Remove(i)
		}
	}
	close(req.done)
	req.call.Reply, req.call.Error = resp, err
	req.call.Done <- req.call
	return true
}

func (d *Dispatcher) failAllLocked(err error) {
	if d.inflight != nil {
		d.finishLocked(d.inflight, nil, err, stateFailed)
	}
	for d.queue.Size() > 0 {
		v, _ := d.queue.Get(0)
		req := v.(*request)
		if !d.finishLocked(req, nil, err, stateFailed) {
			d.queue.Remove(0)
		}
	}
}

func (d *Dispatcher) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// sender writes one request at a time and waits for it to reach a terminal state
// before taking the next.
func (d *Dispatcher) sender() {
	defer d.wg.Done()
	for {
		req := d.next()
		if req == nil {
			return
		}
		d.transmit(req)
	}
}

func (d *Dispatcher) next() *request {
	for {
		d.mu.Lock()
		if d.state == Closed {
			d.mu.Unlock()
			return nil
		}
		if d.state == Ready && !d.paused && d.inflight == nil && d.queue.Size() > 0 {
			v, _ := d.queue.Get(0)
			d.queue.Remove(0)
			req := v.(*request)
			req.state = stateSent
			d.inflight = req
			d.mu.Unlock()
			return req
		}
		d.mu.Unlock()
		select {
		case <-d.wake:
		case <-d.flow:
		case <-d.quit:
			return nil
		}
	}
}

func (d *Dispatcher) transmit(req *request) {
	log := d.log.WithField("cmd", req.cmd)
	timeout := req.cmd.Timeout
	if timeout <= 0 {
		timeout = d.cfg.RequestTimeout
		if req.cmd.transfer {
			timeout = d.cfg.TransferTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	expire := func() {
		d.mu.Lock()
		if d.finishLocked(req, nil, errors.Wrapf(ErrTimeout, "%v after %v", req.cmd, timeout), stateTimedOut) {
			d.abandoned.Add(req.key, struct{}{})
			log.WithField("timeout", timeout).Warn("Request timed out")
		}
		d.mu.Unlock()
	}

	for i, f := range req.frames {
		switch d.waitFlow(req, timer.C) {
		case flowExpired:
			expire()
			return
		case flowAborted:
			return
		}
		b, err := f.Bytes()
		if err == nil {
			log.WithField("frame", hex.EncodeToString(b)).Debug("TX")
			err = d.link.WriteFrame(b)
		}
		if err != nil {
			log.WithError(err).Warn("Frame write failed")
			d.mu.Lock()
			d.finishLocked(req, nil, errors.Wrapf(err, "write frame %d/%d of %v", i+1, len(req.frames), req.cmd), stateFailed)
			d.mu.Unlock()
			return
		}
	}

	if req.cmd.Correlation == NoResponse {
		d.mu.Lock()
		d.finishLocked(req, Ack{}, nil, stateResolved)
		d.mu.Unlock()
		return
	}

	select {
	case <-req.done:
	case <-timer.C:
		expire()
	case <-d.quit:
	}
}

type flowResult uint8

const (
	flowClear flowResult = iota
	flowAborted
	flowExpired
)

// waitFlow blocks while the device reported it is busy.
func (d *Dispatcher) waitFlow(req *request, deadline <-chan time.Time) flowResult {
	for {
		d.mu.Lock()
		paused, ended := d.paused, req.state.terminal()
		d.mu.Unlock()
		if ended {
			return flowAborted
		}
		if !paused {
			return flowClear
		}
		select {
		case <-d.flow:
		case <-req.done:
			return flowAborted
		case <-deadline:
			return flowExpired
		case <-d.quit:
			return flowAborted
		}
	}
}

func (d *Dispatcher) setPaused(p bool) {
	d.mu.Lock()
	d.paused = p
	if d.pauseT != nil {
		d.pauseT.Stop()
		d.pauseT = nil
	}
	if p {
		d.pauseT = time.AfterFunc(d.cfg.FlowControlPause, func() {
			d.log.Warn("No flow control resume from device, resuming")
			d.setPaused(false)
		})
	}
	d.mu.Unlock()
	if !p {
		d.signal(d.flow)
	}
}

// HandleNotification feeds bytes received from the link. Frames may be split
// across calls.
func (d *Dispatcher) HandleNotification(b []byte) {
	d.rxMu.Lock()
	frames, err := d.parser.Feed(b)
	d.rxMu.Unlock()
	if err != nil {
		d.log.WithError(err).Warn("RX frame dropped")
	}
	for _, f := range frames {
		d.handleFrame(f)
	}
}

func (d *Dispatcher) handleFrame(f Frame) {
	d.log.WithFields(logrus.Fields{"op": f.Opcode, "len": len(f.Payload)}).Debug("RX")
	if f.Opcode.Unsolicited() {
		d.handleEvent(f)
		return
	}

	key, body, err := frameCorrelation(f)
	if err != nil {
		d.log.WithError(err).WithField("op", f.Opcode).Warn("Unmatched response dropped")
		return
	}

	d.mu.Lock()
	req := d.inflight
	if req == nil || req.key != key {
		abandoned := d.abandoned.Contains(key)
		d.mu.Unlock()
		if abandoned {
			d.log.WithField("key", key).Debug("Late response for abandoned request discarded")
		} else {
			d.log.WithField("key", key).Warn("Response without pending request dropped")
		}
		return
	}
	d.mu.Unlock()

	resp, err := req.cmd.decode(body)
	if err != nil {
		err = errors.Wrapf(err, "decode %v response", req.cmd)
	}

	d.mu.Lock()
	if req.cancelled {
		d.log.WithField("cmd", req.cmd).Debug("Response for cancelled request discarded")
	}
	st := stateResolved
	if err != nil {
		st = stateFailed
	}
	d.finishLocked(req, resp, err, st)
	d.mu.Unlock()
}

func (d *Dispatcher) handleEvent(f Frame) {
	ev, err := DecodeEvent(f)
	if err != nil {
		d.log.WithError(err).WithField("op", f.Opcode).Warn("Unparsable notification discarded")
		return
	}
	d.HandleEvent(ev)
}

// HandleEvent takes a notification that arrived outside the frame stream, such as
// a GATT characteristic of its own. It never touches a partially received frame.
func (d *Dispatcher) HandleEvent(ev Event) {
	if fc, ok := ev.(FlowControlEvent); ok {
		d.handleFlowControl(fc.Status)
	}
	d.publish(ev)
}

func (d *Dispatcher) handleFlowControl(s FlowControlStatus) {
	switch s {
	case FlowOn:
		d.setPaused(false)
		return
	case FlowOff:
		d.setPaused(true)
		return
	}
	kind, ok := s.errorKind()
	if !ok {
		d.log.WithField("status", s).Warn("Unknown flow control status")
		return
	}
	perr := &ProtocolError{Kind: kind}
	d.mu.Lock()
	req := d.inflight
	failed := req != nil && d.finishLocked(req, nil, perr, stateFailed)
	d.mu.Unlock()
	if failed {
		d.log.WithField("cmd", req.cmd).WithError(perr).Warn("Request rejected by device")
		return
	}
	d.publish(LinkHealthEvent{Err: perr})
}

// HandleDisconnect fails every outstanding request with ErrLinkLost. Requests
// submitted afterwards fail with ErrNotReady until HandleConnected.
func (d *Dispatcher) HandleDisconnect(cause error) {
	d.mu.Lock()
	if d.state == Closed {
		d.mu.Unlock()
		return
	}
	d.state = NotReady
	d.paused = false
	if d.pauseT != nil {
		d.pauseT.Stop()
		d.pauseT = nil
	}
	lost := ErrLinkLost
	if cause != nil {
		lost = errors.Wrap(ErrLinkLost, cause.Error())
	}
	d.failAllLocked(lost)
	d.mu.Unlock()

	d.rxMu.Lock()
	d.parser.Reset()
	d.rxMu.Unlock()

	d.log.WithError(cause).Warn("Link lost")
	d.publish(DisconnectedEvent{Err: cause})
}

// Subscribe registers fn for unsolicited events. fn runs on the link's receive
// goroutine and must not block.
func (d *Dispatcher) Subscribe(fn func(Event)) (unsubscribe func()) {
	d.subMu.Lock()
	d.subSeq++
	id := d.subSeq
	d.subs[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Dispatcher) publish(ev Event) {
	d.subMu.RLock()
	fns := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subMu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Pending returns the number of queued and in-flight requests.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// maxChunk is the largest data payload of op that fits one GATT write.
func maxChunk(mtu int, op Opcode) int {
	n := mtu - attHeaderSize - Overhead(op)
	if n < 1 {
		n = 1
	}
	return n
}
