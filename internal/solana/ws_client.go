package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-swap-assistant/internal/observability"
)

// ErrSubscriberClosed is returned once Close has been called.
var ErrSubscriberClosed = errors.New("signature subscriber closed")

// errConnectionLost fails subscribe requests sent on a connection that
// dropped before the node acknowledged them.
var errConnectionLost = errors.New("websocket connection lost")

// WSOptions tunes the signature subscriber. Zero fields take defaults.
type WSOptions struct {
	Backoff      time.Duration // first redial delay, doubled per failure
	MaxBackoff   time.Duration
	Keepalive    time.Duration // ping period
	IdleTimeout  time.Duration // read deadline, extended by every frame or pong
	WriteTimeout time.Duration
	AckTimeout   time.Duration // wait for a subscription ID
	DialTimeout  time.Duration
}

// DefaultWSOptions returns the production settings.
func DefaultWSOptions() WSOptions {
	return WSOptions{
		Backoff:      time.Second,
		MaxBackoff:   30 * time.Second,
		Keepalive:    30 * time.Second,
		IdleTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		AckTimeout:   30 * time.Second,
		DialTimeout:  10 * time.Second,
	}
}

func (o WSOptions) withDefaults() WSOptions {
	d := DefaultWSOptions()
	for _, f := range []struct{ v, def *time.Duration }{
		{&o.Backoff, &d.Backoff},
		{&o.MaxBackoff, &d.MaxBackoff},
		{&o.Keepalive, &d.Keepalive},
		{&o.IdleTimeout, &d.IdleTimeout},
		{&o.WriteTimeout, &d.WriteTimeout},
		{&o.AckTimeout, &d.AckTimeout},
		{&o.DialTimeout, &d.DialTimeout},
	} {
		if *f.v <= 0 {
			*f.v = *f.def
		}
	}
	return o
}

// watch is one caller waiting on a signature. Its channel receives at most
// one notification and is closed exactly once.
type watch struct {
	signature  string
	commitment rpc.CommitmentType
	out        chan SignatureNotification
	done       chan struct{}
	once       sync.Once
}

func newWatch(signature string, commitment rpc.CommitmentType) *watch {
	return &watch{
		signature:  signature,
		commitment: commitment,
		out:        make(chan SignatureNotification, 1),
		done:       make(chan struct{}),
	}
}

// end delivers n, if any, and closes the watch.
func (w *watch) end(n *SignatureNotification) {
	w.once.Do(func() {
		if n != nil {
			w.out <- *n
		}
		close(w.out)
		close(w.done)
		observability.UpdateWSSubscriptions(-1)
	})
}

type ack struct {
	subID int64
	err   error
}

type ackWait struct {
	w  *watch
	ch chan ack
}

// Subscriber confirms transactions over signatureSubscribe. A single
// supervisor goroutine owns the connection: it reads frames, redials with
// backoff when the socket drops and re-registers every open watch on the
// new connection.
type Subscriber struct {
	url  string
	opts WSOptions
	log  *zap.Logger

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	reqSeq  uint64
	bySubID map[int64]*watch
	acks    map[uint64]ackWait

	stop chan struct{}
	wg   sync.WaitGroup
}

// Compile-time interface check.
var _ WSClient = (*Subscriber)(nil)

// NewWSClient dials url and starts the supervisor. A nil opts uses
// DefaultWSOptions.
func NewWSClient(ctx context.Context, url string, opts *WSOptions, logger *zap.Logger) (*Subscriber, error) {
	var o WSOptions
	if opts != nil {
		o = *opts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Subscriber{
		url:     url,
		opts:    o.withDefaults(),
		log:     logger.Named("ws"),
		bySubID: make(map[int64]*watch),
		acks:    make(map[uint64]ackWait),
		stop:    make(chan struct{}),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	s.wg.Add(1)
	go s.supervise(conn)
	return s, nil
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	return conn, nil
}

// SubscribeSignature implements WSClient. Cancelling ctx closes the
// returned channel without a notification.
func (s *Subscriber) SubscribeSignature(ctx context.Context, signature string, commitment rpc.CommitmentType) (<-chan SignatureNotification, error) {
	if commitment == "" {
		commitment = DefaultCommitment
	}
	w := newWatch(signature, commitment)
	observability.UpdateWSSubscriptions(1)

	if err := s.register(ctx, w); err != nil {
		s.unlink(w)
		observability.UpdateWSSubscriptions(-1)
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.unlink(w)
			w.end(nil)
		case <-w.done:
		case <-s.stop:
		}
	}()
	return w.out, nil
}

// register sends signatureSubscribe for w and waits for the node's
// acknowledgement. On success w is reachable by its subscription ID.
func (s *Subscriber) register(ctx context.Context, w *watch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSubscriberClosed
	}
	s.reqSeq++
	reqID := s.reqSeq
	ch := make(chan ack, 1)
	s.acks[reqID] = ackWait{w: w, ch: ch}
	conn := s.conn
	s.mu.Unlock()

	msg := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params:  []interface{}{w.signature, map[string]string{"commitment": string(w.commitment)}},
	}
	if err := s.write(conn, msg); err != nil {
		s.dropAck(reqID)
		return fmt.Errorf("send signatureSubscribe: %w", err)
	}

	timer := time.NewTimer(s.opts.AckTimeout)
	defer timer.Stop()
	select {
	case a := <-ch:
		return a.err
	case <-timer.C:
		s.dropAck(reqID)
		return fmt.Errorf("no subscription id after %s", s.opts.AckTimeout)
	case <-ctx.Done():
		s.dropAck(reqID)
		return ctx.Err()
	case <-s.stop:
		return ErrSubscriberClosed
	}
}

func (s *Subscriber) write(conn *websocket.Conn, v interface{}) error {
	if conn == nil {
		return errConnectionLost
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return conn.WriteJSON(v)
}

func (s *Subscriber) dropAck(reqID uint64) {
	s.mu.Lock()
	delete(s.acks, reqID)
	s.mu.Unlock()
}

// unlink forgets w without closing it.
func (s *Subscriber) unlink(w *watch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.bySubID {
		if cur == w {
			delete(s.bySubID, id)
		}
	}
}

// Close stops the supervisor and closes every open watch.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	conn := s.conn
	open := make([]*watch, 0, len(s.bySubID))
	for _, w := range s.bySubID {
		open = append(open, w)
	}
	s.bySubID = make(map[int64]*watch)
	s.acks = make(map[uint64]ackWait)
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	for _, w := range open {
		w.end(nil)
	}
	s.wg.Wait()
	return nil
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// supervise serves conn until it fails, then redials until Close.
func (s *Subscriber) supervise(conn *websocket.Conn) {
	defer s.wg.Done()
	for conn != nil {
		s.serve(conn)
		if s.isClosed() {
			return
		}
		orphans := s.detach(conn)
		conn = s.redial()
		if conn == nil {
			for _, w := range orphans {
				w.end(nil)
			}
			return
		}
		s.wg.Add(1)
		go s.resubscribe(orphans)
	}
}

// serve reads frames from conn until it errors. A keepalive goroutine
// pings for as long as serve runs.
func (s *Subscriber) serve(conn *websocket.Conn) {
	halt := make(chan struct{})
	defer close(halt)

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)) }
	conn.SetPongHandler(func(string) error { extend(); return nil })

	s.wg.Add(1)
	go s.keepalive(conn, halt)

	for {
		extend()
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		s.dispatch(frame)
	}
}

func (s *Subscriber) keepalive(conn *websocket.Conn, halt <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-halt:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

// detach retires a dead connection. Unacknowledged requests fail and open
// watches are returned for resubscription.
func (s *Subscriber) detach(dead *websocket.Conn) []*watch {
	_ = dead.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == dead {
		s.conn = nil
	}
	for id, a := range s.acks {
		a.ch <- ack{err: errConnectionLost}
		delete(s.acks, id)
	}
	orphans := make([]*watch, 0, len(s.bySubID))
	for _, w := range s.bySubID {
		orphans = append(orphans, w)
	}
	s.bySubID = make(map[int64]*watch)
	return orphans
}

// redial retries with exponential backoff. It returns nil once closed.
func (s *Subscriber) redial() *websocket.Conn {
	delay := s.opts.Backoff
	for {
		select {
		case <-s.stop:
			return nil
		case <-time.After(delay):
		}

		conn, err := s.dial(context.Background())
		observability.RecordWSReconnect(err == nil)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				_ = conn.Close()
				return nil
			}
			s.conn = conn
			s.mu.Unlock()
			s.log.Info("websocket reconnected")
			return conn
		}

		s.log.Warn("websocket redial failed", zap.Duration("retry_in", delay), zap.Error(err))
		if delay *= 2; delay > s.opts.MaxBackoff {
			delay = s.opts.MaxBackoff
		}
	}
}

// resubscribe re-registers watches on the current connection. A watch
// that cannot be restored is closed so its caller falls back to polling.
func (s *Subscriber) resubscribe(watches []*watch) {
	defer s.wg.Done()
	for _, w := range watches {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.AckTimeout)
		err := s.register(ctx, w)
		cancel()
		if err != nil {
			s.log.Warn("resubscribe failed", zap.String("signature", w.signature), zap.Error(err))
			s.unlink(w)
			w.end(nil)
		}
	}
}

// dispatch routes one frame: a notification for an open watch, or the
// answer to a subscribe request.
func (s *Subscriber) dispatch(frame []byte) {
	var msg wsMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.log.Debug("dropping unparseable frame", zap.Error(err))
		return
	}

	if msg.Method == "signatureNotification" {
		var p signatureParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			s.log.Debug("dropping malformed notification", zap.Error(err))
			return
		}
		s.notify(p)
		return
	}
	if msg.ID == 0 {
		return
	}

	a := ack{}
	switch {
	case msg.Error != nil:
		a.err = &RPCError{Code: msg.Error.Code, Message: msg.Error.Message}
	case msg.Result != nil:
		if err := json.Unmarshal(msg.Result, &a.subID); err != nil {
			a.err = fmt.Errorf("subscription id: %w", err)
		}
	default:
		return
	}
	s.settle(msg.ID, a)
}

// settle hands a subscribe answer to its waiter. A successful answer maps
// the subscription ID to the watch before the waiter resumes.
func (s *Subscriber) settle(reqID uint64, a ack) {
	s.mu.Lock()
	wait, ok := s.acks[reqID]
	if ok {
		delete(s.acks, reqID)
		if a.err == nil {
			s.bySubID[a.subID] = wait.w
		}
	}
	s.mu.Unlock()

	if ok {
		wait.ch <- a
	}
}

// notify ends the watch behind a notification. The node drops a
// signature subscription after its one notification, so nothing is sent
// back.
func (s *Subscriber) notify(p signatureParams) {
	s.mu.Lock()
	w, ok := s.bySubID[p.Subscription]
	delete(s.bySubID, p.Subscription)
	s.mu.Unlock()
	if !ok {
		return
	}

	w.end(&SignatureNotification{
		Signature: w.signature,
		Slot:      p.Result.Context.Slot,
		Err:       p.Result.Value.Err,
	})
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage covers both responses and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signatureParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Err interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
