// Package relay carries progress reports from worker processes to the
// process that owns the pickup, over a unix socket as newline-delimited JSON.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"mpbar/internal/progress"
)

// AddrEnv passes the relay address to spawned worker processes.
const AddrEnv = "MPBAR_RELAY_ADDR"

// ErrWriteOnly is returned by Sender.Get.
var ErrWriteOnly = errors.New("relay: sender is write-only")

// DefaultDialTimeout bounds how long Dial waits for the server to accept.
const DefaultDialTimeout = 5 * time.Second

// ack is written by the server once a connection is tracked, so that a
// report sent after Dial returns is covered by Shutdown.
const ack = '\n'

// Server accepts worker connections and forwards their reports to a channel.
type Server struct {
	ln  net.Listener
	log logr.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log logr.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// Listen creates a uniquely named socket in dir.
func Listen(dir string, opts ...Option) (*Server, error) {
	name := fmt.Sprintf("relay-%d-%s.sock", os.Getpid(), uuid.NewString()[:8])
	ln, err := net.Listen("unix", filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("relay listen: %w", err)
	}
	s := &Server{
		ln:    ln,
		log:   logr.Discard(),
		conns: map[net.Conn]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the socket path to hand to workers.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve accepts connections until the server is closed or ctx is done.
// Every decoded report is put on ch. It returns nil when stopped by Close,
// Shutdown or ctx.
func (s *Server) Serve(ctx context.Context, ch progress.Channel) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("relay accept: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.handle(conn, ch)
	}
}

func (s *Server) handle(conn net.Conn, ch progress.Channel) {
	defer s.wg.Done()
	defer s.untrack(conn)

	if _, err := conn.Write([]byte{ack}); err != nil {
		s.log.Error(err, "failed to acknowledge worker")
		return
	}
	dec := json.NewDecoder(conn)
	n := 0
	for {
		var r progress.Report
		if err := dec.Decode(&r); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.log.V(2).Info("worker disconnected", "reports", n)
			case errors.Is(err, net.ErrClosed):
				s.log.V(2).Info("connection closed by server", "reports", n)
			default:
				s.log.Error(err, "failed to decode report")
			}
			return
		}
		if err := ch.Put(r); err != nil {
			s.log.Error(err, "failed to forward report", "task", r.TaskID)
			return
		}
		n++
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Shutdown stops accepting connections and waits for connected workers to
// disconnect, so that every report they sent reaches the channel. When ctx
// ends first the remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return err
	case <-ctx.Done():
		_ = s.Close()
		<-idle
		return ctx.Err()
	}
}

// Close stops the server and drops any open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Sender is the write end of a relay. It implements progress.Channel so a
// worker process can build its reporter on it.
type Sender struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
}

var _ progress.Channel = (*Sender)(nil)

// DialOption configures Dial.
type DialOption func(*dialer)

type dialer struct {
	timeout time.Duration
}

// WithDialTimeout overrides DefaultDialTimeout.
func WithDialTimeout(timeout time.Duration) DialOption {
	return func(d *dialer) {
		d.timeout = timeout
	}
}

// Dial connects to the relay at addr and waits until the server has
// accepted the connection.
func Dial(addr string, opts ...DialOption) (*Sender, error) {
	d := dialer{timeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(&d)
	}

	conn, err := net.DialTimeout("unix", addr, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("relay dial: %w", err)
	}
	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(d.timeout))
	if _, err := io.ReadFull(conn, buf); err != nil || buf[0] != ack {
		_ = conn.Close()
		if err == nil {
			err = errors.New("unexpected handshake")
		}
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return &Sender{conn: conn, enc: json.NewEncoder(conn)}, nil
}

// Put writes r to the relay. The pickup end order is never forwarded.
func (s *Sender) Put(r progress.Report) error {
	if r.IsSentinel() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(r)
}

// Get always fails: reports are only read on the server side.
func (s *Sender) Get(context.Context) (progress.Report, error) {
	return progress.Report{}, ErrWriteOnly
}

// Close closes the connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}
