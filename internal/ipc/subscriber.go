package ipc

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber consumes the publisher's frame stream. It keeps itself
// connected: while the server is away it retries with capped backoff,
// and a dropped connection triggers a fresh dial.
type Subscriber struct {
	socketPath string

	connMu sync.Mutex
	conn   net.Conn

	latestFrame atomic.Value // *FrameMessage

	configMu sync.RWMutex
	config   ConfigMessage
	configCh chan ConfigMessage

	framesReceived atomic.Int64
	reconnects     atomic.Int64
	readErrors     atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	onFrame      func(*FrameMessage)
	onConfig     func(*ConfigMessage)
	onConnect    func()
	onDisconnect func()
}

// NewSubscriber creates a subscriber for the given socket path; an
// empty path means DefaultSocketPath.
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		configCh:   make(chan ConfigMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnFrame registers a handler for every received frame. Handlers run
// on the read goroutine, so a slow handler stalls the stream.
func (s *Subscriber) OnFrame(fn func(*FrameMessage)) {
	s.onFrame = fn
}

// OnConfig registers a handler for geometry announcements.
func (s *Subscriber) OnConfig(fn func(*ConfigMessage)) {
	s.onConfig = fn
}

// OnConnect registers a handler that fires on each successful dial.
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect registers a handler that fires when a connection drops.
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start launches the connection loop. Callbacks registered after
// Start may miss early events.
func (s *Subscriber) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("📡 IPC Subscriber started, connecting to %s", frameSocketAddr(s.socketPath))
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("📡 IPC Subscriber stopped")
}

// GetLatestFrame returns the most recent frame without locking.
func (s *Subscriber) GetLatestFrame() *FrameMessage {
	if val := s.latestFrame.Load(); val != nil {
		return val.(*FrameMessage)
	}
	return nil
}

// GetConfig returns the announced frame geometry
func (s *Subscriber) GetConfig() ConfigMessage {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// WaitForConfig blocks until the server announces its geometry, the
// timeout passes, or the subscriber stops. It returns nil on the
// latter two.
func (s *Subscriber) WaitForConfig(timeout time.Duration) *ConfigMessage {
	select {
	case cfg := <-s.configCh:
		return &cfg
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

// GetStats returns frames received, reconnect count, and read errors.
func (s *Subscriber) GetStats() (received int64, reconnects int64, errs int64) {
	return s.framesReceived.Load(), s.reconnects.Load(), s.readErrors.Load()
}

// IsConnected reports whether a live connection exists right now.
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// connectionLoop dials, reads until the connection dies, and repeats.
// Dial failures back off up to 5s; a successful dial resets the delay.
func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	delay := ReconnectDelay
	failures := 0

	for s.running.Load() {
		conn, err := s.connect()
		if err != nil {
			failures++
			if failures%MaxReconnects == 0 {
				log.Printf("⚠️ Still waiting for server after %d attempts: %v", failures, err)
			}
			select {
			case <-s.stopCh:
				return
			case <-time.After(delay):
			}
			if delay < 5*time.Second {
				delay *= 2
			}
			continue
		}

		delay = ReconnectDelay
		failures = 0

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()

		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}

		s.reconnects.Add(1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) connect() (net.Conn, error) {
	conn, err := dialFrameSocket(s.socketPath)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Connected to server at %s", frameSocketAddr(s.socketPath))
	return conn, nil
}

// readLoop reads messages from the connection. No read deadline is set
// because a frame body can span many reads and a timeout mid-body would
// desync the framing. Stop unblocks the read by closing the connection.
func (s *Subscriber) readLoop(conn net.Conn) {
	for s.running.Load() {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if !s.running.Load() {
				return // Closed by Stop
			}
			if errors.Is(err, io.EOF) {
				log.Println("🔌 Server closed connection")
				return
			}
			log.Printf("⚠️ IPC read error: %v", err)
			s.readErrors.Add(1)
			return
		}

		switch msgType {
		case MsgTypeFrame:
			s.handleFrame(data)

		case MsgTypeConfig:
			s.handleConfig(data)

		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (s *Subscriber) handleFrame(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode frame: %v", err)
		s.readErrors.Add(1)
		return
	}

	s.latestFrame.Store(frame)
	s.framesReceived.Add(1)

	if s.onFrame != nil {
		s.onFrame(frame)
	}
}

func (s *Subscriber) handleConfig(data []byte) {
	config, err := DecodeConfig(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode config: %v", err)
		s.readErrors.Add(1)
		return
	}

	s.configMu.Lock()
	s.config = *config
	s.configMu.Unlock()

	log.Printf("📺 Received stream config: %dx%d @ %d FPS",
		config.Width, config.Height, config.FPS)

	// WaitForConfig takes the channel copy; late configs are dropped
	select {
	case s.configCh <- *config:
	default:
	}

	if s.onConfig != nil {
		s.onConfig(config)
	}
}
