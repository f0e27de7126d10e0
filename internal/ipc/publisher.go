package ipc

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher fans rendered frames out to connected recorder processes
// via Unix socket. It satisfies the render frame sink contract, so it
// attaches straight to the streamer's frame writer.
type Publisher struct {
	socketPath string
	listener   net.Listener

	clientsMu sync.RWMutex
	clients   map[net.Conn]struct{}

	// frameCh behaves as a small ring: full means drop the oldest
	frameCh chan *FrameMessage

	configMu sync.RWMutex
	config   ConfigMessage

	clientCount   atomic.Int32
	framesSent    atomic.Int64
	droppedFrames atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher builds a publisher for the given socket path, falling
// back to DefaultSocketPath when empty.
func NewPublisher(socketPath string) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		frameCh:    make(chan *FrameMessage, 8),
		stopCh:     make(chan struct{}),
	}
}

// SetConfig sets the frame geometry announced to new clients
func (p *Publisher) SetConfig(width, height, fps int) {
	p.configMu.Lock()
	p.config = ConfigMessage{
		Width:  width,
		Height: height,
		FPS:    fps,
	}
	p.configMu.Unlock()
}

// Start opens the socket and launches the accept and broadcast loops.
func (p *Publisher) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	listener, err := listenFrameSocket(p.socketPath)
	if err != nil {
		p.running.Store(false)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Printf("📡 IPC Publisher started on %s", frameSocketAddr(p.socketPath))
	return nil
}

// Stop closes the listener and every client connection, then removes
// the socket file.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.stopCh)

	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()
	p.clientCount.Store(0)

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("📡 IPC Publisher stopped")
}

// WriteFrame queues a copy of the frame for broadcast. It never blocks
// the render loop - when the buffer is full the oldest frame is dropped.
func (p *Publisher) WriteFrame(pix []byte, seq uint64) error {
	if !p.running.Load() {
		return nil
	}
	if p.clientCount.Load() == 0 {
		return nil // No copy when nobody listens
	}

	p.configMu.RLock()
	width, height := p.config.Width, p.config.Height
	p.configMu.RUnlock()

	// The frame writer recycles its buffers after this call returns, so
	// the pixels must be copied before the async handoff
	msg := getFrame()
	if cap(msg.Pixels) < len(pix) {
		msg.Pixels = make([]byte, len(pix))
	}
	msg.Pixels = msg.Pixels[:len(pix)]
	copy(msg.Pixels, pix)
	msg.Sequence = seq
	msg.Timestamp = time.Now().UnixNano()
	msg.Width = width
	msg.Height = height

	select {
	case p.frameCh <- msg:
	default:
		// Full: drop the oldest to make room for the new frame
		select {
		case old := <-p.frameCh:
			putFrame(old)
			p.droppedFrames.Add(1)
		default:
		}
		select {
		case p.frameCh <- msg:
		default:
			putFrame(msg)
		}
	}
	return nil
}

// Close satisfies the frame sink contract. Detaching the sink does not
// tear down the socket, the publisher's owner stops it explicitly.
func (p *Publisher) Close() error {
	return nil
}

// GetStats returns connected clients, frames sent, and frames dropped.
func (p *Publisher) GetStats() (clients int, sent int64, dropped int64) {
	return int(p.clientCount.Load()), p.framesSent.Load(), p.droppedFrames.Load()
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for p.running.Load() {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return // Listener closed by Stop
			}
			log.Printf("⚠️ IPC accept error: %v", err)
			continue
		}

		p.addClient(conn)
	}
}

// addClient hands the config to a new connection, then registers it.
// The config goes out before the client joins the broadcast set, so
// the first message a subscriber sees is always the geometry.
func (p *Publisher) addClient(conn net.Conn) {
	p.configMu.RLock()
	config := p.config
	p.configMu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeConfig, config); err != nil {
		log.Printf("⚠️ Failed to send config to recorder: %v", err)
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Time{})

	p.clientsMu.Lock()
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	log.Printf("✅ Recorder connected: %s (total: %d)", conn.RemoteAddr(), count)

	p.wg.Add(1)
	go p.drainClient(conn)
}

// drainClient discards inbound messages (pong replies) and drops the
// client as soon as its connection dies
func (p *Publisher) drainClient(conn net.Conn) {
	defer p.wg.Done()

	for {
		if _, _, err := ReadMessage(conn); err != nil {
			if p.running.Load() {
				p.removeClient(conn)
			}
			return
		}
	}
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := p.clientCount.Add(-1)
		log.Printf("🔌 Recorder disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

// broadcastLoop broadcasts frames to all clients, pinging them when
// the stream goes idle. It is the only goroutine writing to registered
// connections, which keeps framed messages from interleaving.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	pingTicker := time.NewTicker(PingInterval)
	defer pingTicker.Stop()

	lastSend := time.Now()

	for {
		select {
		case <-p.stopCh:
			return

		case msg := <-p.frameCh:
			p.broadcast(MsgTypeFrame, msg)
			putFrame(msg)
			lastSend = time.Now()

		case <-pingTicker.C:
			if time.Since(lastSend) >= PingInterval {
				p.broadcast(MsgTypePing, nil)
			}
		}
	}
}

// broadcast sends one message to every client. A write that misses the
// deadline marks its client failed; failed clients are dropped after
// the pass so the healthy ones are not stalled.
func (p *Publisher) broadcast(msgType byte, data interface{}) {
	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, msgType, data); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		p.removeClient(conn)
	}

	if msgType == MsgTypeFrame && len(clients) > 0 && len(failed) < len(clients) {
		p.framesSent.Add(1)
	}
}

// Frame pool recycling message structs and their pixel buffers between
// WriteFrame and broadcast
var framePool = sync.Pool{
	New: func() interface{} {
		return new(FrameMessage)
	},
}

func getFrame() *FrameMessage {
	return framePool.Get().(*FrameMessage)
}

func putFrame(msg *FrameMessage) {
	msg.Pixels = msg.Pixels[:0]
	framePool.Put(msg)
}
