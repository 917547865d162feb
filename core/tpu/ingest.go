package tpu

import (
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"novachain/core/codec"
	"novachain/core/crypto"
	"novachain/core/network"
)

// Rate limiting constants
const (
	MaxTxPerAddressPerMinute = 10
	RateLimitWindowSeconds   = 60
)

// Worker pool constants
const (
	PacketQueueSize   = 10000 // Buffered channel size
	MinWorkers        = 4     // Minimum workers
	MaxWorkers        = 64    // Maximum workers
	PacketReadTimeout = 100 * time.Millisecond
	RateLimitCleanup  = 5 * time.Minute // Cleanup stale rate limit entries
)

// IngestServer is "Stage 1" of the pipeline: UDP packet capture
// feeding a worker pool that decodes each packet and hands it to Queue.
// Verification (§4.5 signature+dynamic checks) happens later, serialized,
// when Queue.DrainOne runs — ingest workers never touch account state,
// so running many of them concurrently does not violate §5's
// single-writer discipline.
type IngestServer struct {
	addr  *net.UDPAddr
	conn  *net.UDPConn
	queue *Queue

	packetQueue chan []byte
	numWorkers  int
	wg          sync.WaitGroup
	shutdown    chan struct{}
	running     atomic.Bool

	rateLimiter map[uint64]*rateLimitEntry
	rateMu      sync.RWMutex

	packetsReceived  atomic.Uint64
	packetsDropped   atomic.Uint64
	packetsProcessed atomic.Uint64
	packetsInvalid   atomic.Uint64
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// IngestStats contains metrics for monitoring.
type IngestStats struct {
	PacketsReceived  uint64 `json:"packetsReceived"`
	PacketsDropped   uint64 `json:"packetsDropped"`
	PacketsProcessed uint64 `json:"packetsProcessed"`
	PacketsInvalid   uint64 `json:"packetsInvalid"`
	QueueLength      int    `json:"queueLength"`
	QueueCapacity    int    `json:"queueCapacity"`
	NumWorkers       int    `json:"numWorkers"`
}

// NewIngestServer binds a UDP listener on port, feeding decoded
// transactions into queue.
func NewIngestServer(port int, queue *Queue) (*IngestServer, error) {
	addr := &net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	numWorkers := runtime.NumCPU() * 2
	if numWorkers < MinWorkers {
		numWorkers = MinWorkers
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}

	server := &IngestServer{
		addr:        addr,
		conn:        conn,
		queue:       queue,
		packetQueue: make(chan []byte, PacketQueueSize),
		numWorkers:  numWorkers,
		shutdown:    make(chan struct{}),
		rateLimiter: make(map[uint64]*rateLimitEntry),
	}

	return server, nil
}

// Start begins the packet capture loop with its worker pool.
func (s *IngestServer) Start() {
	if s.running.Swap(true) {
		return
	}

	log.Info().Int("port", s.addr.Port).Int("workers", s.numWorkers).Int("queue", PacketQueueSize).Msg("ingest server started")

	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go s.rateLimitCleanupLoop()

	buffer := make([]byte, 65535)

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(PacketReadTimeout))

		n, _, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return
			default:
				log.Warn().Err(err).Msg("ingest read error")
				continue
			}
		}

		s.packetsReceived.Add(1)

		if n > network.MaxTxSize {
			s.packetsDropped.Add(1)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])

		select {
		case s.packetQueue <- packet:
		default:
			s.packetsDropped.Add(1)
		}
	}
}

func (s *IngestServer) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case packet, ok := <-s.packetQueue:
			if !ok {
				return
			}
			s.processPacket(packet)
		}
	}
}

func (s *IngestServer) rateLimitCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(RateLimitCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.cleanupRateLimits()
		}
	}
}

func (s *IngestServer) cleanupRateLimits() {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	now := time.Now()
	for addr, entry := range s.rateLimiter {
		if now.After(entry.resetTime) {
			delete(s.rateLimiter, addr)
		}
	}
}

// processPacket decodes a wire-format transaction and hands it to the
// Queue. Size/decode failures are dropped here; everything else —
// signature, fee, dynamic feasibility — is Queue.DrainOne's job.
func (s *IngestServer) processPacket(data []byte) {
	if err := network.ValidatePayloadSize(data, network.MaxTxSize); err != nil {
		s.packetsInvalid.Add(1)
		return
	}

	tx, err := codec.DecodeTransaction(data)
	if err != nil {
		s.packetsInvalid.Add(1)
		return
	}

	senderAddr := crypto.DeriveAddress(tx.SenderPublicKey[:])
	if !s.checkAndIncrementRateLimit(senderAddr) {
		s.packetsDropped.Add(1)
		return
	}

	s.queue.Push(tx)
	s.packetsProcessed.Add(1)
}

func (s *IngestServer) checkAndIncrementRateLimit(addr uint64) bool {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	now := time.Now()
	entry, exists := s.rateLimiter[addr]

	if !exists || now.After(entry.resetTime) {
		s.rateLimiter[addr] = &rateLimitEntry{
			count:     1,
			resetTime: now.Add(RateLimitWindowSeconds * time.Second),
		}
		return true
	}

	if entry.count >= MaxTxPerAddressPerMinute {
		return false
	}

	entry.count++
	return true
}

// Stop gracefully shuts down the ingest server.
func (s *IngestServer) Stop() {
	if !s.running.Swap(false) {
		return
	}

	log.Info().Msg("ingest server stopping")

	close(s.shutdown)
	s.conn.Close()
	close(s.packetQueue)
	s.wg.Wait()

	log.Info().Msg("ingest server stopped")
}

// GetStats returns current metrics.
func (s *IngestServer) GetStats() IngestStats {
	return IngestStats{
		PacketsReceived:  s.packetsReceived.Load(),
		PacketsDropped:   s.packetsDropped.Load(),
		PacketsProcessed: s.packetsProcessed.Load(),
		PacketsInvalid:   s.packetsInvalid.Load(),
		QueueLength:      len(s.packetQueue),
		QueueCapacity:    cap(s.packetQueue),
		NumWorkers:       s.numWorkers,
	}
}
