package p2p

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"novachain/core/cache"
	"novachain/core/chain"
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/network"
)

// seenBlockCacheSize bounds the recently-seen-block-id dedup cache below,
// well past the reorg window's depth so a block gossiped in quick
// succession by several peers is recognized without a second trip through
// Chain.ReceiveBlock.
const seenBlockCacheSize = 4096

const (
	ProtocolVersion = 1
)

// ComputeGenesisHash computes a deterministic genesis hash from network parameters
func ComputeGenesisHash() string {
	// Create a deterministic genesis hash from chain parameters
	data := []byte("novachain-mainnet-v1-genesis-2026")
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes
}

// GenesisHash is computed at init time
var GenesisHash = ComputeGenesisHash()

// Server manages all P2P connections and protocol logic.
type Server struct {
	Transport  *Transport
	Peers      map[string]*Peer
	KnownPeers map[string]bool // Set of known peer addresses
	NodeID     string          // Unique ID of this node (Public Key Hex)

	Chain *chain.Chain // Block pipeline: ReceiveBlock, Queue.Push, Store.LastBlock

	// Security / DDoS Protection
	ConnCount  map[string]int     // Count of connections per IP
	MaxPeers   int                // Total max peers
	MaxPerIP   int                // Max peers per IP
	Reputation *ReputationManager // Peer reputation tracking

	// seenBlocks dedups gossiped block ids so a block relayed by several
	// peers nearly simultaneously only runs through Chain.ReceiveBlock once.
	seenBlocks *cache.LRU[string, struct{}]

	PeersMutex sync.RWMutex
	Quit       chan struct{}
}

// NewServer creates a new P2P server instance, wired to c for block
// ingestion and transaction forwarding.
func NewServer(addr string, maxPeers int, nodeID string, c *chain.Chain) *Server {
	s := &Server{
		Transport:  NewTransport(addr),
		Peers:      make(map[string]*Peer),
		KnownPeers: make(map[string]bool),
		NodeID:     nodeID,
		ConnCount:  make(map[string]int),
		MaxPeers:   maxPeers,
		MaxPerIP:   5, // Strict per-IP Limit (Hardcoded for now)
		Reputation: NewReputationManager(),
		seenBlocks: cache.NewLRU[string, struct{}](seenBlockCacheSize),
		Chain:      c,
		Quit:       make(chan struct{}),
	}
	c.Broadcaster = s
	return s
}

// Start initializes the transport and starts the accept loop.
func (s *Server) Start() error {
	if err := s.Transport.Listen(); err != nil {
		return err
	}
	log.Info().Str("addr", s.Transport.ListenAddr).Msg("p2p server listening")

	go s.acceptLoop()

	return nil
}

// acceptLoop handles incoming connections.
func (s *Server) acceptLoop() {
	for {
		select {
		case <-s.Quit:
			return
		default:
			conn, err := s.Transport.Accept()
			if err != nil {
				log.Warn().Err(err).Msg("p2p accept error")
				continue
			}

			// DDoS Check 1: Max Total Peers
			s.PeersMutex.RLock()
			total := len(s.Peers)
			s.PeersMutex.RUnlock()
			if total >= s.MaxPeers {
				log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("dropped conn: max peers reached")
				conn.Close()
				continue
			}

			// DDoS Check 2: Max Per IP
			ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

			// Reputation Check: Is this IP banned?
			if s.Reputation.IsAddressBanned(ip) {
				log.Warn().Str("ip", ip).Msg("dropped conn: banned ip")
				conn.Close()
				continue
			}

			s.PeersMutex.Lock()
			count := s.ConnCount[ip]
			if count >= s.MaxPerIP {
				s.PeersMutex.Unlock()
				log.Warn().Str("ip", ip).Msg("dropped conn: per-ip rate limit exceeded")
				conn.Close()
				continue
			}
			s.ConnCount[ip]++
			s.PeersMutex.Unlock()

			go s.handleConn(conn, false)
		}
	}
}

// Connect dial a remote peer and adds it to the network.
func (s *Server) Connect(addr string) error {
	conn, err := s.Transport.Dial(addr)
	if err != nil {
		return err
	}
	go s.handleConn(conn, true)
	return nil
}

// handleConn shakes hands and registers the peer.
func (s *Server) handleConn(conn net.Conn, outbound bool) {
	peer := NewPeer(conn, outbound)

	height := uint64(0)
	if last := s.Chain.Store.LastBlock(); last != nil {
		height = last.Height
	}

	// 1. Send Handshake
	hsData := HandshakeData{
		Version:     ProtocolVersion,
		NodeID:      s.NodeID,
		GenesisHash: GenesisHash,
		Height:      height,
	}

	payload, err := encodeHandshake(hsData)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode handshake")
		conn.Close()
		return
	}

	if err := peer.Send(Message{Type: MsgHandshake, Payload: payload}); err != nil {
		log.Warn().Err(err).Msg("failed to send handshake")
		conn.Close()
		return
	}

	// 2. Wait for Handshake Reply
	msg, err := peer.Read()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read handshake")
		conn.Close()
		return
	}

	if msg.Type != MsgHandshake {
		log.Warn().Uint8("type", uint8(msg.Type)).Msg("expected handshake")
		conn.Close()
		return
	}

	var remoteHS HandshakeData
	if err := decodeHandshake(msg.Payload, &remoteHS); err != nil {
		log.Warn().Err(err).Msg("invalid handshake payload")
		conn.Close()
		return
	}

	if remoteHS.GenesisHash != GenesisHash {
		log.Warn().Str("genesis", remoteHS.GenesisHash).Msg("incompatible genesis")
		conn.Close()
		return
	}

	log.Info().Str("remote", conn.RemoteAddr().String()).Uint32("version", remoteHS.Version).Msg("handshake success")

	peer.NodeID = remoteHS.NodeID

	// Check if this peer is banned by NodeID
	if s.Reputation.IsBanned(peer.NodeID) {
		log.Warn().Str("nodeId", peer.NodeID).Msg("rejected banned peer")
		conn.Close()
		return
	}

	// Register peer with reputation system
	ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	s.Reputation.GetOrCreate(peer.NodeID, ip)

	s.AddPeer(peer)

	// Start read loop
	go s.readLoop(peer)

	// Discovery: Ask for more peers
	s.SendGetAddr(peer)

	// Sync: ask the peer for anything past our own head
	s.SendGetBlocks(peer)
}

func (s *Server) readLoop(p *Peer) {
	defer func() {
		s.Reputation.RecordDisconnect(p.NodeID)
		s.RemovePeer(p.Conn.RemoteAddr().String())
	}()
	for {
		msg, err := p.Read()
		if err != nil {
			log.Debug().Err(err).Msg("peer disconnected")
			return
		}
		s.handleMessage(p, msg)
	}
}

// GetReputationStats returns peer reputation statistics
func (s *Server) GetReputationStats() ReputationStats {
	return s.Reputation.Stats()
}

// GetPeerReputations returns all peer reputations
func (s *Server) GetPeerReputations() []*PeerReputation {
	return s.Reputation.GetAllReputations()
}

func (s *Server) handleMessage(p *Peer, msg Message) {
	// Validate payload size first
	if err := network.ValidatePayloadSize(msg.Payload, network.MaxMessageSize); err != nil {
		log.Warn().Str("remote", p.Conn.RemoteAddr().String()).Int("bytes", len(msg.Payload)).Msg("message too large")
		s.Reputation.RecordProtocolError(p.NodeID)
		return
	}

	switch msg.Type {
	case MsgTx:
		s.handleTx(p, msg.Payload)
	case MsgBlock:
		s.handleBlock(p, msg.Payload)
	case MsgGetAddr:
		s.handleGetAddr(p)
	case MsgAddr:
		s.handleAddr(p, msg.Payload)
	case MsgGetBlocks:
		s.handleGetBlocks(p, msg.Payload)
	case MsgBlocks:
		s.handleBlocks(p, msg.Payload)
	default:
		log.Warn().Uint8("type", uint8(msg.Type)).Msg("unknown message type")
	}
}

// handleTx decodes a peer-relayed transaction and hands it to the Queue.
// Signature and dynamic feasibility checks happen later, serialized,
// inside Queue.DrainOne — this handler never touches account state, so
// it imposes no additional synchronization on the read loop.
func (s *Server) handleTx(p *Peer, payload []byte) {
	if err := network.ValidatePayloadSize(payload, network.MaxTxSize); err != nil {
		log.Warn().Str("remote", p.Conn.RemoteAddr().String()).Msg("tx too large")
		s.Reputation.RecordInvalidTxKind(p.NodeID, errs.Malformed)
		return
	}

	tx, err := codec.DecodeTransaction(payload)
	if err != nil {
		kind := errs.KindOf(err)
		log.Warn().Err(err).Str("remote", p.Conn.RemoteAddr().String()).Str("kind", kind.String()).Msg("invalid tx")
		s.Reputation.RecordInvalidTxKind(p.NodeID, kind)
		return
	}

	s.Chain.Queue.Push(tx)
	s.Reputation.RecordValidTx(p.NodeID)
}

// decodeBlockEnvelope reassembles a codec.Block from its gob outer
// envelope: per-transaction canonical bytes, decoded individually, then
// the header bytes, with Height restored afterward since DecodeBlock
// never sets it (§6 excludes it from the canonical encoding entirely).
func decodeBlockEnvelope(payload []byte) (*codec.Block, error) {
	var env BlockEnvelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return nil, errs.Newf(errs.Malformed, "decode block envelope: %v", err)
	}
	txs := make([]*codec.Transaction, 0, len(env.TxBytes))
	for _, raw := range env.TxBytes {
		tx, err := codec.DecodeTransaction(raw)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	block, err := codec.DecodeBlock(env.HeaderBytes, txs)
	if err != nil {
		return nil, err
	}
	block.Height = env.Height
	return block, nil
}

func encodeBlockEnvelope(block *codec.Block) (BlockEnvelope, error) {
	env := BlockEnvelope{Height: block.Height, HeaderBytes: block.Bytes()}
	for _, tx := range block.Transactions {
		env.TxBytes = append(env.TxBytes, tx.Bytes())
	}
	return env, nil
}

// handleBlock processes an incoming block: decode, hand to the chain's
// receive path, and react to the outcome. A SignatureInvalid verdict
// bans the peer outright rather than just decaying its score — a peer
// that forwards a block with a forged generator signature is not merely
// unlucky, it is either malicious or relaying from something that is.
func (s *Server) handleBlock(p *Peer, payload []byte) {
	if err := network.ValidatePayloadSize(payload, network.MaxBlockSize); err != nil {
		log.Warn().Str("remote", p.Conn.RemoteAddr().String()).Int("bytes", len(payload)).Msg("block too large")
		s.Reputation.RecordProtocolError(p.NodeID)
		return
	}

	block, err := decodeBlockEnvelope(payload)
	if err != nil {
		log.Warn().Err(err).Str("remote", p.Conn.RemoteAddr().String()).Msg("failed to decode block")
		s.Reputation.RecordProtocolError(p.NodeID)
		return
	}

	id := block.IDHex()
	if _, seen := s.seenBlocks.Get(id); seen {
		return
	}
	s.seenBlocks.Set(id, struct{}{})

	if err := s.Chain.ReceiveBlock(block); err != nil {
		kind := errs.KindOf(err)
		if kind == errs.SignatureInvalid {
			log.Warn().Str("nodeId", p.NodeID).Uint64("height", block.Height).Msg("banning peer: invalid block signature")
			s.Reputation.BanPeer(p.NodeID, BanDuration)
			s.Reputation.RecordInvalidBlockKind(p.NodeID, kind)
			return
		}
		log.Warn().Err(err).Str("remote", p.Conn.RemoteAddr().String()).Uint64("height", block.Height).Str("kind", kind.String()).Msg("block rejected")
		s.Reputation.RecordInvalidBlockKind(p.NodeID, kind)
		return
	}

	s.Reputation.RecordValidBlock(p.NodeID)
}

// BroadcastBlock implements chain.Broadcaster: it is what Chain.ApplyBlock
// calls after a block is durably applied. Satisfies every connected peer,
// including whichever one this block may itself have arrived from — the
// interface carries no peer identity to exclude, and a peer re-receiving
// its own gossip is a cheap no-op (ReceiveBlock classifies it Same).
func (s *Server) BroadcastBlock(block *codec.Block) {
	env, err := encodeBlockEnvelope(block)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode block for broadcast")
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		log.Error().Err(err).Msg("failed to encode block envelope for broadcast")
		return
	}
	s.Broadcast(Message{Type: MsgBlock, Payload: buf.Bytes()})
}

// Broadcast sends a message to all connected peers.
func (s *Server) Broadcast(msg Message) {
	s.PeersMutex.RLock()
	defer s.PeersMutex.RUnlock()
	for _, peer := range s.Peers {
		go func(p *Peer) {
			if err := p.Send(msg); err != nil {
				log.Warn().Err(err).Str("remote", p.Conn.RemoteAddr().String()).Msg("failed to broadcast")
			}
		}(peer)
	}
}

// Helpers
func encodeHandshake(data HandshakeData) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHandshake(data []byte, out *HandshakeData) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}

// SendGetAddr requests peers from a neighbor.
func (s *Server) SendGetAddr(p *Peer) {
	p.Send(Message{Type: MsgGetAddr})
}

// handleGetAddr responds with a list of known peers.
func (s *Server) handleGetAddr(p *Peer) {
	s.PeersMutex.RLock()
	var addrs []string
	for addr := range s.KnownPeers {
		addrs = append(addrs, addr)
		if len(addrs) >= 10 { // Limit response size
			break
		}
	}
	s.PeersMutex.RUnlock()

	data := AddrData{Addrs: addrs}
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(data)
	p.Send(Message{Type: MsgAddr, Payload: buf.Bytes()})
}

// handleAddr processes received peer addresses.
func (s *Server) handleAddr(p *Peer, payload []byte) {
	var data AddrData
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&data); err != nil {
		return
	}

	s.PeersMutex.Lock()
	newPeers := 0
	for _, addr := range data.Addrs {
		if !s.KnownPeers[addr] {
			s.KnownPeers[addr] = true
			newPeers++
			// Active Discovery: Connect to them!
			go s.Connect(addr)
		}
	}
	s.PeersMutex.Unlock()

	if newPeers > 0 {
		log.Info().Int("count", newPeers).Str("remote", p.Conn.RemoteAddr().String()).Msg("discovered new peers")
	}
}

// SendGetBlocks asks a peer for every block it holds past our own head.
func (s *Server) SendGetBlocks(p *Peer) {
	since := uint64(1)
	if last := s.Chain.Store.LastBlock(); last != nil {
		since = last.Height + 1
	}
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(GetBlocksData{SinceHeight: since})
	p.Send(Message{Type: MsgGetBlocks, Payload: buf.Bytes()})
}

// handleGetBlocks responds with every in-memory block at or past the
// requested height. A peer far enough behind that the blocks it needs
// have fallen out of the ring receives nothing — it needs a durable-store
// replay, which is out of scope for live gossip sync.
func (s *Server) handleGetBlocks(p *Peer, payload []byte) {
	var req GetBlocksData
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&req); err != nil {
		return
	}

	blocks := s.Chain.Store.BlocksSince(req.SinceHeight)
	var envs []BlockEnvelope
	for _, b := range blocks {
		env, err := encodeBlockEnvelope(b)
		if err != nil {
			continue
		}
		envs = append(envs, env)
	}

	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(BlocksData{Blocks: envs})
	p.Send(Message{Type: MsgBlocks, Payload: buf.Bytes()})
}

// handleBlocks applies a run of blocks answering our own MsgGetBlocks
// request, in order, through the same receive path single blocks use.
func (s *Server) handleBlocks(p *Peer, payload []byte) {
	var data BlocksData
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&data); err != nil {
		return
	}

	count := 0
	for _, env := range data.Blocks {
		var buf bytes.Buffer
		gob.NewEncoder(&buf).Encode(env)
		s.handleBlock(p, buf.Bytes())
		count++
	}

	if count > 0 {
		log.Info().Int("count", count).Str("remote", p.Conn.RemoteAddr().String()).Msg("synced blocks")
	}
}

// GetPeer safely retrieves a peer by address.
func (s *Server) GetPeer(addr string) *Peer {
	s.PeersMutex.RLock()
	defer s.PeersMutex.RUnlock()
	return s.Peers[addr]
}

// AddPeer safely adds a peer to the map.
func (s *Server) AddPeer(p *Peer) {
	s.PeersMutex.Lock()
	defer s.PeersMutex.Unlock()
	addr := p.Conn.RemoteAddr().String()
	s.Peers[addr] = p
	s.KnownPeers[addr] = true // Add to known list
}

// RemovePeer safely removes a peer.
func (s *Server) RemovePeer(addr string) {
	s.PeersMutex.Lock()
	defer s.PeersMutex.Unlock()
	if peer, ok := s.Peers[addr]; ok {
		peer.Close()
		delete(s.Peers, addr)

		// Decrement IP count
		ip, _, _ := net.SplitHostPort(addr)
		if s.ConnCount[ip] > 0 {
			s.ConnCount[ip]--
		}
	}
}
