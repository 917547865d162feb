package p2p

import "encoding/gob"

// MessageType represents the type of P2P message.
type MessageType uint8

const (
	MsgHandshake MessageType = 0x01
	MsgBlock     MessageType = 0x02
	MsgTx        MessageType = 0x03
	MsgGetAddr   MessageType = 0x04
	MsgAddr      MessageType = 0x05
	MsgGetBlocks MessageType = 0x06
	MsgBlocks    MessageType = 0x07
)

// Message holds the type and payload of a P2P message.
type Message struct {
	Type    MessageType
	Payload []byte
}

// HandshakeData is the payload for MsgHandshake.
type HandshakeData struct {
	Version     uint32
	NodeID      string
	GenesisHash string
	Height      uint64
}

// AddrData is the payload for MsgAddr.
type AddrData struct {
	Addrs []string // List of peer addresses (e.g. "1.2.3.4:9000")
}

// BlockEnvelope is the outer gob wrapper a block travels in over the
// wire. Block.Bytes()/DecodeBlock deliberately exclude Height from the
// canonical header (§6 treats it as a derived, checked invariant rather
// than identity), so the envelope carries it alongside the canonical
// header and per-transaction bytes, mirroring core/store's wireBlock.
type BlockEnvelope struct {
	Height      uint64
	HeaderBytes []byte
	TxBytes     [][]byte
}

// GetBlocksData is the payload for MsgGetBlocks: request every block the
// peer holds starting at SinceHeight (inclusive).
type GetBlocksData struct {
	SinceHeight uint64
}

// BlocksData is the payload for MsgBlocks: a run of gob-wrapped blocks
// answering a MsgGetBlocks request.
type BlocksData struct {
	Blocks []BlockEnvelope
}

func init() {
	gob.Register(HandshakeData{})
	gob.Register(AddrData{})
	gob.Register(GetBlocksData{})
	gob.Register(BlocksData{})
}
