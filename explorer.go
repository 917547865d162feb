package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"novachain/core/chain"
	"novachain/core/codec"
	"novachain/core/crypto"
	"novachain/core/execution"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// JSONBlock is a frontend-friendly representation of a codec.Block.
type JSONBlock struct {
	ID              string `json:"id"`
	Height          uint64 `json:"height"`
	CreatedAt       uint32 `json:"createdAt"`
	Generator       string `json:"generator"`
	PreviousBlockID string `json:"previousBlockId"`
	TxCount         int    `json:"txCount"`
	Amount          int64  `json:"amount"`
	Fee             int64  `json:"fee"`
}

// Stats is the summary payload for /api/stats.
type Stats struct {
	Height     uint64 `json:"height"`
	TxPoolSize int    `json:"txPoolSize"`
	Validators int    `json:"validators"`
	MerkleRoot string `json:"poolMerkleRoot"`
}

// AccountResp is the response payload for /api/account.
type AccountResp struct {
	Address         uint64 `json:"address"`
	ActualBalance   int64  `json:"actualBalance"`
	SpendableBalance int64 `json:"spendableBalance"`
	StakedAmount    int64  `json:"stakedAmount"`
}

// startExplorerAPI serves a read-only status/explorer API over the
// running chain: recent blocks, pool/roster stats, and account lookups,
// plus a websocket feed of newly applied blocks. Grounded on the
// teacher's explorer.go (DAG-backed REST+websocket dashboard), rebuilt
// against the linear Chain Store instead of the vertex DAG.
func startExplorerAPI(listenAddr string, c *chain.Chain, state *execution.State) {
	clients := make(map[*websocket.Conn]bool)
	broadcast := make(chan *JSONBlock, 64)

	c.OnBlockApplied = func(block *codec.Block) {
		jb := toJSONBlock(block)
		select {
		case broadcast <- &jb:
		default:
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("novachain explorer API\nEndpoints: /api/stats, /api/blocks, /api/account?addr=<decimal>, /ws"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		clients[ws] = true
	})

	mux.HandleFunc("/api/blocks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")

		blocks := c.Store.BlocksSince(0)
		response := make([]JSONBlock, 0, len(blocks))
		for _, b := range blocks {
			response = append(response, toJSONBlock(b))
		}
		json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")

		height := uint64(0)
		if last := c.Store.LastBlock(); last != nil {
			height = last.Height
		}

		var hashes [][]byte
		for _, entry := range c.Pool.PopSortedUnconfirmed(0) {
			h := entry.Tx.Hash()
			hashes = append(hashes, h[:])
		}

		stats := Stats{
			Height:     height,
			TxPoolSize: c.Pool.Len(),
			Validators: c.Roster.Size(),
			MerkleRoot: hex.EncodeToString(crypto.MerkleRoot(hashes)),
		}
		json.NewEncoder(w).Encode(stats)
	})

	mux.HandleFunc("/api/account", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")

		addrStr := r.URL.Query().Get("addr")
		if addrStr == "" {
			http.Error(w, "addr required", http.StatusBadRequest)
			return
		}
		addr, err := parseAddress(addrStr)
		if err != nil {
			http.Error(w, "invalid address", http.StatusBadRequest)
			return
		}

		account := state.Get(addr)
		if account == nil {
			json.NewEncoder(w).Encode(AccountResp{Address: addr})
			return
		}
		json.NewEncoder(w).Encode(AccountResp{
			Address:          addr,
			ActualBalance:    account.ActualBalance,
			SpendableBalance: account.SpendableBalance(),
			StakedAmount:     account.TotalStakedAmount,
		})
	})

	go func() {
		for jb := range broadcast {
			for client := range clients {
				if err := client.WriteJSON(jb); err != nil {
					client.Close()
					delete(clients, client)
				}
			}
		}
	}()

	log.Info().Str("addr", listenAddr).Msg("explorer API listening")
	if err := http.ListenAndServe(listenAddr, mux); err != nil {
		log.Error().Err(err).Msg("explorer API stopped")
	}
}

func parseAddress(s string) (uint64, error) {
	var addr uint64
	_, err := fmt.Sscan(s, &addr)
	return addr, err
}

func toJSONBlock(b *codec.Block) JSONBlock {
	return JSONBlock{
		ID:              b.IDHex(),
		Height:          b.Height,
		CreatedAt:       b.CreatedAt,
		Generator:       hex.EncodeToString(b.GeneratorPublicKey[:]),
		PreviousBlockID: b.PreviousBlockIDHex(),
		TxCount:         len(b.Transactions),
		Amount:          b.Amount,
		Fee:             b.Fee,
	}
}
