package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"novachain/core/chain"
	"novachain/core/config"
	"novachain/core/crypto"
	"novachain/core/execution"
	"novachain/core/p2p"
	"novachain/core/pulse"
	"novachain/core/staking"
	"novachain/core/store"
	"novachain/core/tpu"
	"novachain/core/txservice"
)

// genesisSeeds is the fixed set of well-known seeds credited at startup —
// the dev-mode bootstrap every node in a test network shares, mirroring
// the teacher's hardcoded "Big Bang" validator set in its old main.go.
var genesisSeeds = [][]byte{
	[]byte("novachain-genesis-seed-key-0001a"),
	[]byte("novachain-genesis-seed-key-0002b"),
	[]byte("novachain-genesis-seed-key-0003c"),
}

const (
	genesisBalance = 3_333_333_333 * 1_000_000
	genesisStake   = 1_666_666_666 * 1_000_000
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "", "path to config file")
	udpPort := flag.Int("udp", 8080, "UDP ingest port for transactions")
	forge := flag.Bool("forge", false, "enable block forging for the node identity")
	identitySeedHex := flag.String("seed", "", "hex-encoded 32-byte node identity seed")
	peersFlag := flag.String("peers", "", "comma-separated list of peers to connect to")
	genKey := flag.Bool("genkey", false, "generate a new keypair and exit")

	flag.Parse()

	if *genKey {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatal().Err(err).Msg("generate keypair")
		}
		fmt.Printf("Address: %d\n", kp.Address())
		fmt.Printf("Seed:    %x\n", kp.PrivateKey.Seed())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := store.Init(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	clock := pulse.NewClock(cfg.EpochStart)
	if cfg.SlotInterval > 0 {
		clock.SlotInterval = cfg.SlotInterval
	}

	chainStore := store.NewChainStore(cfg.ActiveDelegates + 2)

	state := execution.NewState()
	applyGenesisAllocations(state)

	pool := tpu.NewPool(state)
	queue := tpu.NewQueue(state, txservice.NewDispatcher(), pool)
	roster := staking.NewRoster(cfg.ActiveDelegates)
	slasher := staking.NewSlasher(nil)

	c := chain.New(cfg, clock, chainStore, state, pool, queue, roster, slasher)

	identitySeed := genesisSeeds[0]
	if *identitySeedHex != "" {
		decoded, err := hex.DecodeString(*identitySeedHex)
		if err != nil || len(decoded) != 32 {
			log.Fatal().Msg("seed must be 32 bytes of hex")
		}
		identitySeed = decoded
	}
	identity, err := crypto.KeyPairFromSeed(identitySeed)
	if err != nil {
		log.Fatal().Err(err).Msg("derive node identity")
	}

	p2pServer := p2p.NewServer(cfg.P2PListenAddr, 100, identity.PublicKeyHex(), c)
	go func() {
		if err := p2pServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("start p2p server")
		}
	}()

	ingest, err := tpu.NewIngestServer(*udpPort, queue)
	if err != nil {
		log.Fatal().Err(err).Msg("start ingest server")
	}
	go ingest.Start()

	go startExplorerAPI(cfg.ExplorerListenAddr, c, state)

	if *peersFlag != "" {
		for _, addr := range splitAndTrim(*peersFlag) {
			if err := p2pServer.Connect(addr); err != nil {
				log.Warn().Err(err).Str("peer", addr).Msg("failed to connect")
			}
		}
	}

	if *forge {
		go forgingLoop(c, clock, identity)
	}

	log.Info().Uint64("address", identity.Address()).Str("p2p", cfg.P2PListenAddr).Msg("node running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	ingest.Stop()
}

// forgingLoop drives §4.9's generateBlock at every slot boundary this
// identity is the elected delegate for, mirroring the teacher's 3-second
// miner ticker but gated on roster membership rather than ticking blind.
func forgingLoop(c *chain.Chain, clock *pulse.Clock, identity *crypto.KeyPair) {
	addr := identity.Address()
	lastSlot := int64(-1)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		slot := clock.CurrentSlot()
		if slot == lastSlot {
			continue
		}
		if c.Roster.GeneratorForSlot(slot) != addr {
			continue
		}
		lastSlot = slot

		block, err := c.GenerateBlock(identity, clock.SlotTime(slot))
		if err != nil {
			log.Warn().Err(err).Int64("slot", slot).Msg("block generation failed")
			continue
		}
		log.Info().Uint64("height", block.Height).Int64("slot", slot).Int("txs", len(block.Transactions)).Msg("forged block")
	}
}

func applyGenesisAllocations(state *execution.State) {
	state.Begin("genesis")
	for _, seed := range genesisSeeds {
		kp, err := crypto.KeyPairFromSeed(padSeed(seed))
		if err != nil {
			log.Fatal().Err(err).Msg("derive genesis keypair")
		}
		var pk [32]byte
		copy(pk[:], kp.PublicKey)
		addr := kp.Address()
		if err := state.Credit("genesis", addr, pk, genesisBalance); err != nil {
			log.Fatal().Err(err).Msg("credit genesis balance")
		}
		if err := state.Stake("genesis", addr, genesisStake, 0); err != nil {
			log.Fatal().Err(err).Msg("stake genesis amount")
		}
	}
	state.Commit("genesis")
}

func padSeed(seed []byte) []byte {
	out := make([]byte, 32)
	copy(out, seed)
	return out
}

func splitAndTrim(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := s[start:i]
			for len(part) > 0 && part[0] == ' ' {
				part = part[1:]
			}
			for len(part) > 0 && part[len(part)-1] == ' ' {
				part = part[:len(part)-1]
			}
			if part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
