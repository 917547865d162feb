package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"novachain/core/codec"
	"novachain/core/crypto"
	"novachain/core/txservice"
)

func main() {
	keygenCmd := flag.NewFlagSet("keygen", flag.ExitOnError)
	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)

	sendSeed := sendCmd.String("seed", "", "32-byte sender seed (hex)")
	sendTo := sendCmd.Uint64("to", 0, "recipient address")
	sendAmount := sendCmd.Int64("amount", 0, "amount to send")
	sendNode := sendCmd.String("node", "127.0.0.1:8080", "node UDP ingest address")

	if len(os.Args) < 2 {
		fmt.Println("Usage: wallet <command> [args]")
		fmt.Println("Commands: keygen, send")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		keygenCmd.Parse(os.Args[2:])
		runKeygen()
	case "send":
		sendCmd.Parse(os.Args[2:])
		runSend(*sendSeed, *sendTo, *sendAmount, *sendNode)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func runKeygen() {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		fmt.Println("Error generating key:", err)
		return
	}

	fmt.Println("New keypair generated")
	fmt.Printf("Address:    %d\n", kp.Address())
	fmt.Printf("Public key: %s\n", kp.PublicKeyHex())
	fmt.Printf("Seed:       %x\n", kp.PrivateKey.Seed())
	fmt.Println("Save the seed; it cannot be recovered.")
}

func runSend(seedHex string, to uint64, amount int64, node string) {
	if seedHex == "" || to == 0 || amount == 0 {
		fmt.Println("Usage: wallet send -seed <HEX> -to <ADDR> -amount <AMT>")
		return
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		fmt.Println("Invalid seed hex:", err)
		return
	}
	kp, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		fmt.Println("Invalid seed:", err)
		return
	}

	tx := &codec.Transaction{
		Type:      codec.AssetTransfer,
		CreatedAt: uint32(time.Now().Unix()),
		Fee:       txservice.TransferFee,
		Asset:     &codec.Transfer{RecipientAddress: to, Amount: amount},
	}
	copy(tx.SenderPublicKey[:], kp.PublicKey)
	digest := tx.Hash()
	tx.Signature = kp.Sign(digest[:])

	if err := sendToNode(tx, node); err != nil {
		fmt.Println("Error sending:", err)
		return
	}
	fmt.Printf("Sent. Tx id: %s\n", tx.IDHex())
}

func sendToNode(tx *codec.Transaction, node string) error {
	conn, err := net.Dial("udp", node)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(tx.Bytes())
	return err
}
