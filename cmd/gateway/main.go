package main

import (
	"flag"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// gateway bridges browser websocket clients to a node's UDP transaction
// ingest port, so a web wallet can submit codec.Transaction bytes without
// speaking raw UDP itself.
func main() {
	nodeAddr := flag.String("node", "127.0.0.1:8080", "node UDP ingest address")
	listenAddr := flag.String("listen", ":3000", "gateway websocket listen address")
	flag.Parse()

	udpAddr, err := net.ResolveUDPAddr("udp", *nodeAddr)
	if err != nil {
		log.Fatal().Err(err).Str("node", *nodeAddr).Msg("resolve node address")
	}
	udpConn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Fatal().Err(err).Str("node", *nodeAddr).Msg("dial node")
	}
	defer udpConn.Close()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		log.Info().Str("remote", r.RemoteAddr).Msg("web client connected")

		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				break
			}

			log.Debug().Int("bytes", len(msg)).Msg("forwarding transaction to node")
			udpConn.Write(msg)

			ws.WriteMessage(websocket.TextMessage, []byte("sent"))
		}
	})

	log.Info().Str("listen", *listenAddr).Str("node", *nodeAddr).Msg("novachain gateway running")
	if err := http.ListenAndServe(*listenAddr, nil); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}
