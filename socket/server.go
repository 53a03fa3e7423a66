package socket

import (
	"log"

	socketio "github.com/googollee/go-socket.io"
)

// Namespace is the only socket.io namespace the server uses
const Namespace = "/"

// NewSocketServer initializes the Socket.IO server. Clients watch a request by id and
// receive its updates in the room of the same name.
func NewSocketServer() *socketio.Server {
	server := socketio.NewServer(nil)

	server.OnConnect(Namespace, func(c socketio.Conn) error {
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	server.OnEvent(Namespace, "watch", func(c socketio.Conn, requestID string) {
		if requestID == "" {
			log.Println("❌ Invalid requestId in watch request")
			return
		}
		c.Join(requestID)
		log.Printf("👀 Socket %s watching %s", c.ID(), requestID)
	})

	server.OnEvent(Namespace, "unwatch", func(c socketio.Conn, requestID string) {
		c.Leave(requestID)
	})

	server.OnError(Namespace, func(c socketio.Conn, err error) {
		log.Println("❌ Socket error:", err)
	})

	server.OnDisconnect(Namespace, func(c socketio.Conn, reason string) {
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return server
}
