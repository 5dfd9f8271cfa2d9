package ws

import (
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/sirupsen/logrus"
)

var (
	// Server is the shared Socket.IO server instance
	Server *socketio.Server

	logger = logrus.NewEntry(logrus.StandardLogger())
)

// InitServer initializes the Socket.IO server and starts its serve loop
func InitServer(log *logrus.Entry) error {
	if log != nil {
		logger = log
	}

	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		logger.WithField("client", s.ID()).Debug("Client connected")
		s.Emit("connected", map[string]interface{}{"ok": true})
		return nil
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		logger.WithFields(logrus.Fields{"client": s.ID(), "reason": reason}).Debug("Client disconnected")
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		id := ""
		if s != nil {
			id = s.ID()
		}
		logger.WithField("client", id).WithError(e).Warn("Socket error")
	})

	server.OnEvent("/", "request:events", handleRequestEvents)

	go func() {
		if err := server.Serve(); err != nil {
			logger.WithError(err).Error("Socket.IO server stopped")
		}
	}()

	Server = server
	logger.Info("Socket.IO server initialized")
	return nil
}

// BroadcastToAll sends an event to every connected client
func BroadcastToAll(event string, data interface{}) {
	if Server != nil {
		Server.BroadcastToNamespace("/", event, data)
	}
}
