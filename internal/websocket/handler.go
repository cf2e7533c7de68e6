package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeStream attaches the connection to the hub under sessionKey and blocks
// until the peer disconnects.
func ServeStream(hub *Hub, c *websocket.Conn, sessionKey string, onPrompt func(prompt string)) {
	client := &Client{
		Hub:        hub,
		Conn:       c,
		SessionKey: sessionKey,
		Send:       make(chan []byte, 256),
		OnPrompt:   onPrompt,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}

// Attach registers a connectionless watcher whose frames land on send. It is
// used by in-process consumers such as tests and the terminal client.
func Attach(hub *Hub, sessionKey string, send chan []byte) {
	hub.register <- &Client{Hub: hub, SessionKey: sessionKey, Send: send}
}
