package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one browser connection for a workbench until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, workbenchID uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, WorkbenchID: workbenchID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
