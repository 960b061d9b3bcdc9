/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Live updates
//
// Every open sign-up page keeps a websocket to /ws. A single hub goroutine
// owns the set of connected clients; when the engine commits a change, the hub
// takes one fresh snapshot and pushes it to every client. Clients never send
// anything meaningful, so the read side only watches for disconnects.

package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/gamenight/internal/signup"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	writeWait = 10 * time.Second
	sendQueue = 8
)

type viewSource interface {
	Snapshot(ctx context.Context) (signup.View, error)
}

type Client struct {
	conn *websocket.Conn
	send chan signup.View
}

type Hub struct {
	cfg     *Config
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	changed  chan struct{}
	done     chan struct{}
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:      cfg,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// notify schedules a broadcast. It never blocks, and several calls before the
// hub wakes up collapse into one broadcast.
func (h *Hub) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// run owns h.clients until ctx is done, then disconnects everyone.
func (h *Hub) run(ctx context.Context, source viewSource) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()

			return

		case c := <-h.register:
			h.clients[c] = true

			view, err := source.Snapshot(ctx)
			if err != nil {
				logf(h.cfg, "LIVE: Unable to load state for new client: %v", err)

				continue
			}
			h.deliver(c, view)

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case <-h.changed:
			if len(h.clients) == 0 {
				continue
			}

			view, err := source.Snapshot(ctx)
			if err != nil {
				logf(h.cfg, "LIVE: Unable to load state for broadcast: %v", err)

				continue
			}

			for c := range h.clients {
				h.deliver(c, view)
			}
		}
	}
}

// deliver queues view for c, dropping clients that have fallen too far
// behind. Only run may call it.
func (h *Hub) deliver(c *Client, view signup.View) {
	select {
	case c.send <- view:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveLive(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "LIVE: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		client := &Client{
			conn: conn,
			send: make(chan signup.View, sendQueue),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()

			return
		}

		logf(cfg, "LIVE: Client connected from %s", realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for view := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(view); err != nil {
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// serveQR renders a PNG QR code pointing at the sign-up page, for sharing
// from a phone at the table.
// pageURL is the address the QR code points at. A forwarded scheme is only
// honored when it is http or https.
func pageURL(cfg *Config, r *http.Request) string {
	scheme := cfg.scheme()
	switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
	case "http", "https":
		scheme = proto
	}

	// Strip the trailing "/qr" to get the page URL.
	path := strings.TrimSuffix(r.URL.Path, "qr")

	return scheme + "://" + r.Host + path
}

func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		const qrSize = 320
		png, err := qrcode.Encode(pageURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}
