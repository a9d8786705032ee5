// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/telemetry"
)

const (
	wsWriteWait   = 5 * time.Second
	wsSendBuffer  = 16
	historyMaxLen = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// historyReader is the part of the Redis history the web view needs.
type historyReader interface {
	Recent(ctx context.Context, n int) ([]telemetry.CycleRecord, error)
}

// webServer keeps the last cycle record and fans new ones out to every
// connected websocket.
type webServer struct {
	mu       sync.RWMutex
	last     telemetry.CycleRecord
	haveLast bool
	clients  map[chan []byte]struct{}

	history historyReader
}

func newWebServer(history historyReader) *webServer {
	return &webServer{
		clients: make(map[chan []byte]struct{}),
		history: history,
	}
}

// ingest records one cycle payload as received from MQTT and broadcasts it.
func (s *webServer) ingest(payload []byte) error {
	var rec telemetry.CycleRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = rec
	s.haveLast = true
	for send := range s.clients {
		select {
		case send <- payload:
		default:
			// Slow browser; it catches up with the next record.
		}
	}
	return nil
}

func (s *webServer) subscribe() chan []byte {
	send := make(chan []byte, wsSendBuffer)
	s.mu.Lock()
	s.clients[send] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	log.Printf("web: websocket client connected (%d total)", n)
	return send
}

func (s *webServer) unsubscribe(send chan []byte) {
	s.mu.Lock()
	delete(s.clients, send)
	n := len(s.clients)
	s.mu.Unlock()
	log.Printf("web: websocket client disconnected (%d total)", n)
}

func (s *webServer) handler() http.Handler {
	mux := http.NewServeMux()

	// Latest cycle record
	mux.HandleFunc("/api/arm", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		rec, ok := s.last, s.haveLast
		s.mu.RUnlock()

		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, rec)
	})

	// Most recent records from Redis, newest first
	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			http.Error(w, "history disabled", http.StatusNotFound)
			return
		}
		n := 50
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				http.Error(w, "invalid n", http.StatusBadRequest)
				return
			}
			n = min(parsed, historyMaxLen)
		}
		recs, err := s.history.Recent(r.Context(), n)
		if err != nil {
			log.Printf("web: history error: %v", err)
			http.Error(w, "history unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, recs)
	})

	// Live cycle stream
	mux.HandleFunc("/ws", s.handleWS)

	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := s.subscribe()
	defer s.unsubscribe(send)

	// The browser never talks back; reading only notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// RunWeb serves the arm view: /api/arm, /api/history, the /ws stream and the
// static page, fed by the controller's cycle records over MQTT.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	var history historyReader
	if cfg.RedisAddr != "" {
		h, err := telemetry.NewRedisHistory(ctx, cfg.RedisAddr, cfg.RedisHistoryKey, cfg.RedisHistoryLen)
		if err != nil {
			log.Printf("web: %v; /api/history disabled", err)
		} else {
			defer h.Close()
			history = h
		}
	}
	srv := newWebServer(history)

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicCycle, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := srv.ingest(msg.Payload()); err != nil {
			log.Printf("web: cycle unmarshal error: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicCycle)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
