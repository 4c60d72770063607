// Package server accepts websocket connections and runs one session
// state machine per client.
package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bitrate16/httprd/internal/capture"
	"github.com/bitrate16/httprd/internal/config"
	"github.com/bitrate16/httprd/internal/input"
	"github.com/bitrate16/httprd/internal/web"
)

// Server is the fan-out supervisor: it upgrades connections on
// /connect_ws and spawns an independent session for each. Sessions
// share only the read-only config, the grabber and the synthesizer.
type Server struct {
	cfg      *config.Config
	grabber  capture.Grabber
	synth    input.Synthesizer
	sessions *registry
	upgrader websocket.Upgrader
}

// New wires a Server from its collaborators.
func New(cfg *config.Config, grabber capture.Grabber, synth input.Synthesizer) *Server {
	return &Server{
		cfg:      cfg,
		grabber:  grabber,
		synth:    synth,
		sessions: newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// TLS termination and origin policy belong to the deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP surface: the embedded web client, a health
// probe and the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/connect_ws", s.handleConnect)
	return mux
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(web.Index())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}
	sess := newSession(ws, s.cfg, s.grabber, s.synth, s.sessions.remove)
	s.sessions.add(sess)
	log.Printf("session %s: connected from %s (%d active)", sess.id, r.RemoteAddr, s.sessions.len())
	go sess.run()
}

// Close terminates every live session.
func (s *Server) Close() {
	s.sessions.closeAll()
}
