package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bitrate16/httprd/internal/capture"
	"github.com/bitrate16/httprd/internal/config"
	"github.com/bitrate16/httprd/internal/frame"
	"github.com/bitrate16/httprd/internal/input"
	"github.com/bitrate16/httprd/internal/protocol"
)

const (
	readLimit    = 1 << 20
	loginTimeout = 30 * time.Second
	readTimeout  = 120 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 50 * time.Second
)

// Conn is the slice of *websocket.Conn a session needs. Tests swap in
// an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session owns one connected client: the login handshake, then a
// reader goroutine that decodes inbound packets and a producer
// goroutine that paces and emits frames. The two share state through
// the one-slot pending channel, so a burst of frame requests collapses
// into a single response carrying the most recent parameters.
type Session struct {
	id   string
	conn Conn
	cfg  *config.Config

	pipeline *frame.Pipeline
	disp     *input.Dispatcher
	role     input.Role

	pending chan protocol.FrameRequest
	done    chan struct{}
	once    sync.Once
	onClose func(*Session)
}

func newSession(conn Conn, cfg *config.Config, grabber capture.Grabber, synth input.Synthesizer, onClose func(*Session)) *Session {
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		cfg:      cfg,
		pipeline: frame.NewPipeline(grabber, cfg),
		disp:     input.NewDispatcher(synth, grabber.Bounds, cfg.MaxIPS),
		pending:  make(chan protocol.FrameRequest, 1),
		done:     make(chan struct{}),
		onClose:  onClose,
	}
}

func (s *Session) run() {
	defer s.close()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	if !s.authenticate() {
		return
	}
	go s.writeFrames()
	s.readLoop()
}

// authenticate waits for the login packet and assigns the session
// role. Until it succeeds no capture happens and nothing but the auth
// result is written.
func (s *Session) authenticate() bool {
	s.conn.SetReadDeadline(time.Now().Add(loginTimeout))
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return false
	}
	password, err := protocol.DecodeLogin(msg)
	if err != nil {
		log.Printf("session %s: login: %v", s.id, err)
		s.closeProtocolError()
		return false
	}

	switch {
	case password == s.cfg.ControlPassword:
		s.role = input.RoleController
	case s.cfg.ViewPassword != "" && password == s.cfg.ViewPassword:
		s.role = input.RoleViewer
	default:
		log.Printf("session %s: login rejected", s.id)
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		s.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeAuthResult(protocol.AuthRejected))
		return false
	}

	status := protocol.AuthController
	if s.role == input.RoleViewer {
		status = protocol.AuthViewer
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeAuthResult(status)); err != nil {
		return false
	}
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	log.Printf("session %s: authenticated as %s", s.id, s.role)
	return true
}

func (s *Session) readLoop() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("session %s: read: %v", s.id, err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if len(msg) == 0 {
			s.closeProtocolError()
			return
		}
		switch msg[0] {
		case protocol.TagFrameRequest:
			req, err := protocol.DecodeFrameRequest(msg)
			if err != nil {
				log.Printf("session %s: %v", s.id, err)
				s.closeProtocolError()
				return
			}
			s.disp.SetViewport(int(req.ViewportWidth), int(req.ViewportHeight))
			s.offer(req)
		case protocol.TagInput:
			events, err := protocol.DecodeInput(msg)
			if err != nil {
				log.Printf("session %s: %v", s.id, err)
				s.closeProtocolError()
				return
			}
			s.disp.Dispatch(s.role, events)
		default:
			log.Printf("session %s: unknown packet tag 0x%02x", s.id, msg[0])
			s.closeProtocolError()
			return
		}
	}
}

// offer replaces any queued frame request with the newest one.
func (s *Session) offer(req protocol.FrameRequest) {
	for {
		select {
		case s.pending <- req:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// writeFrames paces frame production to MaxFPS and keeps the
// connection alive with pings. It is the only writer once the session
// is serving.
func (s *Session) writeFrames() {
	interval := time.Second / time.Duration(s.cfg.MaxFPS)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var lastSent time.Time
	for {
		select {
		case <-s.done:
			return
		case <-ping.C:
			s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		case req := <-s.pending:
			if wait := interval - time.Since(lastSent); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-s.done:
					timer.Stop()
					return
				case <-timer.C:
				}
				// Requests that arrived while waiting win.
				select {
				case req = <-s.pending:
				default:
				}
			}

			resp, err := s.pipeline.Produce(req)
			if err != nil {
				log.Printf("session %s: %v", s.id, err)
				resp = &protocol.FrameResponse{
					Type:         protocol.FrameEmpty,
					RemoteWidth:  req.ViewportWidth,
					RemoteHeight: req.ViewportHeight,
				}
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrameResponse(resp)); err != nil {
				log.Printf("session %s: write: %v", s.id, err)
				s.close()
				return
			}
			lastSent = time.Now()
		}
	}
}

func (s *Session) closeProtocolError() {
	msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, "malformed packet")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
		log.Printf("session %s: closed", s.id)
	})
}
