package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream pushes the current book and then every BookUpdate to the
// client until either side goes away. Client frames are read and discarded.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stream == nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates := s.deps.Stream.SubscribeAll()
	defer s.deps.Stream.Unsubscribe(updates)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	b := s.deps.Feed.Book()
	if err := s.writeUpdate(conn, adapter.BookUpdate{
		Venue:     b.Venue,
		Symbol:    b.Symbol,
		Bids:      b.Bids,
		Asks:      b.Asks,
		Version:   b.Version,
		Timestamp: b.UpdatedAt,
	}); err != nil {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case u := <-updates:
			if err := s.writeUpdate(conn, u); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeUpdate(conn *websocket.Conn, u adapter.BookUpdate) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(u); err != nil {
		s.log.Debug("stream write failed", zap.Error(err))
		return err
	}
	return nil
}
