package apisrv

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// subscriber is a single websocket feed client.
type subscriber struct {
	id     string
	writer chan *websocket.PreparedMessage
	// closed marks writer as closed. It's protected by subsLock, broadcast
	// is the only one changing it under the read lock.
	closed bool
}

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Maximum size of a client message, clients aren't expected to send
	// anything except control frames.
	wsReadLimit = 1024

	// Number of messages buffered for each subscriber.
	notificationBufSize = 64
)

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	subscr, ok := s.addSubscriber()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "websocket users limit reached")
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket connection upgrade failed", zap.Error(err))
		s.removeSubscriber(subscr)
		return
	}
	s.log.Debug("new feed subscriber", zap.String("id", subscr.id))

	go s.handleWsWrites(ws, subscr.writer)
	s.handleWsReads(ws, subscr)
}

// addSubscriber registers a new feed subscriber unless the client limit is
// reached.
func (s *Server) addSubscriber() (*subscriber, bool) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()
	if len(s.subscribers) >= maxWebSocketClients {
		return nil, false
	}
	subscr := &subscriber{
		id:     uuid.NewString(),
		writer: make(chan *websocket.PreparedMessage, notificationBufSize),
	}
	s.subscribers[subscr.id] = subscr
	return subscr, true
}

// handleSubEvents fans stored scan results out to all feed subscribers.
func (s *Server) handleSubEvents() {
	defer close(s.eventsDone)
chloop:
	for {
		select {
		case <-s.shutdown:
			break chloop
		case res := <-s.scanCh:
			s.broadcast(res)
		}
	}
	s.store.UnsubscribeFromScans(s.scanCh)
drainloop:
	for {
		select {
		case <-s.scanCh:
		default:
			break drainloop
		}
	}
}

func (s *Server) broadcast(res state.ScanResult) {
	b, err := json.Marshal(res)
	if err != nil {
		s.log.Error("failed to marshal scan result", zap.Error(err))
		return
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		s.log.Error("failed to prepare feed message", zap.Error(err))
		return
	}
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()
	for _, sub := range s.subscribers {
		if sub.closed {
			continue
		}
		select {
		case sub.writer <- msg:
		default:
			// Slow client, stop feeding it and let the writer drop it.
			sub.closed = true
			close(sub.writer)
			s.log.Info("feed subscriber overflown, disconnecting", zap.String("id", sub.id))
		}
	}
}

func (s *Server) handleWsWrites(ws *websocket.Conn, subChan <-chan *websocket.PreparedMessage) {
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case event, ok := <-subChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WritePreparedMessage(event); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
}

// handleWsReads consumes client frames until the connection is closed and
// then removes the subscriber.
func (s *Server) handleWsReads(ws *websocket.Conn, subscr *subscriber) {
	ws.SetReadLimit(wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
	for err == nil {
		_, _, err = ws.ReadMessage()
	}

	s.removeSubscriber(subscr)
	ws.Close()
	s.log.Debug("feed subscriber gone", zap.String("id", subscr.id))
}

func (s *Server) removeSubscriber(subscr *subscriber) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()
	delete(s.subscribers, subscr.id)
	if !subscr.closed {
		close(subscr.writer)
		subscr.closed = true
	}
}
