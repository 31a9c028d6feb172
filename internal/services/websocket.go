package services

import (
	"sync"

	"github.com/gorilla/websocket"

	"report-service/internal/logging"
)

const maxConnectionsPerUser = 10

// WebSocketManager manages WebSocket connections for users
type WebSocketManager struct {
	connections map[int64]map[*websocket.Conn]bool // userID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewWebSocketManager(logger *logging.Logger) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[int64]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddWebSocketConnection adds a WebSocket connection for a user
func (s *Service) AddWebSocketConnection(userID int64, conn *websocket.Conn) bool {
	return s.wsManager.AddConnection(userID, conn)
}

// RemoveWebSocketConnection removes a WebSocket connection for a user
func (s *Service) RemoveWebSocketConnection(userID int64, conn *websocket.Conn) {
	s.wsManager.RemoveConnection(userID, conn)
}

// AddConnection registers conn and reports false when the user already has the maximum.
func (m *WebSocketManager) AddConnection(userID int64, conn *websocket.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[userID]; !exists {
		m.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[userID]) >= maxConnectionsPerUser {
		m.logger.Warnf("Max connections reached for user %d", userID)
		return false
	}
	m.connections[userID][conn] = true
	m.logger.Infof("Added WebSocket connection for user %d (total: %d)", userID, len(m.connections[userID]))
	return true
}

// RemoveConnection removes a WebSocket connection
func (m *WebSocketManager) RemoveConnection(userID int64, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
		m.logger.Infof("Removed WebSocket connection for user %d (remaining: %d)", userID, len(conns))
	}
}

// SendToUser writes message to every connection of a user and returns how many succeeded.
// Connections that fail are dropped.
func (m *WebSocketManager) SendToUser(userID int64, message []byte) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	sent := 0
	if conns, exists := m.connections[userID]; exists {
		for conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				m.logger.Errorf("Failed to send WebSocket message to user %d: %v", userID, err)
				delete(conns, conn)
				continue
			}
			sent++
		}
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
	}
	return sent
}

// Count returns the number of open connections of a user.
func (m *WebSocketManager) Count(userID int64) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.connections[userID])
}
