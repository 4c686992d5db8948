package chat

import (
	"sync"
)

// ConnManager indexes live websocket sessions by connection, by user and
// by subscribed conversation channel.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Client
	byUser map[string]map[string]*Client // userID -> connID -> client
	byConv map[string]map[string]*Client // conversationID -> connID -> client
	convOf map[string]map[string]bool    // connID -> conversationID set
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		byConv: make(map[string]map[string]*Client),
		convOf: make(map[string]map[string]bool),
	}
}

func (m *ConnManager) Add(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byConn[c.ConnID] = c
	if m.byUser[c.UserID] == nil {
		m.byUser[c.UserID] = make(map[string]*Client)
	}
	m.byUser[c.UserID][c.ConnID] = c
	m.convOf[c.ConnID] = make(map[string]bool)
}

// Remove detaches the connection and returns the conversations it was
// subscribed to (the caller broadcasts the offline presence).
func (m *ConnManager) Remove(connID string) (convIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return nil
	}
	delete(m.byConn, connID)
	if conns := m.byUser[c.UserID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
	for convID := range m.convOf[connID] {
		convIDs = append(convIDs, convID)
		if subs := m.byConv[convID]; subs != nil {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(m.byConv, convID)
			}
		}
	}
	delete(m.convOf, connID)
	return convIDs
}

func (m *ConnManager) Subscribe(connID, convID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return
	}
	if m.byConv[convID] == nil {
		m.byConv[convID] = make(map[string]*Client)
	}
	m.byConv[convID][connID] = c
	m.convOf[connID][convID] = true
}

func (m *ConnManager) Unsubscribe(connID, convID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs := m.byConv[convID]; subs != nil {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(m.byConv, convID)
		}
	}
	if convs := m.convOf[connID]; convs != nil {
		delete(convs, convID)
	}
}

// ConvSubscribers snapshots the clients subscribed to a conversation.
func (m *ConnManager) ConvSubscribers(convID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := m.byConv[convID]
	out := make([]*Client, 0, len(subs))
	for _, c := range subs {
		out = append(out, c)
	}
	return out
}

// UserOnline reports whether the user keeps at least one live connection.
func (m *ConnManager) UserOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]) > 0
}
