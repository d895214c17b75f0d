package web

import (
	"sync"
)

type DashboardStatus string

const (
	StatusInitializing       DashboardStatus = "initializing"
	StatusCredentialRequired DashboardStatus = "credential_required"
	StatusPolling            DashboardStatus = "polling"
	StatusRunning            DashboardStatus = "running"
	StatusError              DashboardStatus = "error"
)

type StatusInfo struct {
	Status  DashboardStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

type StatusBroadcaster struct {
	status    StatusInfo
	listeners []chan StatusInfo
	mu        sync.RWMutex
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		status: StatusInfo{
			Status:  StatusInitializing,
			Message: "Starting up...",
		},
	}
}

func (b *StatusBroadcaster) GetStatus() StatusInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *StatusBroadcaster) SetStatus(status DashboardStatus, message string) {
	b.mu.Lock()
	b.status = StatusInfo{
		Status:  status,
		Message: message,
	}
	current := b.status
	b.mu.Unlock()

	b.broadcast(current)
}

func (b *StatusBroadcaster) Subscribe() chan StatusInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StatusInfo, 10)
	b.listeners = append(b.listeners, ch)
	ch <- b.status
	return ch
}

func (b *StatusBroadcaster) Unsubscribe(ch chan StatusInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *StatusBroadcaster) broadcast(status StatusInfo) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.listeners {
		select {
		case ch <- status:
		default:
		}
	}
}
