package device

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/nightstack/internal/shared"
)

// Registry tracks currently connected devices. A reconnecting device
// replaces its previous link.
type Registry struct {
	mu    sync.RWMutex
	links map[string]*Link
	log   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		links: make(map[string]*Link),
		log:   logger.With("component", "device_registry"),
	}
}

func (r *Registry) Register(l *Link) {
	r.mu.Lock()
	prev := r.links[l.DeviceID()]
	r.links[l.DeviceID()] = l
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
		r.log.Info("device reconnected", "device_id", l.DeviceID())
	} else {
		r.log.Info("device connected", "device_id", l.DeviceID())
	}
}

func (r *Registry) Unregister(l *Link) {
	r.mu.Lock()
	if r.links[l.DeviceID()] == l {
		delete(r.links, l.DeviceID())
	}
	r.mu.Unlock()
	r.log.Info("device disconnected", "device_id", l.DeviceID())
}

func (r *Registry) Get(deviceID string) (*Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[deviceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

func (r *Registry) Close() error {
	r.mu.Lock()
	links := make([]*Link, 0, len(r.links))
	for _, l := range r.links {
		links = append(links, l)
	}
	r.links = make(map[string]*Link)
	r.mu.Unlock()

	for _, l := range links {
		l.Close()
	}
	return nil
}
