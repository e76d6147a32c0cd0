package httpclient

import (
	"net/http"
	"sync"
	"time"
)

// HTTPClientPool hands out HTTP clients sharing one tuned transport
type HTTPClientPool struct {
	clients chan *http.Client
	factory func() *http.Client
	mu      sync.RWMutex
	closed  bool
}

// NewHTTPClientPool creates a pool of maxClients clients with the given request timeout
func NewHTTPClientPool(maxClients int, timeout time.Duration) *HTTPClientPool {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	pool := &HTTPClientPool{
		clients: make(chan *http.Client, maxClients),
		factory: func() *http.Client {
			return &http.Client{Timeout: timeout, Transport: transport}
		},
	}

	for i := 0; i < maxClients; i++ {
		pool.clients <- pool.factory()
	}

	return pool
}

// Get retrieves an HTTP client from the pool, creating one when it is empty
func (p *HTTPClientPool) Get() *http.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return p.factory()
	}

	select {
	case client := <-p.clients:
		return client
	default:
		return p.factory()
	}
}

// Put returns an HTTP client to the pool
func (p *HTTPClientPool) Put(client *http.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.clients <- client:
	default:
		// full
	}
}

// Close drains the pool; later Get calls build fresh clients
func (p *HTTPClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.clients)
}

var (
	globalPool *HTTPClientPool
	once       sync.Once
)

// GetGlobalPool returns the shared pool used by outbound gateways
func GetGlobalPool() *HTTPClientPool {
	once.Do(func() {
		globalPool = NewHTTPClientPool(20, 30*time.Second)
	})
	return globalPool
}
