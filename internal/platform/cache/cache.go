// Package cache provee una caché en memoria con TTL y desalojo LRU.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// LRU es una caché acotada con expiración por entrada. Es segura para uso concurrente.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry[V]
	order    *list.List // frente = usado más recientemente
	now      func() time.Time
}

// New crea una caché con capacidad y TTL por defecto (ttl <= 0 = sin expiración).
func New[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry[V]),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get retorna el valor si existe y no expiró; lo marca como usado recientemente.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		c.remove(e)
		return zero, false
	}
	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set guarda el valor con el TTL por defecto, desalojando el LRU si está llena.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.items) >= c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.remove(back.Value.(*entry[V]))
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	e.element = c.order.PushFront(e)
	c.items[key] = e
}

// Delete elimina la clave.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.remove(e)
	}
}

// Len retorna el número de entradas, expiradas incluidas hasta su próximo acceso.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge elimina las entradas expiradas y retorna cuántas eliminó.
func (c *LRU[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.items {
		if c.expired(e) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

func (c *LRU[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// remove requiere c.mu tomado.
func (c *LRU[V]) remove(e *entry[V]) {
	delete(c.items, e.key)
	c.order.Remove(e.element)
}
