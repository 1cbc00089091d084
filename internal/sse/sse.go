// Package sse раздаёт события запусков подписчикам server-sent events.
package sse

import "sync"

// Hub хранит подписчиков по id запуска. Нулевое значение готово к работе.
type Hub struct {
	mu    sync.Mutex
	conns map[string][]chan string
}

// Subscribe подписывает клиента на id, возвращает канал и функцию-unsubscribe
func (h *Hub) Subscribe(id string) (<-chan string, func()) {
	ch := make(chan string, 16)

	h.mu.Lock()
	if h.conns == nil {
		h.conns = map[string][]chan string{}
	}
	h.conns[id] = append(h.conns[id], ch)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			list := h.conns[id]
			for i, c := range list {
				if c == ch {
					h.conns[id] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(h.conns[id]) == 0 {
				delete(h.conns, id)
			}
		})
	}

	return ch, cancel
}

// Publish отсылает сообщение всем подписчикам id. Если канал
// подписчика забит, сообщение для него теряется; возвращает число
// подписчиков, получивших сообщение.
func (h *Hub) Publish(id, msg string) int {
	h.mu.Lock()
	list := append([]chan string(nil), h.conns[id]...)
	h.mu.Unlock()

	sent := 0
	for _, ch := range list {
		select {
		case ch <- msg:
			sent++
		default:
		}
	}
	return sent
}

// Subscribers возвращает число подписчиков id.
func (h *Hub) Subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[id])
}
