package board

import (
	"sync"
)

// Hub はパーティションごとの変更通知を購読者へファンアウトする。
// 通知はコアレス可能なシグナルであり、購読者が受信しきれない場合は
// 最新の1件のみ保持される（配信はブロックしない）。
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[int]chan struct{}
	nextID      int
	closed      bool
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[int]chan struct{}),
	}
}

// Subscribe はパーティションの変更シグナルチャネルと購読解除関数を返す。
// 解除関数は複数回呼んでも安全で、呼び出し後チャネルはクローズされる。
func (h *Hub) Subscribe(storeID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++

	if h.subscribers[storeID] == nil {
		h.subscribers[storeID] = make(map[int]chan struct{})
	}
	h.subscribers[storeID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subscribers[storeID]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
					if len(subs) == 0 {
						delete(h.subscribers, storeID)
					}
				}
			}
		})
	}
	return ch, cancel
}

// Notify はパーティションの全購読者へ変更シグナルを送る。
// 未受信のシグナルが残っている購読者へは追加送信しない（コアレス）。
func (h *Hub) Notify(storeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for _, ch := range h.subscribers[storeID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount はパーティションの現在の購読者数を返す。
func (h *Hub) SubscriberCount(storeID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[storeID])
}

// Close は全購読者のチャネルをクローズし、以後の購読を拒否する。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for storeID, subs := range h.subscribers {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subscribers, storeID)
	}
}
