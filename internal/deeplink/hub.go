package deeplink

import "sync"

// ResultHub хранит последний PaymentResult и рассылает итоги всем подписчикам.
// Новый подписчик не вытесняет предыдущих.
type ResultHub struct {
	mu        sync.Mutex
	latest    *PaymentResult
	nextID    uint64
	listeners map[uint64]Listener
	watchers  map[uint64]chan *PaymentResult
}

// NewResultHub создаёт пустой hub
func NewResultHub() *ResultHub {
	return &ResultHub{
		listeners: make(map[uint64]Listener),
		watchers:  make(map[uint64]chan *PaymentResult),
	}
}

// Subscribe регистрирует listener; возвращённая функция отписывает его
func (h *ResultHub) Subscribe(l Listener) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Watch возвращает канал состояния результата. Сразу после подписки в канал приходит текущий
// результат, если он есть. nil в канале = результат очищен.
// Канал хранит только последнее значение: медленный читатель пропускает промежуточные.
func (h *ResultHub) Watch() (<-chan *PaymentResult, func()) {
	ch := make(chan *PaymentResult, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = ch
	if h.latest != nil {
		ch <- copyResult(h.latest)
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Latest возвращает текущий результат
func (h *ResultHub) Latest() (PaymentResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return PaymentResult{}, false
	}
	return *copyResult(h.latest), true
}

// Publish заменяет текущий результат
func (h *ResultHub) Publish(r PaymentResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = copyResult(&r)
	h.broadcastLocked(h.latest)
}

// Clear сбрасывает текущий результат
func (h *ResultHub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = nil
	h.broadcastLocked(nil)
}

// Dispatch доставляет событие всем listener'ам. Вызывается вне lock'а,
// поэтому listener может сам отписаться или подписать другого.
func (h *ResultHub) Dispatch(e Event) {
	h.mu.Lock()
	snapshot := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		snapshot = append(snapshot, l)
	}
	h.mu.Unlock()

	for _, l := range snapshot {
		deliver(l, e)
	}
}

func (h *ResultHub) broadcastLocked(r *PaymentResult) {
	for _, ch := range h.watchers {
		// вытесняем непрочитанное значение
		select {
		case <-ch:
		default:
		}
		ch <- copyResult(r)
	}
}

func copyResult(r *PaymentResult) *PaymentResult {
	if r == nil {
		return nil
	}
	out := PaymentResult{Status: r.Status}
	if r.OrderID != nil {
		id := *r.OrderID
		out.OrderID = &id
	}
	return &out
}
