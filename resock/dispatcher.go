package resock

import "sync"

// Handler receives the four lifecycle signals of a Client. Calls for one
// Client are serialized and never overlap.
type Handler interface {
	OnOpen(OpenEvent)
	OnMessage(Message)
	OnClose(CloseEvent)
	OnError(ErrorEvent)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open    func(OpenEvent)
	Message func(Message)
	Close   func(CloseEvent)
	Error   func(ErrorEvent)
}

func (h HandlerFuncs) OnOpen(ev OpenEvent) {
	if h.Open != nil {
		h.Open(ev)
	}
}

func (h HandlerFuncs) OnMessage(msg Message) {
	if h.Message != nil {
		h.Message(msg)
	}
}

func (h HandlerFuncs) OnClose(ev CloseEvent) {
	if h.Close != nil {
		h.Close(ev)
	}
}

func (h HandlerFuncs) OnError(ev ErrorEvent) {
	if h.Error != nil {
		h.Error(ev)
	}
}

// Dispatcher routes lifecycle events to one callback per event kind.
// Setting a callback replaces the previous one.
type Dispatcher struct {
	mu        sync.RWMutex
	onOpen    func(OpenEvent)
	onMessage func(Message)
	onClose   func(CloseEvent)
	onError   func(ErrorEvent)
}

func (d *Dispatcher) SetOnOpen(fn func(OpenEvent))   { d.mu.Lock(); d.onOpen = fn; d.mu.Unlock() }
func (d *Dispatcher) SetOnMessage(fn func(Message))  { d.mu.Lock(); d.onMessage = fn; d.mu.Unlock() }
func (d *Dispatcher) SetOnClose(fn func(CloseEvent)) { d.mu.Lock(); d.onClose = fn; d.mu.Unlock() }
func (d *Dispatcher) SetOnError(fn func(ErrorEvent)) { d.mu.Lock(); d.onError = fn; d.mu.Unlock() }

// Bind installs all four slots from h.
func (d *Dispatcher) Bind(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpen = h.OnOpen
	d.onMessage = h.OnMessage
	d.onClose = h.OnClose
	d.onError = h.OnError
}

func (d *Dispatcher) dispatchOpen(ev OpenEvent) {
	d.mu.RLock()
	fn := d.onOpen
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *Dispatcher) dispatchMessage(msg Message) {
	d.mu.RLock()
	fn := d.onMessage
	d.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (d *Dispatcher) dispatchClose(ev CloseEvent) {
	d.mu.RLock()
	fn := d.onClose
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *Dispatcher) dispatchError(ev ErrorEvent) {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
