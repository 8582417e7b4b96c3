package intercept

import "sync"

// NotificationType names an engine or scope notification.
type NotificationType string

// Notifications.
const (
	// NotifyRequest fires when an interceptor is consumed by a request.
	NotifyRequest NotificationType = "request"
	// NotifyReplied fires when a replayed response has been fully delivered.
	NotifyReplied NotificationType = "replied"
	// NotifyNoMatch fires when a request is rejected because nothing matched.
	NotifyNoMatch NotificationType = "no match"
)

// Notification is delivered to observers on the loop goroutine.
type Notification struct {
	Type        NotificationType
	Request     *RequestContext
	Interceptor *Interceptor
	Response    *Response
	Err         error
}

// notifier is an observer list. Observers are called in subscription order
// on a snapshot, so an observer may unsubscribe itself.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Notification)
}

func (n *notifier) subscribe(fn func(Notification)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	n.nextID++
	subID := n.nextID
	n.subs = append(n.subs, subscription{id: subID, fn: fn})
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s.id == subID {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

func (n *notifier) notify(ev Notification) {
	n.mu.Lock()
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
