package session

import "sync"

// subscriptionBuffer is sized so that a subscriber lagging a full
// login-to-steady-state walk does not block the controller.
const subscriptionBuffer = 16

// Subscription is an ordered feed of phase transitions. Values arrive in
// exactly the order the controller produced them. The channel is closed by
// Unsubscribe.
type Subscription struct {
	ch   chan Phase
	done chan struct{}
	stop sync.Once
}

// C returns the receive side of the feed.
func (s *Subscription) C() <-chan Phase { return s.ch }

// Subscribe registers a new ordered phase feed. The current phase is not
// replayed; read Phase() first, then consume transitions.
func (c *Controller) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{
		ch:   make(chan Phase, subscriptionBuffer),
		done: make(chan struct{}),
	}
	c.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. The done
// channel is closed before the mutex is taken: a publisher blocked on this
// subscription's full buffer holds the controller mutex, and must be released
// before Unsubscribe can acquire it.
func (c *Controller) Unsubscribe(sub *Subscription) {
	sub.stop.Do(func() { close(sub.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[sub]; !ok {
		return
	}
	delete(c.subs, sub)
	close(sub.ch)
}

// publishLocked fans the new phase out to every subscriber. Called with the
// controller mutex held, which is what makes delivery order the mutation
// order. A send blocks when a subscriber's buffer is full (dropping a
// transition would break the ordering guarantee) until the subscriber drains
// or unsubscribes.
func (c *Controller) publishLocked(p Phase) {
	for sub := range c.subs {
		select {
		case sub.ch <- p:
		case <-sub.done:
		}
	}
}
