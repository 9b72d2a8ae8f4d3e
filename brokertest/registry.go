package brokertest

import (
	"sync"

	"github.com/luma/hermes/protocol"
)

// subscription is one registered SUB on one connection.
type subscription struct {
	conn *brokerConn

	subject    string
	queueGroup string
	sid        string

	// remaining is how many more deliveries the subscription gets before it
	// is dropped, or -1 for no limit.
	remaining int
}

// registry tracks every live subscription, keyed by subject for delivery
// fan-out. Matching is exact: the broker does not implement routing
// wildcards, subjects are opaque tokens to it.
type registry struct {
	mu sync.Mutex

	bySubject map[string][]*subscription

	// next holds the round-robin cursor per subject+queue group.
	next map[string]int
}

func newRegistry() *registry {
	return &registry{
		bySubject: make(map[string][]*subscription),
		next:      make(map[string]int),
	}
}

func (r *registry) add(conn *brokerConn, cmd *protocol.SubCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bySubject[cmd.Subject] = append(r.bySubject[cmd.Subject], &subscription{
		conn:       conn,
		subject:    cmd.Subject,
		queueGroup: cmd.QueueGroup,
		sid:        cmd.Sid,
		remaining:  -1,
	})
}

// unsubscribe applies an UNSUB from conn: immediate removal, or a delivery
// allowance when the command carries max_msgs.
func (r *registry) unsubscribe(conn *brokerConn, cmd *protocol.UnsubCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for subject, subs := range r.bySubject {
		for i, sub := range subs {
			if sub.conn != conn || sub.sid != cmd.Sid {
				continue
			}

			if cmd.MaxMsgs > 0 {
				sub.remaining = cmd.MaxMsgs
				return
			}

			r.bySubject[subject] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// dropConn removes every subscription a closed connection held.
func (r *registry) dropConn(conn *brokerConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for subject, subs := range r.bySubject {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.conn != conn {
				kept = append(kept, sub)
			}
		}

		r.bySubject[subject] = kept
	}
}

// targets selects the subscriptions one published message goes to: every
// subscriber outside a queue group, plus one round-robin member per queue
// group. Delivery allowances are decremented here and exhausted
// subscriptions are dropped.
func (r *registry) targets(subject string) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		picked []*subscription
		queues = make(map[string][]*subscription)
	)

	for _, sub := range r.bySubject[subject] {
		if sub.queueGroup == "" {
			picked = append(picked, sub)
			continue
		}

		queues[sub.queueGroup] = append(queues[sub.queueGroup], sub)
	}

	for group, members := range queues {
		cursor := subject + "\x00" + group
		picked = append(picked, members[r.next[cursor]%len(members)])
		r.next[cursor]++
	}

	for _, sub := range picked {
		if sub.remaining > 0 {
			sub.remaining--
			if sub.remaining == 0 {
				r.remove(sub)
			}
		}
	}

	return picked
}

// remove unlinks one subscription. Callers hold r.mu.
func (r *registry) remove(target *subscription) {
	subs := r.bySubject[target.subject]
	for i, sub := range subs {
		if sub == target {
			r.bySubject[target.subject] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
