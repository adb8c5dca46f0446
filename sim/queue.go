// Implements the Mailbox, which holds notices waiting to be drained by one agent.
// Notices are enqueued by the router after the propagation delay.

package sim

import (
	"fmt"
	"strings"
)

// Notice kinds carried in a Mailbox.
const (
	NoticeUpdate = "update"
)

// Notice is a pending notification for one agent.
type Notice struct {
	Type    string
	Key     string
	Version int64
}

func (n Notice) String() string {
	return fmt.Sprintf("%s(%s@v%d)", n.Type, n.Key, n.Version)
}

// Mailbox represents a FIFO queue of notices for a single consumer.
// Publishers append; only the owning agent dequeues.
type Mailbox struct {
	queue []Notice
}

// Enqueue adds a notice to the back of the mailbox.
func (mb *Mailbox) Enqueue(n Notice) {
	mb.queue = append(mb.queue, n)
}

func (mb *Mailbox) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range mb.queue {
		sb.WriteString(val.String())
		if i < len(mb.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of pending notices.
func (mb *Mailbox) Len() int {
	return len(mb.queue)
}

// Dequeue removes and returns the oldest notice.
func (mb *Mailbox) Dequeue() (Notice, bool) {
	if len(mb.queue) == 0 {
		return Notice{}, false
	}
	n := mb.queue[0]
	mb.queue = mb.queue[1:]
	if len(mb.queue) == 0 {
		// release the backing array once drained
		mb.queue = nil
	}
	return n, true
}
