//go:build unix

package postgres

import (
	"golang.org/x/sys/unix"
)

// notifier wakes an event loop when the pump has posted events. The read end
// of a non-blocking pipe is exposed as the connection's socket so poll(2)
// based loops can wait on it, and a one-slot channel serves select loops.
type notifier struct {
	r, w  int
	ready chan struct{}
}

func newNotifier() (*notifier, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}
	return &notifier{r: p[0], w: p[1], ready: make(chan struct{}, 1)}, nil
}

func (n *notifier) fd() int { return n.r }

func (n *notifier) signal() {
	// EAGAIN means the pipe is already full, which is as readable as it gets.
	_, _ = unix.Write(n.w, []byte{1})
	select {
	case n.ready <- struct{}{}:
	default:
	}
}

func (n *notifier) drain() {
	var buf [64]byte
	for {
		k, err := unix.Read(n.r, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || k < len(buf) {
			break
		}
	}
	select {
	case <-n.ready:
	default:
	}
}

func (n *notifier) close() {
	unix.Close(n.r)
	unix.Close(n.w)
}
