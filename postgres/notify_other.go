//go:build !unix

package postgres

// notifier without a pollable descriptor; event loops use Ready.
type notifier struct {
	ready chan struct{}
}

func newNotifier() (*notifier, error) {
	return &notifier{ready: make(chan struct{}, 1)}, nil
}

func (n *notifier) fd() int { return -1 }

func (n *notifier) signal() {
	select {
	case n.ready <- struct{}{}:
	default:
	}
}

func (n *notifier) drain() {
	select {
	case <-n.ready:
	default:
	}
}

func (n *notifier) close() {}
