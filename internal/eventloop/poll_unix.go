//go:build unix

package eventloop

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

func wait(ctx context.Context, d Driver, tick time.Duration) error {
	fd := d.Socket()
	if fd < 0 {
		return waitChan(ctx, d.Ready(), tick)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	_, err := unix.Poll(fds, int(tick/time.Millisecond))
	if err == unix.EINTR {
		return nil
	}
	return err
}
