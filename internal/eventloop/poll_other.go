//go:build !unix

package eventloop

import (
	"context"
	"time"
)

func wait(ctx context.Context, d Driver, tick time.Duration) error {
	return waitChan(ctx, d.Ready(), tick)
}
