/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"context"
	"time"
)

// SleepCtx blocks for d or until ctx is cancelled, whichever comes
// first, returning false if it was cancelled. Every suspension point
// named in §5 (registration backoff, heartbeat interval, system
// refetch interval) goes through this so shutdown is honoured within a
// bounded time rather than blocking a full sleep.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
