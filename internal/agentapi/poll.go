package agentapi

import (
	"context"
	"time"

	"github.com/waabox/builddeck/internal/domain"
)

// WaitForBuild polls the build status at a fixed interval until a terminal
// status is observed and returns that final snapshot. The first poll is
// immediate. onUpdate, when non-nil, receives every snapshot along with the
// events it has not seen before.
//
// Cancelling ctx stops polling; the last snapshot and ctx.Err() are returned.
// An HTTP 429 is returned as an error matching domain.ErrTooManyRequests.
func (c *Client) WaitForBuild(ctx context.Context, ownerID string, id domain.BuildID, onUpdate domain.UpdateFunc) (domain.Build, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last domain.Build
	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		b, err := c.GetBuild(ctx, ownerID, id)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}

		// The service returns the full event log on every poll.
		if len(b.Events) < delivered {
			delivered = len(b.Events)
		}
		fresh := b.Events[delivered:]
		delivered = len(b.Events)
		last = b

		if onUpdate != nil {
			onUpdate(b, fresh)
		}
		if b.Status.IsTerminal() {
			c.log.Debug().Str("build_id", string(id)).Str("status", string(b.Status)).Msg("build reached terminal status")
			return b, nil
		}
		timer.Reset(c.pollInterval)
	}
}
