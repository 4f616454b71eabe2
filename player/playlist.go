package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resolver turns a playlist entry into a local file. cleanup, when not nil,
// is called once the entry has finished playing.
type Resolver func(ctx context.Context, source string) (path string, cleanup func(), err error)

const bannerPause = time.Second

// RunPlaylist plays sources in order on c. A source that cannot be resolved
// or opened is logged and skipped. Cancelling ctx ends the whole playlist
// without error.
func RunPlaylist(ctx context.Context, c *Controller, sources []string, resolve Resolver) error {
	base := c.log
	defer c.SetLogger(base)

	played := 0
	for i, src := range sources {
		if ctx.Err() != nil {
			return nil
		}
		c.SetLogger(base.With("session", uuid.NewString()))

		if i > 0 {
			if err := c.screen.Banner(fmt.Sprintf("--- Playing %d/%d: %s ---", i+1, len(sources), src)); err != nil {
				return fmt.Errorf("failed to write banner: %w", err)
			}
			if err := c.clock.Sleep(ctx, bannerPause); err != nil {
				return nil
			}
		}

		if err := c.playSource(ctx, src, resolve); err != nil {
			if ctx.Err() != nil {
				c.log.Debug("player: interrupted", "source", src, "err", err)
				return nil
			}
			if errors.Is(err, ErrSourceUnavailable) {
				c.log.Error("player: skipping source", "source", src, "err", err)
				continue
			}
			return err
		}
		played++
	}

	if played == 0 && len(sources) > 0 && ctx.Err() == nil {
		return fmt.Errorf("no playable sources: %w", ErrSourceUnavailable)
	}
	return nil
}

func (c *Controller) playSource(ctx context.Context, src string, resolve Resolver) error {
	path := src
	if resolve != nil {
		p, cleanup, err := resolve(ctx, src)
		if err != nil {
			return err
		}
		if cleanup != nil {
			defer cleanup()
		}
		path = p
	}

	c.log.Info("player: playing", "source", src)
	if err := c.SetupVideo(path); err != nil {
		return err
	}
	return c.Play(ctx)
}
