package simulator

import (
	"fmt"
)

// Atomic runs fn as one unit: every ledger change made by fn is reverted if it fails.
func (l *Ledger) Atomic(fn func() error) error {
	snapID := l.Snapshot()
	if err := fn(); err != nil {
		if rerr := l.RevertToSnapshot(snapID); rerr != nil {
			return fmt.Errorf("%w (revert failed: %v)", err, rerr)
		}
		return err
	}
	l.discard(snapID)
	return nil
}

// ExecuteBundle runs steps atomically; all succeed or all are reverted
func (c *Chain) ExecuteBundle(steps ...Step) (*BundleResult, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyBundle
	}

	result := &BundleResult{Success: true, RevertedAt: -1}
	err := c.Atomic(func() error {
		for i, step := range steps {
			c.log.Debug().Int("step", i+1).Int("of", len(steps)).Str("name", step.Name).Msg("executing bundle step")
			if err := step.Run(); err != nil {
				result.RevertedAt = i
				return fmt.Errorf("bundle step %d (%s): %w", i, step.Name, err)
			}
			result.Completed++
		}
		return nil
	})
	if err != nil {
		c.log.Debug().Err(err).Int("revertedAt", result.RevertedAt).Msg("bundle reverted")
		result.Success = false
		result.Completed = 0
		result.Err = err
		return result, nil
	}

	c.log.Debug().Int("steps", len(steps)).Msg("bundle executed")
	return result, nil
}
