// Package session runs the client-side gameplay heartbeat: sweep expired
// locks, re-evaluate the global phase, and keep the mirror fresh via the
// poll ticker. All dependencies are injected; there is no global state.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/bootcamp"
	"github.com/jikoent/cipher-squad-backend/internal/mirror"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

type State string

const (
	StateLobby         State = "LOBBY"
	StateVaultActive   State = "VAULT_ACTIVE"
	StatePuzzleActive  State = "PUZZLE_ACTIVE"
	StateVaultComplete State = "VAULT_COMPLETE"

	// UI-facing sub-states layered over the same model.
	StateTileFocused      State = "TILE_FOCUSED"
	StateActionSubmitting State = "ACTION_SUBMITTING"
	StateErrorFeedback    State = "ERROR_FEEDBACK"

	// Offline tutorial variant.
	StateBootcamp         State = "BOOTCAMP"
	StateBootcampComplete State = "BOOTCAMP_COMPLETE"
)

// errorFeedbackMS is how long a transient error stays on screen.
const errorFeedbackMS int64 = 3000

// Fetcher is the slice of the gateway the poll loop needs.
type Fetcher interface {
	FetchVault(ctx context.Context) error
}

type Controller struct {
	userID  string
	mirror  *mirror.Store
	fetcher Fetcher
	log     *zap.Logger

	state          State
	selectedTileID string
	submitting     bool
	lastError      string
	errorUntil     int64
	bootcampMode   bool
}

func NewController(userID string, m *mirror.Store, fetcher Fetcher, log *zap.Logger) *Controller {
	return &Controller{
		userID:  userID,
		mirror:  m,
		fetcher: fetcher,
		log:     log.Named("session"),
		state:   StateLobby,
	}
}

func (c *Controller) State() State           { return c.state }
func (c *Controller) SelectedTileID() string { return c.selectedTileID }
func (c *Controller) Submitting() bool       { return c.submitting }
func (c *Controller) LastError() string      { return c.lastError }
func (c *Controller) BootcampMode() bool     { return c.bootcampMode }

// InitBootcamp switches to the offline tutorial: static content, no remote
// calls until the session is re-initialized.
func (c *Controller) InitBootcamp() {
	c.bootcampMode = true
	c.mirror.Load(bootcamp.Vault())
	c.transitionTo(StateBootcamp)
}

// Tick evaluates one heartbeat. Order matters: sweep first, then coarse
// transitions, then the lock-driven sub-state toggle.
func (c *Controller) Tick(now int64) {
	if c.userID == "" {
		return
	}

	if swept := c.mirror.SweepExpiredLocks(now); len(swept) > 0 {
		c.log.Info("expired locks swept", zap.Strings("tiles", swept))
	}

	// Transient error auto-clears back to browsing.
	if c.state == StateErrorFeedback && now >= c.errorUntil {
		c.lastError = ""
		c.transitionTo(c.browsingState())
	}

	if c.state == StateLobby && c.mirror.Size() > 0 {
		c.transitionTo(StateVaultActive)
	}

	if c.state == StateBootcamp && c.mirror.AllSolved() {
		c.transitionTo(StateBootcampComplete)
		return
	}

	if c.state == StateVaultActive || c.state == StatePuzzleActive {
		if c.mirror.AllSolved() {
			c.transitionTo(StateVaultComplete)
			return
		}

		userLock := c.mirror.FindActiveLockForUser(c.userID)
		if userLock != nil && c.state != StatePuzzleActive {
			c.transitionTo(StatePuzzleActive)
		} else if userLock == nil && c.state == StatePuzzleActive {
			c.transitionTo(StateVaultActive)
		}
	}
}

// Run drives Tick on the heartbeat interval and refreshes the mirror on the
// slower poll interval. Bootcamp mode never polls.
func (c *Controller) Run(ctx context.Context) {
	heartbeat := time.NewTicker(vault.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(vault.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-heartbeat.C:
			c.Tick(vault.NowMS(t))
		case <-poll.C:
			if c.bootcampMode {
				continue
			}
			// Off the loop goroutine so a slow server never stalls the
			// heartbeat; the gateway collapses overlapping fetches.
			go func() {
				if err := c.fetcher.FetchVault(ctx); err != nil {
					c.log.Warn("vault refresh failed", zap.Error(err))
				}
			}()
		}
	}
}

// SelectTile focuses a tile for the details view. Re-selection while
// focused is allowed (pivot).
func (c *Controller) SelectTile(tileID string) {
	switch c.state {
	case StateVaultActive, StateTileFocused, StatePuzzleActive, StateBootcamp:
		c.selectedTileID = tileID
		c.transitionTo(StateTileFocused)
	default:
		c.log.Warn("cannot select tile", zap.String("state", string(c.state)))
	}
}

func (c *Controller) ClearSelection() {
	c.selectedTileID = ""
	c.transitionTo(c.browsingState())
}

func (c *Controller) StartSubmit() {
	c.submitting = true
	c.transitionTo(StateActionSubmitting)
}

// EndSubmit returns to the focused view so the result can be shown or the
// action retried.
func (c *Controller) EndSubmit(success bool) {
	c.submitting = false
	c.transitionTo(StateTileFocused)
}

func (c *Controller) SetError(msg string, now int64) {
	c.lastError = msg
	c.errorUntil = now + errorFeedbackMS
	c.transitionTo(StateErrorFeedback)
}

func (c *Controller) browsingState() State {
	if c.bootcampMode {
		return StateBootcamp
	}
	return StateVaultActive
}

func (c *Controller) transitionTo(next State) {
	if c.state == next {
		return
	}
	c.log.Debug("transition", zap.String("from", string(c.state)), zap.String("to", string(next)))
	c.state = next
}
