// Package stats reports daily vault activity to the studio core. Reporting
// is fail-silent: a down stats endpoint must never affect gameplay.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jikoent/cipher-squad-backend/internal/store"
	"github.com/jikoent/cipher-squad-backend/internal/vault"
)

const reportInterval = time.Hour

type payload struct {
	GameID    string           `json:"game_id"`
	Timestamp string           `json:"timestamp"`
	Metrics   store.DailyStats `json:"metrics"`
}

type Reporter struct {
	store  *store.Store
	url    string
	key    string
	client *http.Client
	log    *zap.Logger
}

func NewReporter(s *store.Store, url, key string, log *zap.Logger) *Reporter {
	return &Reporter{
		store:  s,
		url:    url,
		key:    key,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log.Named("stats"),
	}
}

// Run reports periodically until the context ends. Skips silently when the
// endpoint is not configured.
func (r *Reporter) Run(ctx context.Context) error {
	if r.url == "" || r.key == "" {
		r.log.Info("stats reporting disabled: missing endpoint config")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.reportOnce(ctx, now)
		}
	}
}

func (r *Reporter) reportOnce(ctx context.Context, now time.Time) {
	date := vault.DayKey(now)
	metrics, err := r.store.GetDailyStats(ctx, date)
	if err != nil {
		r.log.Warn("stats query failed", zap.Error(err))
		return
	}

	body, err := json.Marshal(payload{
		GameID:    "cipher-squad",
		Timestamp: now.UTC().Format(time.RFC3339),
		Metrics:   metrics,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Studio-Stats-Key", r.key)

	res, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("stats report failed", zap.Error(err))
		return
	}
	res.Body.Close()
	r.log.Info("stats reported", zap.String("date", date), zap.Int("status", res.StatusCode))
}
