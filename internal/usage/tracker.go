package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/j0lvera/relaybot/internal/config"
)

// TrackerConfig holds prices and the per-user budget.
type TrackerConfig struct {
	TokenPrice         float64 // USD per 1K tokens
	ImagePrice         float64 // USD per image
	TranscriptionPrice float64 // USD per minute of audio
	Budget             float64 // USD per period, <= 0 means unlimited
	BudgetPeriod       string
}

// Stats is the usage report of a single user.
type Stats struct {
	Today   Totals `json:"today"`
	Month   Totals `json:"month"`
	AllTime Totals `json:"all_time"`
}

// Tracker records what users spend and checks it against their budget.
type Tracker struct {
	store  Store
	config TrackerConfig
	now    func() time.Time
}

func NewTracker(store Store, cfg TrackerConfig) *Tracker {
	return &Tracker{
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

// AddChatTokens records tokens spent on a chat completion.
func (t *Tracker) AddChatTokens(ctx context.Context, userID int64, userName string, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	return t.store.Add(ctx, Event{
		UserID:   userID,
		UserName: userName,
		Kind:     KindChatTokens,
		Amount:   tokens,
		Cost:     float64(tokens) / 1000 * t.config.TokenPrice,
		At:       t.now(),
	})
}

// AddImage records one generated image.
func (t *Tracker) AddImage(ctx context.Context, userID int64, userName string) error {
	return t.store.Add(ctx, Event{
		UserID:   userID,
		UserName: userName,
		Kind:     KindImages,
		Amount:   1,
		Cost:     t.config.ImagePrice,
		At:       t.now(),
	})
}

// AddTranscription records seconds of transcribed audio, rounded up.
func (t *Tracker) AddTranscription(ctx context.Context, userID int64, userName string, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	return t.store.Add(ctx, Event{
		UserID:   userID,
		UserName: userName,
		Kind:     KindTranscription,
		Amount:   int(math.Ceil(seconds)),
		Cost:     seconds / 60 * t.config.TranscriptionPrice,
		At:       t.now(),
	})
}

// Stats returns today's, this month's and the all-time totals of a user.
func (t *Tracker) Stats(ctx context.Context, userID int64) (Stats, error) {
	now := t.now()

	var (
		s   Stats
		err error
	)
	if s.Today, err = t.store.Sum(ctx, userID, startOfDay(now), time.Time{}); err != nil {
		return Stats{}, err
	}
	if s.Month, err = t.store.Sum(ctx, userID, startOfMonth(now), time.Time{}); err != nil {
		return Stats{}, err
	}
	if s.AllTime, err = t.store.Sum(ctx, userID, time.Time{}, time.Time{}); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Remaining returns how much of the budget the user has left in the
// current period. Without a budget it is +Inf.
func (t *Tracker) Remaining(ctx context.Context, userID int64) (float64, error) {
	if t.config.Budget <= 0 {
		return math.Inf(1), nil
	}

	var from time.Time
	now := t.now()
	switch t.config.BudgetPeriod {
	case config.BudgetDaily:
		from = startOfDay(now)
	case config.BudgetAllTime:
	default:
		from = startOfMonth(now)
	}

	totals, err := t.store.Sum(ctx, userID, from, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("unable to compute budget: %w", err)
	}
	return t.config.Budget - totals.Cost, nil
}

// WithinBudget reports whether the user may spend more.
func (t *Tracker) WithinBudget(ctx context.Context, userID int64) (bool, error) {
	left, err := t.Remaining(ctx, userID)
	if err != nil {
		return false, err
	}
	return left > 0, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
