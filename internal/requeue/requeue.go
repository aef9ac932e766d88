// Package requeue reconciles tickets stuck without a queue or agent: a
// recurring pass moves every stale pending unassigned ticket into its
// company's default queue and broadcasts the change.
package requeue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wadesk/wadesk/internal/models"
	"github.com/wadesk/wadesk/internal/notify"
	"gorm.io/gorm"
)

// DefaultStaleThreshold is how long a pending unassigned ticket must sit
// idle before a pass picks it up.
const DefaultStaleThreshold = time.Minute

// Scheduler runs requeue passes. Passes are serialized: an invocation that
// overlaps a still-running pass is skipped, not queued.
type Scheduler struct {
	db        *gorm.DB
	notifier  notify.Broadcaster
	threshold time.Duration
	log       zerolog.Logger

	runMu sync.Mutex
}

// Opts holds parameters for New.
type Opts struct {
	DB             *gorm.DB
	Notifier       notify.Broadcaster
	StaleThreshold time.Duration
	Logger         zerolog.Logger
}

// New creates a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("requeue: db is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("requeue: notifier is required")
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	return &Scheduler{
		db:        opts.DB,
		notifier:  opts.Notifier,
		threshold: opts.StaleThreshold,
		log:       opts.Logger,
	}, nil
}

// Run executes one pass and returns how many tickets were requeued.
//
// A failure of the selection query ends the pass with an error; every
// per-ticket failure (no queue, update error, broadcast error) is logged
// and the pass moves on to the next ticket.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	if !s.runMu.TryLock() {
		s.log.Warn().Msg("previous requeue pass still in progress, skipping")
		return 0, nil
	}
	defer s.runMu.Unlock()

	cutoff := time.Now().Add(-s.threshold)
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", models.TicketPending, cutoff).
		Where("(queue_id = 0 OR queue_id IS NULL) AND (user_id = 0 OR user_id IS NULL)").
		Find(&tickets).Error
	if err != nil {
		return 0, fmt.Errorf("requeue: select stale tickets: %w", err)
	}

	processed := 0
	for _, ticket := range tickets {
		if err := ctx.Err(); err != nil {
			return processed, fmt.Errorf("requeue: pass interrupted: %w", err)
		}
		if s.requeueTicket(ctx, ticket) {
			processed++
		}
	}

	s.log.Info().Int("matched", len(tickets)).Int("requeued", processed).Msg("requeue pass complete")
	return processed, nil
}

// requeueTicket routes one orphaned ticket and reports whether the update
// was applied.
func (s *Scheduler) requeueTicket(ctx context.Context, ticket models.Ticket) bool {
	var queue models.Queue
	err := s.db.WithContext(ctx).
		Where("company_id = ?", ticket.CompanyID).
		Order("id ASC").
		First(&queue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Uint("ticket", ticket.ID).Uint("company", ticket.CompanyID).Msg("no queue available for company")
		return false
	}
	if err != nil {
		s.log.Error().Err(err).Uint("ticket", ticket.ID).Msg("default queue lookup failed")
		return false
	}

	var binding models.ChannelQueue
	var bindingPtr *models.ChannelQueue
	err = s.db.WithContext(ctx).Where("queue_id = ?", queue.ID).First(&binding).Error
	switch {
	case err == nil:
		bindingPtr = &binding
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No binding: the ticket keeps its current channel.
	default:
		s.log.Error().Err(err).Uint("ticket", ticket.ID).Msg("channel binding lookup failed")
	}

	fields := Decide(&queue, bindingPtr)
	if err := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", ticket.ID).
		Updates(fields).Error; err != nil {
		s.log.Error().Err(err).Uint("ticket", ticket.ID).Msg("ticket update failed")
		return false
	}

	s.log.Info().Uint("ticket", ticket.ID).Uint("queue", queue.ID).Msg("ticket requeued")

	// Best-effort: the update above already committed, so a broadcast
	// failure must not fail the ticket.
	rooms := []string{
		ticket.Status,
		"notification",
		strconv.FormatUint(uint64(ticket.ID), 10),
	}
	event := fmt.Sprintf("company-%d-ticket", ticket.CompanyID)
	payload := map[string]any{
		"action": "update",
		"ticket": ticket,
	}
	if err := s.notifier.Broadcast(rooms, event, payload); err != nil {
		s.log.Error().Err(err).Uint("ticket", ticket.ID).Msg("requeue broadcast failed")
	}

	return true
}
