package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/model"
	"github.com/chatstealth/server-go/internal/repository"
)

const sweepTimeout = 30 * time.Second

// ExpiryNotifier pushes expiry notices into the live fan-out.
type ExpiryNotifier interface {
	NotifyExpired(ctx context.Context, sessionID string, messageIDs []string) error
	HasSession(sessionID string) bool
}

// SessionDestroyer removes a session everywhere. Must be idempotent.
type SessionDestroyer interface {
	Destroy(ctx context.Context, sessionID string) error
}

// Sweeper periodically reaps expired messages and sessions, telling
// connected clients which message ids just vanished.
type Sweeper struct {
	messageRepo repository.MessageRepository
	sessionRepo repository.SessionRepository
	notifier    ExpiryNotifier
	destroyer   SessionDestroyer
	interval    time.Duration
	done        chan struct{}
}

func NewSweeper(
	messageRepo repository.MessageRepository,
	sessionRepo repository.SessionRepository,
	notifier ExpiryNotifier,
	destroyer SessionDestroyer,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		messageRepo: messageRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		destroyer:   destroyer,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
	log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.done)
	log.Info().Msg("expiry sweeper stopped")
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one pass. Exported so callers can force a pass in tests
// and admin tooling without waiting out the ticker.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.sweepMessages(ctx)
	s.sweepSessions(ctx)
}

func (s *Sweeper) sweepMessages(ctx context.Context) {
	expired, err := s.messageRepo.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to reap expired messages")
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Info().Int("count", len(expired)).Msg("reaped expired messages")

	for sessionID, ids := range groupBySession(expired) {
		// Only sessions with live connections need the push; everyone else
		// sees the shorter history on their next fetch.
		if !s.notifier.HasSession(sessionID) {
			continue
		}
		if err := s.notifier.NotifyExpired(ctx, sessionID, ids); err != nil {
			log.Warn().Err(err).
				Str("sessionId", sessionID).
				Msg("failed to announce expired messages")
		}
	}
}

func (s *Sweeper) sweepSessions(ctx context.Context) {
	ids, err := s.sessionRepo.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list expired sessions")
		return
	}

	for _, id := range ids {
		if err := s.destroyer.Destroy(ctx, id); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to destroy expired session")
		}
	}

	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("destroyed expired sessions")
	}
}

func groupBySession(expired []model.ExpiredMessage) map[string][]string {
	grouped := make(map[string][]string)
	for _, m := range expired {
		grouped[m.SessionID] = append(grouped[m.SessionID], m.ID)
	}
	return grouped
}
