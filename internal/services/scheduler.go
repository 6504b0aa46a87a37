package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

const (
	leaderboardTop       = 100
	streakReminderPoll   = 1 * time.Hour
	streakReminderWindow = 18 // UTC hour after which reminders go out
)

// Scheduler runs the periodic background loops: leaderboard rebuilds and
// end-of-day streak reminder emails.
type Scheduler struct {
	leaderboardRepo     *repository.LeaderboardRepo
	userRepo            *repository.UserRepo
	email               *EmailService
	queue               *redis.Client
	leaderboardInterval time.Duration
	stopChan            chan struct{}
}

func NewScheduler(
	leaderboardRepo *repository.LeaderboardRepo,
	userRepo *repository.UserRepo,
	email *EmailService,
	queue *redis.Client,
	leaderboardInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		leaderboardRepo:     leaderboardRepo,
		userRepo:            userRepo,
		email:               email,
		queue:               queue,
		leaderboardInterval: leaderboardInterval,
		stopChan:            make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.loop(s.leaderboardInterval, s.rebuildLeaderboards)
	go s.loop(streakReminderPoll, s.sendStreakReminders)

	log.Printf("Scheduler started (leaderboard rebuild every %s)", s.leaderboardInterval)
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *Scheduler) loop(interval time.Duration, runFn func(ctx context.Context, now time.Time)) {
	// Run on startup as well as by interval.
	runFn(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			runFn(context.Background(), time.Now().UTC())
		}
	}
}

func (s *Scheduler) rebuildLeaderboards(ctx context.Context, now time.Time) {
	for _, period := range []string{models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly, models.PeriodAllTime} {
		for _, metric := range []string{
			models.MetricStudyTime,
			models.MetricXP,
			models.MetricQuizScore,
			models.MetricStreak,
			models.MetricDocumentsRead,
		} {
			if err := s.leaderboardRepo.Rebuild(ctx, period, metric, leaderboardTop); err != nil {
				log.Printf("leaderboard rebuild failed (%s/%s): %v", period, metric, err)
			}
		}
	}
}

func (s *Scheduler) sendStreakReminders(ctx context.Context, now time.Time) {
	if now.Hour() < streakReminderWindow {
		return
	}

	candidates, err := s.userRepo.ListStreakReminderCandidates(ctx)
	if err != nil {
		log.Printf("streak reminders: failed to list candidates: %v", err)
		return
	}

	for _, user := range candidates {
		// One reminder per user per day, deduped across instances.
		dedupeKey := fmt.Sprintf("streak_reminder:%s:%s", user.ID, now.Format("2006-01-02"))
		sent, err := s.queue.SetNX(ctx, dedupeKey, "1", 26*time.Hour).Result()
		if err != nil || !sent {
			continue
		}

		if err := s.email.SendStreakReminder(user.Email, user.Name, user.StudyStreak); err != nil {
			log.Printf("streak reminders: failed to send to %s: %v", user.Email, err)
		}
	}
}
