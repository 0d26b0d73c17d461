package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// SnapshotJobName is the scheduler name of the achievement snapshot job
const SnapshotJobName = "achievement_snapshot"

const snapshotLockKey = "pipeline-api:jobs:" + SnapshotJobName

// ErrLockHeld is returned when another replica is already running the job
var ErrLockHeld = errors.New("job lock is held by another instance")

// Locker grants a single replica the right to run a job
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker implements Locker with a Redis lock
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lock.Release, nil
}

// LocalLocker is used when Redis is not configured and only one replica runs
type LocalLocker struct{}

func (LocalLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// SnapshotRunner stores achievement snapshots for a window
type SnapshotRunner interface {
	Run(ctx context.Context, windowStart, windowEnd time.Time, measure domain.TargetMeasure, takenAt time.Time) (*service.SnapshotResult, error)
}

// SnapshotJob snapshots achievement of every active profile for the
// previous calendar month, for both revenue and margin
type SnapshotJob struct {
	runner  SnapshotRunner
	locker  Locker
	logger  *zap.Logger
	timeout time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

func NewSnapshotJob(runner SnapshotRunner, locker Locker, logger *zap.Logger, timeout, lockTTL time.Duration) *SnapshotJob {
	return &SnapshotJob{
		runner:  runner,
		locker:  locker,
		logger:  logger,
		timeout: timeout,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// Run is the scheduler entry point
func (j *SnapshotJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.RunOnce(ctx); err != nil && !errors.Is(err, ErrLockHeld) {
		j.logger.Error("achievement snapshot job failed", zap.Error(err))
	}
}

// RunOnce takes the job lock and snapshots the previous month.
// It returns ErrLockHeld without doing any work when another replica holds the lock.
func (j *SnapshotJob) RunOnce(ctx context.Context) error {
	release, err := j.locker.Obtain(ctx, snapshotLockKey, j.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		j.logger.Info("achievement snapshot skipped, another instance holds the lock")
		return err
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			j.logger.Warn("failed to release snapshot lock", zap.Error(err))
		}
	}()

	takenAt := j.now().UTC()
	windowStart, windowEnd := service.PreviousMonth(takenAt)

	var errs []error
	for _, measure := range []domain.TargetMeasure{domain.MeasureRevenue, domain.MeasureMargin} {
		result, err := j.runner.Run(ctx, windowStart, windowEnd, measure, takenAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", measure, err))
			continue
		}
		j.logger.Info("achievement snapshot completed",
			zap.String("measure", string(measure)),
			zap.Int("snapshots", result.Snapshots),
			zap.String("report_key", result.ReportKey),
		)
	}
	return errors.Join(errs...)
}
