package processing

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Job is a maintenance task run on a schedule
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron specs ("@daily", "@every 10m", "0 3 * * *").
// A job still running when its next turn comes is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProcessingTask{})
}

func NewScheduler(log *zap.Logger) *Scheduler {
	cronLog := cronLogger{log.Sugar()}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		log:  log,
	}
}

// Add schedules job. An empty spec leaves the job disabled.
func (s *Scheduler) Add(spec string, job Job) error {
	if spec == "" {
		s.log.Info("job disabled", zap.String("job", job.Name()))
		return nil
	}
	_, err := s.cron.AddJob(spec, s.wrap(job))
	return err
}

// wrap logs every execution with its own id and keeps a panicking job from taking the server down
func (s *Scheduler) wrap(job Job) cron.Job {
	return cron.FuncJob(func() {
		log := s.log.With(zap.String("job", job.Name()), zap.String("execution_id", uuid.NewString()))
		defer func() {
			if r := recover(); r != nil {
				log.Error("job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		start := time.Now()
		if err := job.Run(context.Background()); err != nil {
			log.Error("job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
			return
		}
		log.Debug("job finished", zap.Duration("duration", time.Since(start)))
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
