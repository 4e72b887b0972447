package processing

import (
	"context"
	"errors"

	"mediadrop/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Cleaner interface {
	CleanupEmpty(ctx context.Context, tree string) (int64, error)
}

// CleanupJob removes category nodes nothing was ever stored in, e.g. left over by
// failed uploads or folders created and never used
type CleanupJob struct {
	db      *gorm.DB
	cleaner Cleaner
	// extra trees are cleaned even when no album uses them anymore
	extra []string
	log   *zap.Logger
}

func NewCleanupJob(db *gorm.DB, cleaner Cleaner, log *zap.Logger, extraTrees ...string) *CleanupJob {
	return &CleanupJob{db: db, cleaner: cleaner, extra: extraTrees, log: log}
}

func (j *CleanupJob) Name() string {
	return "category-cleanup"
}

func (j *CleanupJob) trees(ctx context.Context) ([]string, error) {
	var trees []string
	err := j.db.WithContext(ctx).Model(&models.Album{}).
		Where("category_tree <> ''").
		Distinct().Pluck("category_tree", &trees).Error
	if err != nil {
		return nil, err
	}
	for _, extra := range j.extra {
		found := false
		for _, t := range trees {
			found = found || t == extra
		}
		if !found && extra != "" {
			trees = append(trees, extra)
		}
	}
	return trees, nil
}

func (j *CleanupJob) Run(ctx context.Context) error {
	trees, err := j.trees(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, tree := range trees {
		removed, err := j.cleaner.CleanupEmpty(ctx, tree)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed > 0 {
			j.log.Info("empty categories removed", zap.String("tree", tree), zap.Int64("count", removed))
		}
	}
	return errors.Join(errs...)
}
