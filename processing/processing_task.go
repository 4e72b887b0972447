package processing

import (
	"sort"
	"strconv"
	"strings"

	"mediadrop/models"

	"go.uber.org/zap"
)

const (
	Skipped       = 0
	Done          = 2
	Failed        = 3
	FailedStorage = 4
)

// ProcessingTask remembers what background work was attempted for a media, so that
// failures are not retried forever
type ProcessingTask struct {
	MediaID uint64       `gorm:"primaryKey"`
	Media   models.Media `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Status  string       `gorm:"type:varchar(1024)"` // Contains comma-separated pairs of task and status, e.g. "thumb:2,another:0"
}

func (pt *ProcessingTask) statusToMap(log *zap.Logger) map[string]int {
	result := map[string]int{}
	if pt.Status == "" {
		return result
	}
	for _, v := range strings.Split(pt.Status, ",") {
		name, status, ok := strings.Cut(v, ":")
		if !ok {
			log.Warn("task status contains invalid chars", zap.Uint64("media", pt.MediaID), zap.String("status", pt.Status))
			continue
		}
		result[name], _ = strconv.Atoi(status)
	}
	return result
}

func (pt *ProcessingTask) updateWith(statusMap map[string]int) {
	result := make([]string, 0, len(statusMap))
	for k, v := range statusMap {
		result = append(result, k+":"+strconv.Itoa(v))
	}
	sort.Strings(result)
	pt.Status = strings.Join(result, ",")
}
