package upload

import (
	"context"

	"mediadrop/models"
	"mediadrop/notify"

	"go.uber.org/zap"
)

// Flush sends one notification for what the contributor uploaded during the last FlushWindow.
// The window only approximates "the batch the client just finished": uploads older than the
// window are left out and a second flush within it reports the same files again.
// It returns the number of files included.
func (c *Coordinator) Flush(ctx context.Context, album *models.Album, owner models.Owner, contributor string) (int, error) {
	if !album.NotificationsEnabled {
		return 0, nil
	}
	since := c.Now().Add(-c.FlushWindow)
	records, err := c.Recorder.Recent(ctx, album.ID, owner, contributor, since)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	batch := notify.Batch{
		Album:       album,
		Contributor: contributor,
		Items:       make([]notify.Item, 0, len(records)),
	}
	for _, r := range records {
		batch.Items = append(batch.Items, notify.Item{
			MediaID:   r.MediaID,
			Name:      r.Media.Name,
			MediaType: r.Media.MediaType,
			Size:      r.Media.Size,
			SubLabel:  r.SubLabel,
		})
	}
	if err = c.Notifier.NotifyBatch(ctx, batch); err != nil {
		return 0, err
	}
	c.Log.Info("batch notification sent", zap.Uint64("album", album.ID), zap.String("contributor", contributor), zap.Int("files", len(records)))
	return len(records), nil
}
