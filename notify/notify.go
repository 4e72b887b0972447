package notify

import (
	"context"
	"errors"
	"strconv"

	"mediadrop/models"
)

type Item struct {
	MediaID   uint64 `json:"media_id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	SubLabel  string `json:"subfolder,omitempty"`
}

// Batch is what one contributor uploaded to an album within the flush window
type Batch struct {
	Album       *models.Album
	Contributor string
	Items       []Item
}

func (b *Batch) Title() string {
	return "Album \"" + b.Album.Name + "\""
}

func (b *Batch) Summary() string {
	what := strconv.Itoa(len(b.Items)) + " new file"
	if len(b.Items) != 1 {
		what += "s"
	}
	return b.Contributor + " added " + what
}

type Notifier interface {
	NotifyBatch(ctx context.Context, batch Batch) error
}

// Multi sends through every configured notifier and joins the errors
type Multi []Notifier

func (m Multi) NotifyBatch(ctx context.Context, batch Batch) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyBatch(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) NotifyBatch(context.Context, Batch) error {
	return nil
}
