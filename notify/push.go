package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const NotificationTypeNewMediaInAlbum = "album"

type Notification struct {
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// PushNotifier posts batches to a push server's /send endpoint
type PushNotifier struct {
	server     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPushNotifier(server string, log *zap.Logger) *PushNotifier {
	return &PushNotifier{
		server:     server,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (p *PushNotifier) NotifyBatch(ctx context.Context, batch Batch) error {
	notification := Notification{
		Type:  NotificationTypeNewMediaInAlbum,
		Title: batch.Title(),
		Body:  batch.Summary(),
		Data: map[string]string{
			"album": strconv.FormatUint(batch.Album.ID, 10),
			"count": strconv.Itoa(len(batch.Items)),
		},
	}
	return p.Send(ctx, &notification)
}

func (p *PushNotifier) Send(ctx context.Context, notification *Notification) error {
	buf := bytes.Buffer{}
	if err := json.NewEncoder(&buf).Encode(notification); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.server+"/send", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Warn("push notification failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.log.Warn("push notification rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("push server status: %d", resp.StatusCode)
	}
	return nil
}
