package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"wfm-core/errs"
)

// DoctorScheduleEntry is one change of a doctor-work-type workday, POSTed
// to the configured webhook after approve commits.
type DoctorScheduleEntry struct {
	Dt            string `json:"dt"`
	Username      string `json:"username"`
	ShopCode      string `json:"shop_code"`
	DttmWorkStart string `json:"dttm_work_start"`
	DttmWorkEnd   string `json:"dttm_work_end"`
	Action        string `json:"action"`
}

type DoctorWebhookJob struct {
	URL     string                `json:"url"`
	Entries []DoctorScheduleEntry `json:"entries"`
}

// WebhookSender delivers outbound webhook calls with a bounded timeout.
// Failures are surfaced so the queue can retry them.
type WebhookSender struct {
	client *http.Client
	log    *logrus.Logger
}

func NewWebhookSender(timeout time.Duration, log *logrus.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (s *WebhookSender) Send(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %s", errs.ErrUpstreamTimeout, url)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", url, resp.StatusCode)
	}

	s.log.WithField("url", url).Debug("Webhook delivered")
	return nil
}

// DoctorWebhookHandler returns the queue handler delivering doctor-schedule
// payloads.
func (s *WebhookSender) DoctorWebhookHandler() Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var job DoctorWebhookJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		return s.Send(ctx, job.URL, job.Entries)
	}
}
