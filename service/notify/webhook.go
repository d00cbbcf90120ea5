package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

type webhookService struct {
	CfgSvc config.IService
	Client *http.Client
}

// NewWebhook posts payloads as JSON to the configured notify URL. Without a
// URL it falls back to the fake.
func NewWebhook(cfgsvc config.IService) IService {
	if cfgsvc.GetNotifyURL() == "" {
		return NewFake(cfgsvc)
	}

	return &webhookService{
		CfgSvc: cfgsvc,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (svc *webhookService) Post(payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("marshaling notification: %w", err)
	}

	url := svc.CfgSvc.GetNotifyURL()
	resp, err := svc.Client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("posting notification to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return xerrors.Errorf("posting notification to %s: status %d", url, resp.StatusCode)
	}

	lgr.Logger.Debug("notification posted", slog.String("url", url), slog.Int("status", resp.StatusCode))
	return nil
}
