package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/businessgohq/bridge/internal/config"
)

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Sender delivers text messages through the transport gateway instance
// the webhook traffic arrived on.
type Sender struct {
	cfg        config.WhatsAppConfig
	logger     *slog.Logger
	httpClient *http.Client
}

func NewSender(log *slog.Logger, cfg config.WhatsAppConfig) *Sender {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		cfg:        cfg,
		logger:     log.With(slog.String("service", "whatsapp")),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendText posts a text message to the phone through the named instance.
func (s *Sender) SendText(ctx context.Context, instanceID, phone, text string) error {
	instance, ok := s.cfg.Instance(instanceID)
	if !ok {
		return fmt.Errorf("unknown instance %q", instanceID)
	}
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("phone is required")
	}

	body, err := json.Marshal(sendTextRequest{Number: phone, Text: text})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}
	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(instance.BaseURL, "/"), instance.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", instance.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("send text rejected",
			slog.String("instance", instance.ID),
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", prefix(string(respBody), 200)),
		)
		return fmt.Errorf("send text status %d", resp.StatusCode)
	}
	s.logger.Debug("text delivered",
		slog.String("instance", instance.ID),
		slog.String("phone", phone),
	)
	return nil
}

func prefix(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
