// Package orchestrator informs the external process orchestrator that approval
// chains started. Delivery is best effort: one attempt per call and failures
// are logged, never returned.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

const (
	processInstancesPath = "/v1/process-instances"
	topologyPath         = "/v1/topology"
	defaultTimeout       = 5 * time.Second
)

// HTTPNotifier posts process-started messages to the orchestrator REST gateway
type HTTPNotifier struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPNotifier creates a notifier for the gateway at baseURL
func NewHTTPNotifier(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// NotifyStarted sends msg to the orchestrator once
func (n *HTTPNotifier) NotifyStarted(ctx context.Context, msg entity.ProcessStarted) {
	if err := n.post(ctx, msg); err != nil {
		n.logger.Warn("Failed to notify orchestrator",
			zap.String("submission_id", msg.SubmissionID),
			zap.String("form_slug", msg.FormSlug),
			zap.Error(err))
		return
	}
	n.logger.Debug("Orchestrator notified",
		zap.String("submission_id", msg.SubmissionID))
}

func (n *HTTPNotifier) post(ctx context.Context, msg entity.ProcessStarted) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encoding message: %v", domainwf.ErrNotifierFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+processInstancesPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrNotifierFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrNotifierFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", domainwf.ErrNotifierFailure, resp.StatusCode)
	}
	return nil
}

// HealthCheck probes the gateway topology endpoint
func (n *HTTPNotifier) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+topologyPath, nil)
	if err != nil {
		return false
	}
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Debug("Orchestrator health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Gateway returns the base URL
func (n *HTTPNotifier) Gateway() string {
	return n.baseURL
}

var _ port.ProcessNotifier = (*HTTPNotifier)(nil)
