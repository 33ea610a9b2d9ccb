package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/medialink-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService surfaces terminal outcomes as desktop notifications.
// Best-effort: a failed notification never affects the session result.
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{config: config, logger: logger}
}

// NotifyOutcome announces a session's terminal outcome
func (n *NotificationService) NotifyOutcome(sessionID string, outcome domain.Outcome) {
	var title string
	switch outcome.Tag {
	case domain.OutcomeSuccess:
		title = "Download complete"
	case domain.OutcomePartialSuccess:
		title = "Download saved (partial)"
	case domain.OutcomeCanceled:
		title = "Download canceled"
	default:
		title = "Download failed"
	}
	if err := n.Send(title, outcome.Message); err != nil {
		n.logger.Warn("failed to send notification",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Send sends a notification using the configured method
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		return nil
	}

	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.Command("osascript", "-e", script).Run()
	case "notify-send":
		args := []string{title}
		if message != "" {
			args = append(args, message)
		}
		return exec.Command("notify-send", args...).Run()
	default:
		n.logger.Warn("unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}
