package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/service"
)

// StartNotificationWorker registers the escalation, auto-close, assignment
// and SLA notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification handlers registered")
}
