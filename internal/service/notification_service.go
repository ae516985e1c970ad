package service

import (
	"context"
	"time"

	"liquidity/internal/models"

	"go.uber.org/zap"
)

// NotificationService - журнал уведомлений и их доставка операторам.
// Publish вызывается движком синхронно внутри цикла, поэтому запись
// в журнал не должна останавливать обработку: ошибка записи логируется,
// рассылка по WebSocket выполняется в любом случае.
type NotificationService struct {
	notifRepo NotificationRepositoryInterface
	hub       NotificationHub
	log       *zap.Logger
	retention time.Duration
}

// NewNotificationService создает новый экземпляр сервиса уведомлений
func NewNotificationService(notifRepo NotificationRepositoryInterface, hub NotificationHub, retention time.Duration, log *zap.Logger) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		hub:       hub,
		log:       log,
		retention: retention,
	}
}

// Publish сохраняет уведомление и рассылает его подключённым операторам
func (s *NotificationService) Publish(notif *models.Notification) {
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}
	if notif.Severity == "" {
		notif.Severity = models.SeverityInfo
	}

	if err := s.notifRepo.Create(notif); err != nil {
		s.log.Error("failed to persist notification",
			zap.String("type", notif.Type),
			zap.Error(err),
		)
	}

	if s.hub != nil {
		s.hub.BroadcastNotification(notif)
	}

	s.log.Debug("notification published",
		zap.String("type", notif.Type),
		zap.String("severity", notif.Severity),
		zap.String("message", notif.Message),
	)
}

// GetNotifications возвращает последние уведомления (новые первыми)
func (s *NotificationService) GetNotifications(limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.notifRepo.GetRecent(limit)
}

// Count возвращает размер журнала
func (s *NotificationService) Count() (int, error) {
	return s.notifRepo.Count()
}

// RunRetention периодически удаляет уведомления старше retention
func (s *NotificationService) RunRetention(ctx context.Context, interval time.Duration) {
	if s.retention <= 0 {
		return
	}
	s.log.Info("notification retention loop started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("notification retention loop stopped")
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *NotificationService) cleanup() {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.notifRepo.DeleteOlderThan(cutoff)
	if err != nil {
		s.log.Error("notification cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.log.Info("old notifications deleted",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
