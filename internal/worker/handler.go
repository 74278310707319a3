package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/repository"
	"github.com/Yashhh999/hackaboard/internal/tasks"
)

// StrokePersistHandler 处理笔画持久化任务
type StrokePersistHandler struct {
	strokeRepo repository.StrokeRepository
}

// NewStrokePersistHandler 创建 Handler 实例
func NewStrokePersistHandler(strokeRepo repository.StrokeRepository) *StrokePersistHandler {
	if strokeRepo == nil {
		panic("StrokeRepository cannot be nil for StrokePersistHandler")
	}
	return &StrokePersistHandler{strokeRepo: strokeRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *StrokePersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.StrokePersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal stroke persist payload")
		// 载荷损坏重试也不会成功
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	stroke := payload.Stroke
	if err := h.strokeRepo.Append(ctx, &stroke); err != nil {
		logrus.WithError(err).WithField("room_id", stroke.RoomID).
			Error("Failed to persist stroke")
		return fmt.Errorf("append stroke for room %d: %w", stroke.RoomID, err)
	}

	logrus.WithFields(logrus.Fields{
		"room_id":   stroke.RoomID,
		"is_eraser": stroke.IsEraser,
	}).Debug("Stroke persisted")
	return nil
}
