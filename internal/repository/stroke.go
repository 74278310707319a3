package repository

import (
	"context"

	"github.com/Yashhh999/hackaboard/internal/domain"
)

// StrokeRepository 定义了笔画的追加式存储。
// 笔画只有两种变更：逐条追加和按房间整体删除（Reset）。
type StrokeRepository interface {
	// Append 追加一条笔画记录。
	Append(ctx context.Context, stroke *domain.Stroke) error

	// ListByRoom 返回指定房间的全部笔画，按创建时间升序，
	// 同一时间戳按插入顺序（主键）稳定排序。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.Stroke, error)

	// CountByRoom 返回指定房间的笔画数量。
	CountByRoom(ctx context.Context, roomID uint) (int64, error)

	// DeleteAllByRoom 一次性批量删除指定房间的全部笔画。
	// 必须是单条批量操作，避免出现对外可见的"清了一半"状态。
	DeleteAllByRoom(ctx context.Context, roomID uint) error
}
