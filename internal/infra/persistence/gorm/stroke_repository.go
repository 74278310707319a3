package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Yashhh999/hackaboard/internal/domain"
)

// GormStrokeRepository 是 StrokeRepository 接口的 GORM 实现
type GormStrokeRepository struct {
	db *gorm.DB
}

// NewGormStrokeRepository 创建 GormStrokeRepository 实例
func NewGormStrokeRepository(db *gorm.DB) *GormStrokeRepository {
	if db == nil {
		panic("database connection cannot be nil for GormStrokeRepository")
	}
	return &GormStrokeRepository{db: db}
}

// Append 实现追加一条笔画记录
func (r *GormStrokeRepository) Append(ctx context.Context, stroke *domain.Stroke) error {
	err := r.db.WithContext(ctx).Create(stroke).Error
	if err != nil {
		return fmt.Errorf("gorm: append stroke for room %d: %w", stroke.RoomID, err)
	}
	return nil
}

// ListByRoom 实现按创建顺序返回指定房间的全部笔画。
// created_at 相同的记录按主键升序，保证回放顺序稳定。
func (r *GormStrokeRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.Stroke, error) {
	var strokes []domain.Stroke
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&strokes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list strokes for room %d: %w", roomID, err)
	}
	return strokes, nil
}

// CountByRoom 实现统计指定房间的笔画数量
func (r *GormStrokeRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Stroke{}).
		Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count strokes for room %d: %w", roomID, err)
	}
	return count, nil
}

// DeleteAllByRoom 实现单条批量删除指定房间的全部笔画
func (r *GormStrokeRepository) DeleteAllByRoom(ctx context.Context, roomID uint) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&domain.Stroke{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete strokes for room %d: %w", roomID, err)
	}
	return nil
}
