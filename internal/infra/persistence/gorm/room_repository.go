package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/Yashhh999/hackaboard/internal/domain"
	"github.com/Yashhh999/hackaboard/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByName 实现根据房间名查找房间。
// MySQL 默认排序规则不区分大小写，这里用 BINARY 保证房间名严格匹配。
func (r *GormRoomRepository) FindByName(ctx context.Context, name string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("BINARY name = ?", name).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by name '%s': %w", name, err)
	}
	return &room, nil
}

// Save 实现保存房间信息（创建或更新）
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		// 唯一约束冲突映射为仓库错误 (MySQL error 1062)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, name: %s): %w", room.ID, room.Name, err)
	}
	return nil
}

// Delete 实现删除房间记录
func (r *GormRoomRepository) Delete(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Delete(room).Error
	if err != nil {
		return fmt.Errorf("gorm: delete room (id: %d, name: %s): %w", room.ID, room.Name, err)
	}
	return nil
}

// ExistsByName 实现检查房间名是否已存在
func (r *GormRoomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("BINARY name = ?", name).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by name '%s': %w", name, err)
	}
	return count > 0, nil
}

// ListAll 实现返回全部房间，按最近更新时间倒序
func (r *GormRoomRepository) ListAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms: %w", err)
	}
	return rooms, nil
}
