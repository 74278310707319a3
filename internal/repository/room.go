package repository

import (
	"context"

	"github.com/Yashhh999/hackaboard/internal/domain"
)

// RoomRepository 定义了房间目录数据的存储和检索操作。
type RoomRepository interface {
	// FindByName 根据房间名查找房间（区分大小写）。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByName(ctx context.Context, name string) (*domain.Room, error)

	// Save 保存房间信息。房间已存在（基于 ID）则更新，否则创建。
	// 房间名冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, room *domain.Room) error

	// Delete 删除房间记录。
	Delete(ctx context.Context, room *domain.Room) error

	// ExistsByName 检查房间名是否已被占用。
	ExistsByName(ctx context.Context, name string) (bool, error)

	// ListAll 返回全部房间，按最近更新时间倒序。
	ListAll(ctx context.Context) ([]domain.Room, error)
}
