package domain

import "time"

// Room 表示一个受密码保护的共享画板房间。
// 房间名全局唯一且区分大小写；没有任何笔画的空房间也是合法的，
// 只有显式删除才会销毁房间。
type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:191;not null" json:"name"` // 创建时已 trim
	Password  string    `gorm:"type:text;not null" json:"-"`               // bcrypt 哈希，永不对外暴露
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
