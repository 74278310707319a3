package domain

import "time"

// Stroke 表示画板上的一条线段（或擦除）记录，归属于唯一的房间。
// Stroke 一经写入不可修改：笔画集合只能整体追加或随 Reset 整体删除，
// 不存在按 ID 的局部修改或删除。
type Stroke struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_room_created;not null" json:"roomId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	PrevX     float64   `json:"prevX"`
	PrevY     float64   `json:"prevY"`
	Color     string    `gorm:"size:50;not null" json:"color"`
	LineWidth float64   `gorm:"not null" json:"lineWidth"`
	IsEraser  bool      `gorm:"default:false" json:"isEraser"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_room_created" json:"createdAt"`

	// 删除房间时级联删除其所有笔画
	Room Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}
