package http

import (
	"github.com/gin-gonic/gin"

	"github.com/Yashhh999/hackaboard/internal/service"
)

// RoomResponse 是房间目录接口的统一响应结构
type RoomResponse struct {
	Success bool                   `json:"success"`
	Room    *service.RoomSummary   `json:"room,omitempty"`
	Rooms   []service.RoomSummary  `json:"rooms,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// AuthResponse 是房间密码验证接口的响应结构
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"` // 加入实时会话的短时令牌
}

// ErrorResponse 发送失败响应
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, RoomResponse{Success: false, Message: message})
}
