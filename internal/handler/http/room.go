package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/service"
)

// RoomHandler 封装了房间目录的 HTTP 处理逻辑
type RoomHandler struct {
	directory *service.DirectoryService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(directory *service.DirectoryService) *RoomHandler {
	if directory == nil {
		panic("DirectoryService cannot be nil for RoomHandler")
	}
	return &RoomHandler{directory: directory}
}

// CreateRoomRequest 创建房间的请求体
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateRoom 处理 POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.directory.CreateRoom(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	summary, err := h.directory.GetRoom(c.Request.Context(), room.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RoomResponse{
		Success: true,
		Room:    summary,
		Message: "room created successfully",
	})
}

// AuthRequest 房间密码验证的请求体
type AuthRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Authenticate 处理 POST /api/rooms/auth。
// 验证通过后返回绑定该房间的短时加入令牌，客户端凭它发起 join-room。
func (h *RoomHandler) Authenticate(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{Success: false, Message: "invalid request body"})
		return
	}

	token, err := h.directory.Authenticate(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Message: "authentication successful",
		Token:   token,
	})
}

// ListRooms 处理 GET /api/rooms
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.directory.ListRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, RoomResponse{Success: true, Rooms: rooms})
}

// GetRoom 处理 GET /api/rooms/:name
func (h *RoomHandler) GetRoom(c *gin.Context) {
	summary, err := h.directory.GetRoom(c.Request.Context(), c.Param("name"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, RoomResponse{Success: true, Room: summary})
}

// DeleteRoomRequest 删除房间的请求体
type DeleteRoomRequest struct {
	Password string `json:"password"`
}

// DeleteRoom 处理 DELETE /api/rooms/:name
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	var req DeleteRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "password is required to delete room")
		return
	}

	name := c.Param("name")
	if err := h.directory.DeleteRoom(c.Request.Context(), name, req.Password); err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("room", name).Info("Room deleted via API")
	c.JSON(http.StatusOK, RoomResponse{Success: true, Message: "room deleted successfully"})
}
