package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Yashhh999/hackaboard/internal/domain"
	"github.com/Yashhh999/hackaboard/internal/repository"
)

// 房间密码的最小长度
const minPasswordLength = 4

// RoomSummary 是对外返回的房间信息，附带笔画数量。
type RoomSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	StrokeCount int64  `json:"strokeCount"`
}

// DirectoryService 负责房间目录的管理：创建、密码验证、列表和删除。
// 目录操作没有降级模式，存储失败会作为显式错误上抛。
type DirectoryService struct {
	roomRepo   repository.RoomRepository
	strokeRepo repository.StrokeRepository
	tickets    *TicketService
}

// NewDirectoryService 创建 DirectoryService 实例。
func NewDirectoryService(roomRepo repository.RoomRepository, strokeRepo repository.StrokeRepository, tickets *TicketService) *DirectoryService {
	if roomRepo == nil || strokeRepo == nil {
		panic("all repositories must be non-nil for DirectoryService")
	}
	if tickets == nil {
		panic("TicketService cannot be nil for DirectoryService")
	}
	return &DirectoryService{
		roomRepo:   roomRepo,
		strokeRepo: strokeRepo,
		tickets:    tickets,
	}
}

// CreateRoom 创建一个新房间。房间名 trim 后必须非空且全局唯一，
// 密码至少 4 位，存储前经 bcrypt 哈希。
func (s *DirectoryService) CreateRoom(ctx context.Context, name, password string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	logCtx := logrus.WithField("room", name)

	if name == "" {
		return nil, ErrNameRequired
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	exists, err := s.roomRepo.ExistsByName(ctx, name)
	if err != nil {
		logCtx.WithError(err).Error("Database error checking room name uniqueness")
		return nil, ErrInternalServer
	}
	if exists {
		return nil, ErrRoomExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash room password")
		return nil, ErrInternalServer
	}

	room := &domain.Room{
		Name:     name,
		Password: string(hashed),
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		// 并发创建时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Room name taken concurrently during create")
			return nil, ErrRoomExists
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// Authenticate 验证房间密码，通过后签发一个绑定该房间的加入令牌。
func (s *DirectoryService) Authenticate(ctx context.Context, name, password string) (string, error) {
	name = strings.TrimSpace(name)
	logCtx := logrus.WithField("room", name)

	if name == "" {
		return "", ErrNameRequired
	}
	if password == "" {
		return "", ErrPasswordRequired
	}

	room, err := s.roomRepo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return "", ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Database error finding room for authentication")
		return "", ErrInternalServer
	}

	if bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)) != nil {
		logCtx.Warn("Room authentication failed: invalid password")
		return "", ErrAuthenticationFailed
	}

	ticket, err := s.tickets.Issue(room.Name)
	if err != nil {
		logCtx.WithError(err).Error("Failed to issue join ticket")
		return "", ErrInternalServer
	}
	logCtx.Info("Room authentication succeeded, ticket issued")
	return ticket, nil
}

// GetRoom 返回单个房间的摘要信息（含笔画数量）。
func (s *DirectoryService) GetRoom(ctx context.Context, name string) (*RoomSummary, error) {
	room, err := s.roomRepo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room", name).Error("Database error finding room")
		return nil, ErrInternalServer
	}
	count, err := s.strokeRepo.CountByRoom(ctx, room.ID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Database error counting strokes")
		return nil, ErrInternalServer
	}
	return s.summarize(room, count), nil
}

// ListRooms 返回全部房间的摘要列表，按最近更新时间倒序。
func (s *DirectoryService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.roomRepo.ListAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Database error listing rooms")
		return nil, ErrInternalServer
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		count, err := s.strokeRepo.CountByRoom(ctx, rooms[i].ID)
		if err != nil {
			logrus.WithError(err).WithField("room_id", rooms[i].ID).Error("Database error counting strokes")
			return nil, ErrInternalServer
		}
		summaries = append(summaries, *s.summarize(&rooms[i], count))
	}
	return summaries, nil
}

// DeleteRoom 验证密码后删除房间及其全部笔画。
func (s *DirectoryService) DeleteRoom(ctx context.Context, name, password string) error {
	name = strings.TrimSpace(name)
	logCtx := logrus.WithField("room", name)

	if name == "" {
		return ErrNameRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}

	room, err := s.roomRepo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Database error finding room for deletion")
		return ErrInternalServer
	}

	if bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)) != nil {
		logCtx.Warn("Room deletion rejected: invalid password")
		return ErrAuthenticationFailed
	}

	// 先清空笔画再删房间，不依赖数据库层的级联配置
	if err := s.strokeRepo.DeleteAllByRoom(ctx, room.ID); err != nil {
		logCtx.WithError(err).Error("Failed to delete room strokes")
		return ErrInternalServer
	}
	if err := s.roomRepo.Delete(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to delete room")
		return ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room deleted")
	return nil
}

func (s *DirectoryService) summarize(room *domain.Room, strokeCount int64) *RoomSummary {
	return &RoomSummary{
		ID:          room.ID,
		Name:        room.Name,
		CreatedAt:   room.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		UpdatedAt:   room.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		StrokeCount: strokeCount,
	}
}
