package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/domain"
	"github.com/Yashhh999/hackaboard/internal/dto"
	"github.com/Yashhh999/hackaboard/internal/repository"
	"github.com/Yashhh999/hackaboard/internal/tasks"
)

// 存储调用的统一超时。超时视为存储失败，按对应路径的降级策略处理。
const storeTimeout = 3 * time.Second

// StrokeEnqueuer 将笔画持久化任务放入后台队列，由 *asynq.Client 满足。
type StrokeEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SyncService 实现实时绘画会话的同步协议：加入回放、笔画落盘和房间重置。
// 笔画的持久化是尽力而为的，与广播完全解耦——存储故障只进日志，
// 不允许拖慢或阻断实时协作。
type SyncService struct {
	roomRepo   repository.RoomRepository
	strokeRepo repository.StrokeRepository
	tickets    TicketVerifier
	enqueuer   StrokeEnqueuer
}

// NewSyncService 创建 SyncService 实例。
func NewSyncService(roomRepo repository.RoomRepository, strokeRepo repository.StrokeRepository, tickets TicketVerifier, enqueuer StrokeEnqueuer) *SyncService {
	if roomRepo == nil || strokeRepo == nil {
		panic("all repositories must be non-nil for SyncService")
	}
	if tickets == nil {
		panic("TicketVerifier cannot be nil for SyncService")
	}
	if enqueuer == nil {
		panic("StrokeEnqueuer cannot be nil for SyncService")
	}
	return &SyncService{
		roomRepo:   roomRepo,
		strokeRepo: strokeRepo,
		tickets:    tickets,
		enqueuer:   enqueuer,
	}
}

// Authorize 校验加入请求的凭证。凭证缺失返回 ErrAuthRequired，
// 令牌无效返回 ErrAuthInvalid。不触存储。
func (s *SyncService) Authorize(roomName, authToken string) error {
	if roomName == "" || authToken == "" {
		return ErrAuthRequired
	}
	if err := s.tickets.Verify(authToken, roomName); err != nil {
		return ErrAuthInvalid
	}
	return nil
}

// Replay 返回房间的回放快照。调用方必须先通过 Authorize，并在调用
// Replay 之前把连接登记进房间的扇出集合——这样读历史期间广播的
// 笔画仍会送达加入者，不会丢失。
// 任何存储故障都被吞掉并降级为空快照——持久化问题不应阻止协作
// 开始；房间在笔画库中尚不存在时同样返回空快照。
func (s *SyncService) Replay(ctx context.Context, roomName string) []domain.Stroke {
	logCtx := logrus.WithField("room", roomName)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	room, err := s.roomRepo.FindByName(ctx, roomName)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.WithError(err).Error("Failed to resolve room during replay, sending empty snapshot")
		}
		return []domain.Stroke{}
	}

	strokes, err := s.strokeRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load stroke history, sending empty snapshot")
		return []domain.Stroke{}
	}
	if strokes == nil {
		strokes = []domain.Stroke{}
	}

	logCtx.WithField("stroke_count", len(strokes)).Debug("Replay snapshot loaded")
	return strokes
}

// RecordStroke 尽力持久化一条笔画：按名字解析房间，找不到则只记日志
// （广播不受影响，由调用方负责），找到则把落盘任务交给后台队列。
// 返回的错误仅供调用方记录，永远不会传回发送这条笔画的客户端。
func (s *SyncService) RecordStroke(ctx context.Context, data dto.DrawData) error {
	logCtx := logrus.WithField("room", data.Room)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	room, err := s.roomRepo.FindByName(ctx, data.Room)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			// 目录里还没有这个房间：跳过持久化，协作继续
			logCtx.Warn("Room not found when saving stroke, skipping persistence")
			return nil
		}
		return fmt.Errorf("resolve room for stroke: %w", err)
	}

	stroke := domain.Stroke{
		RoomID:    room.ID,
		X:         data.X,
		Y:         data.Y,
		PrevX:     data.PrevX,
		PrevY:     data.PrevY,
		Color:     data.Color,
		LineWidth: data.LineWidth,
		IsEraser:  data.IsEraser,
		CreatedAt: time.Now().UTC(),
	}

	task, err := tasks.NewStrokePersistTask(stroke)
	if err != nil {
		return fmt.Errorf("build stroke persist task: %w", err)
	}
	if _, err := s.enqueuer.Enqueue(task, asynq.Queue(tasks.QueueDefault)); err != nil {
		return fmt.Errorf("enqueue stroke persist task: %w", err)
	}

	logCtx.Debug("Stroke persist task enqueued")
	return nil
}

// Reset 清空房间的全部持久化笔画。删除是单条批量操作，
// 不存在对外可见的部分清除状态。房间不存在时视为已清空。
// 与 Reset 并发落盘的笔画可能在批量删除之后写入并因此幸存，
// 这是已接受的限制。
func (s *SyncService) Reset(ctx context.Context, roomName string) error {
	logCtx := logrus.WithField("room", roomName)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	room, err := s.roomRepo.FindByName(ctx, roomName)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Room not found during reset, nothing to clear")
			return nil
		}
		return fmt.Errorf("resolve room for reset: %w", err)
	}

	if err := s.strokeRepo.DeleteAllByRoom(ctx, room.ID); err != nil {
		return fmt.Errorf("clear strokes for room %d: %w", room.ID, err)
	}

	logCtx.WithField("room_id", room.ID).Info("Room history cleared")
	return nil
}
