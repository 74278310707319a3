package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Yashhh999/hackaboard/internal/domain"
)

// 任务类型常量
const (
	// TypeStrokePersist 笔画持久化任务
	TypeStrokePersist = "stroke:persist"
)

// 任务队列名称
const (
	QueueDefault = "default"
)

// StrokePersistPayload 定义了笔画持久化任务的数据结构。
// 房间已在入队前解析完毕，Worker 只负责写库。
type StrokePersistPayload struct {
	Stroke domain.Stroke `json:"stroke"`
}

// NewStrokePersistTask 创建一个笔画持久化任务
func NewStrokePersistTask(stroke domain.Stroke) (*asynq.Task, error) {
	payload, err := json.Marshal(StrokePersistPayload{Stroke: stroke})
	if err != nil {
		return nil, fmt.Errorf("marshal stroke persist payload: %w", err)
	}
	return asynq.NewTask(TypeStrokePersist, payload), nil
}
