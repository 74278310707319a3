package dto

import "encoding/json"

// WebSocket 事件名。入站事件由客户端发起，出站事件由服务端推送。
const (
	// 入站
	EventJoinRoom    = "join-room"
	EventDraw        = "draw"
	EventClearCanvas = "clear-canvas"

	// 出站
	EventLoadDrawings = "load-drawings" // 仅发给刚加入的连接
	EventError        = "error"         // 仅发给出错的连接
)

// Envelope 是 WebSocket 消息的统一外层结构。
// Data 保持原始字节，由各事件处理器按需解析。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomData 是 join-room 事件的载荷。
type JoinRoomData struct {
	RoomName  string `json:"roomName"`
	AuthToken string `json:"authToken"`
}

// DrawData 是 draw 事件的载荷。广播时原样转发给房间内的其他连接，
// 字段命名与画布端保持一致。
type DrawData struct {
	Room      string  `json:"room"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	PrevX     float64 `json:"prevX"`
	PrevY     float64 `json:"prevY"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	IsEraser  bool    `json:"isEraser,omitempty"`
}

// ClearCanvasData 是 clear-canvas 事件的载荷。
type ClearCanvasData struct {
	RoomName string `json:"roomName"`
}

// NewEnvelope 将事件名和载荷序列化为一条完整的出站消息。
func NewEnvelope(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = bytes
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
