package hub // 白盒测试：需要直接构造 Client 和调用内部处理器

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Yashhh999/hackaboard/internal/domain"
	"github.com/Yashhh999/hackaboard/internal/dto"
	"github.com/Yashhh999/hackaboard/internal/repository/mocks"
	"github.com/Yashhh999/hackaboard/internal/service"
)

// stubVerifier 是测试用的 TicketVerifier 实现
type stubVerifier struct {
	err error
}

func (v *stubVerifier) Verify(tokenStr, roomName string) error { return v.err }

// stubEnqueuer 记录入队任务并在每次入队后发出通知
type stubEnqueuer struct {
	err    error
	notify chan *asynq.Task
}

func newStubEnqueuer() *stubEnqueuer {
	return &stubEnqueuer{notify: make(chan *asynq.Task, 8)}
}

func (e *stubEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.notify <- task
	return &asynq.TaskInfo{}, nil
}

// testFixture 打包一个 Hub 及其全部 Mock 依赖
type testFixture struct {
	hub        *Hub
	roomRepo   *mocks.RoomRepository
	strokeRepo *mocks.StrokeRepository
	verifier   *stubVerifier
	enqueuer   *stubEnqueuer
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	strokeRepo := new(mocks.StrokeRepository)
	verifier := &stubVerifier{}
	enqueuer := newStubEnqueuer()
	syncService := service.NewSyncService(roomRepo, strokeRepo, verifier, enqueuer)
	return &testFixture{
		hub:        NewHub(syncService),
		roomRepo:   roomRepo,
		strokeRepo: strokeRepo,
		verifier:   verifier,
		enqueuer:   enqueuer,
	}
}

// newTestClient 构造一个不带真实 WebSocket 连接的测试客户端。
// 测试中不启动读写泵，直接从 send 通道取消息。
func newTestClient(addr string) *Client {
	return &Client{
		remoteAddr: addr,
		send:       make(chan []byte, 16),
		joined:     make(map[string]bool),
	}
}

// recvEnvelope 从客户端的 send 通道取出一条消息并解包
func recvEnvelope(t *testing.T, c *Client) dto.Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env dto.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received no message", c.remoteAddr)
		return dto.Envelope{}
	}
}

// assertNoMessage 断言客户端的 send 通道当前为空
func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("client %s unexpectedly received: %s", c.remoteAddr, raw)
	default:
	}
}

// mustJoin 让测试客户端进入已加入状态（扇出表 + 会话授权）
func mustJoin(h *Hub, c *Client, roomName string) {
	h.addToRoom(roomName, c)
	c.Authorize(roomName)
}

// --- Join 协议 ---

func TestHub_HandleJoin_ReplaySentToJoinerOnly(t *testing.T) {
	// Arrange: room-a 已有历史笔画和一个在线成员
	f := newTestFixture(t)
	joiner := newTestClient("joiner")
	bystander := newTestClient("bystander")
	mustJoin(f.hub, bystander, "room-a")

	history := []domain.Stroke{
		{ID: 1, RoomID: 3, X: 1, Y: 1},
		{ID: 2, RoomID: 3, X: 2, Y: 2},
	}
	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("ListByRoom", mock.Anything, uint(3)).Return(history, nil).Once()

	// Act
	f.hub.handleJoin(joiner, dto.JoinRoomData{RoomName: "room-a", AuthToken: "valid"})

	// Assert: 加入者收到按序回放，旁观者什么都收不到
	env := recvEnvelope(t, joiner)
	assert.Equal(t, dto.EventLoadDrawings, env.Event)
	var replay []domain.Stroke
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	require.Len(t, replay, 2)
	assert.Equal(t, uint(1), replay[0].ID)
	assert.Equal(t, uint(2), replay[1].ID)
	assertNoMessage(t, bystander)

	assert.True(t, joiner.IsAuthorized("room-a"), "加入成功后会话应被授权")
	f.roomRepo.AssertExpectations(t)
	f.strokeRepo.AssertExpectations(t)
}

func TestHub_HandleJoin_InvalidTicket_Rejected(t *testing.T) {
	// Arrange
	f := newTestFixture(t)
	f.verifier.err = service.ErrAuthInvalid
	joiner := newTestClient("joiner")

	// Act
	f.hub.handleJoin(joiner, dto.JoinRoomData{RoomName: "room-a", AuthToken: "forged"})

	// Assert: 收到 error 事件，未被授权也未进入扇出表
	env := recvEnvelope(t, joiner)
	assert.Equal(t, dto.EventError, env.Event)
	assert.False(t, joiner.IsAuthorized("room-a"))

	f.hub.roomsMu.RLock()
	_, inRoom := f.hub.rooms["room-a"][joiner]
	f.hub.roomsMu.RUnlock()
	assert.False(t, inRoom, "被拒绝的连接不应出现在扇出表中")
	f.roomRepo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
}

func TestHub_HandleJoin_StoreFailure_EmptyReplay(t *testing.T) {
	// Arrange: 存储故障时加入仍然成功，回放降级为空
	f := newTestFixture(t)
	joiner := newTestClient("joiner")
	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(nil, errors.New("connection refused")).Once()

	// Act
	f.hub.handleJoin(joiner, dto.JoinRoomData{RoomName: "room-a", AuthToken: "valid"})

	// Assert
	env := recvEnvelope(t, joiner)
	assert.Equal(t, dto.EventLoadDrawings, env.Event)
	var replay []domain.Stroke
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.Empty(t, replay)
	assert.True(t, joiner.IsAuthorized("room-a"), "持久化问题不应阻止协作开始")
}

// --- Draw 事件 ---

func drawPayload(t *testing.T, data dto.DrawData) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return raw
}

func TestHub_HandleDraw_BroadcastExcludesSender(t *testing.T) {
	// Arrange: room-a 有三个成员，room-b 有一个
	f := newTestFixture(t)
	sender := newTestClient("sender")
	peer1 := newTestClient("peer1")
	peer2 := newTestClient("peer2")
	otherRoom := newTestClient("other-room")
	mustJoin(f.hub, sender, "room-a")
	mustJoin(f.hub, peer1, "room-a")
	mustJoin(f.hub, peer2, "room-a")
	mustJoin(f.hub, otherRoom, "room-b")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()

	data := dto.DrawData{Room: "room-a", X: 10, Y: 20, Color: "#00ff00", LineWidth: 2}
	raw := drawPayload(t, data)

	// Act
	f.hub.handleDraw(sender, raw, data)

	// Assert: 同房间的其他成员收到原样载荷
	for _, peer := range []*Client{peer1, peer2} {
		env := recvEnvelope(t, peer)
		assert.Equal(t, dto.EventDraw, env.Event)
		var got dto.DrawData
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, data, got)
	}
	// 发送者和其他房间的成员什么都收不到
	assertNoMessage(t, sender)
	assertNoMessage(t, otherRoom)

	// 持久化任务在后台入队
	select {
	case task := <-f.enqueuer.notify:
		assert.NotNil(t, task)
	case <-time.After(2 * time.Second):
		t.Fatal("stroke persist task was never enqueued")
	}
}

func TestHub_HandleDraw_Unauthorized_Rejected(t *testing.T) {
	// Arrange: sender 在扇出表之外，未完成 Join
	f := newTestFixture(t)
	sender := newTestClient("sender")
	peer := newTestClient("peer")
	mustJoin(f.hub, peer, "room-a")

	data := dto.DrawData{Room: "room-a", X: 1, Y: 1}

	// Act
	f.hub.handleDraw(sender, drawPayload(t, data), data)

	// Assert: 发送者收到 error，房间成员无感知，无任何持久化
	env := recvEnvelope(t, sender)
	assert.Equal(t, dto.EventError, env.Event)
	assertNoMessage(t, peer)
	f.roomRepo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
}

func TestHub_HandleDraw_PersistFailure_BroadcastUnaffected(t *testing.T) {
	// Arrange: 队列不可用，但广播照常
	f := newTestFixture(t)
	f.enqueuer.err = errors.New("redis down")
	sender := newTestClient("sender")
	peer := newTestClient("peer")
	mustJoin(f.hub, sender, "room-a")
	mustJoin(f.hub, peer, "room-a")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()

	data := dto.DrawData{Room: "room-a", X: 5, Y: 5}

	// Act
	f.hub.handleDraw(sender, drawPayload(t, data), data)

	// Assert: 同行照常收到笔画，发送者收不到任何错误
	env := recvEnvelope(t, peer)
	assert.Equal(t, dto.EventDraw, env.Event)
	assertNoMessage(t, sender)
}

// --- Reset 协议 ---

func TestHub_HandleReset_BroadcastIncludesSender(t *testing.T) {
	// Arrange
	f := newTestFixture(t)
	sender := newTestClient("sender")
	peer := newTestClient("peer")
	otherRoom := newTestClient("other-room")
	mustJoin(f.hub, sender, "room-a")
	mustJoin(f.hub, peer, "room-a")
	mustJoin(f.hub, otherRoom, "room-b")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("DeleteAllByRoom", mock.Anything, uint(3)).Return(nil).Once()

	// Act
	f.hub.handleReset(sender, "room-a")

	// Assert: 发起者和同行都收到 clear-canvas，别的房间不受影响
	assert.Equal(t, dto.EventClearCanvas, recvEnvelope(t, sender).Event)
	assert.Equal(t, dto.EventClearCanvas, recvEnvelope(t, peer).Event)
	assertNoMessage(t, otherRoom)
	f.strokeRepo.AssertExpectations(t)
}

func TestHub_HandleReset_DeleteFails_NoBroadcast(t *testing.T) {
	// Arrange: 批量删除失败时只通知发起者，不广播清空信号
	f := newTestFixture(t)
	sender := newTestClient("sender")
	peer := newTestClient("peer")
	mustJoin(f.hub, sender, "room-a")
	mustJoin(f.hub, peer, "room-a")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("DeleteAllByRoom", mock.Anything, uint(3)).
		Return(errors.New("lock wait timeout")).Once()

	// Act
	f.hub.handleReset(sender, "room-a")

	// Assert
	assert.Equal(t, dto.EventError, recvEnvelope(t, sender).Event)
	assertNoMessage(t, peer)
}

// --- 断开与 Join / Reset 的并发 ---

func TestHub_HandleJoin_DisconnectDuringReplay_NoPanic(t *testing.T) {
	// Arrange: 回放读历史期间连接断开并被注销
	f := newTestFixture(t)
	joiner := newTestClient("joiner")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Run(func(args mock.Arguments) {
			// 模拟存储读进行中客户端断开
			f.hub.unregisterClient(joiner)
		}).
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("ListByRoom", mock.Anything, uint(3)).
		Return([]domain.Stroke{{ID: 1, RoomID: 3}}, nil).Once()

	// Act: 注销后 handleJoin 继续发送快照，必须安静丢弃而不是 panic
	require.NotPanics(t, func() {
		f.hub.handleJoin(joiner, dto.JoinRoomData{RoomName: "room-a", AuthToken: "valid"})
	})

	// Assert: 连接已从扇出表移除
	f.hub.roomsMu.RLock()
	_, inRoom := f.hub.rooms["room-a"][joiner]
	f.hub.roomsMu.RUnlock()
	assert.False(t, inRoom)
}

func TestHub_HandleReset_DisconnectDuringDelete_NoPanic(t *testing.T) {
	// Arrange: 批量删除期间发起者断开，同行连接应照常收到清空信号
	f := newTestFixture(t)
	sender := newTestClient("sender")
	peer := newTestClient("peer")
	mustJoin(f.hub, sender, "room-a")
	mustJoin(f.hub, peer, "room-a")

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("DeleteAllByRoom", mock.Anything, uint(3)).
		Run(func(args mock.Arguments) {
			f.hub.unregisterClient(sender)
		}).
		Return(nil).Once()

	// Act
	require.NotPanics(t, func() {
		f.hub.handleReset(sender, "room-a")
	})

	// Assert: 在线的同行不受断开影响
	assert.Equal(t, dto.EventClearCanvas, recvEnvelope(t, peer).Event)
}

// --- 回放窗口 ---

func TestHub_HandleJoin_StrokeDuringReplay_Delivered(t *testing.T) {
	// Arrange: 凭证通过后、历史读完前，房间里广播了一条新笔画。
	// 加入者此时已在扇出表中，这条笔画必须送达，不能落在
	// 快照和实时流之间丢失。
	f := newTestFixture(t)
	joiner := newTestClient("joiner")

	concurrent := dto.DrawData{Room: "room-a", X: 99, Y: 99, Color: "#0000ff"}
	concurrentRaw, err := json.Marshal(concurrent)
	require.NoError(t, err)
	concurrentMsg, err := json.Marshal(dto.Envelope{Event: dto.EventDraw, Data: concurrentRaw})
	require.NoError(t, err)

	f.roomRepo.On("FindByName", mock.Anything, "room-a").
		Return(&domain.Room{ID: 3, Name: "room-a"}, nil).Once()
	f.strokeRepo.On("ListByRoom", mock.Anything, uint(3)).
		Run(func(args mock.Arguments) {
			// 历史读在途时另一个连接的笔画完成广播
			f.hub.broadcast("room-a", concurrentMsg, nil)
		}).
		Return([]domain.Stroke{{ID: 1, RoomID: 3}}, nil).Once()

	// Act
	f.hub.handleJoin(joiner, dto.JoinRoomData{RoomName: "room-a", AuthToken: "valid"})

	// Assert: 并发笔画先到，随后是回放快照
	first := recvEnvelope(t, joiner)
	assert.Equal(t, dto.EventDraw, first.Event)
	var got dto.DrawData
	require.NoError(t, json.Unmarshal(first.Data, &got))
	assert.Equal(t, concurrent, got)

	second := recvEnvelope(t, joiner)
	assert.Equal(t, dto.EventLoadDrawings, second.Event)
}

// --- 事件路由 ---

func TestHub_RouteEvent_UnknownEvent(t *testing.T) {
	// Arrange
	f := newTestFixture(t)
	client := newTestClient("client")

	// Act
	f.hub.routeEvent(HubMessage{Type: msgEvent, Client: client, Event: "bogus"})

	// Assert
	assert.Equal(t, dto.EventError, recvEnvelope(t, client).Event)
}

func TestHub_RouteEvent_ClearCanvas_RequiresJoin(t *testing.T) {
	// Arrange: 未加入的连接尝试清空画布
	f := newTestFixture(t)
	client := newTestClient("client")
	raw, _ := json.Marshal(dto.ClearCanvasData{RoomName: "room-a"})

	// Act
	f.hub.routeEvent(HubMessage{Type: msgEvent, Client: client, Event: dto.EventClearCanvas, Data: raw})

	// Assert: 被拒绝且未触存储
	assert.Equal(t, dto.EventError, recvEnvelope(t, client).Event)
	f.strokeRepo.AssertNotCalled(t, "DeleteAllByRoom", mock.Anything, mock.Anything)
}

func TestHub_RouteEvent_MalformedDraw(t *testing.T) {
	// Arrange
	f := newTestFixture(t)
	client := newTestClient("client")

	// Act: 载荷不是合法 JSON
	f.hub.routeEvent(HubMessage{Type: msgEvent, Client: client, Event: dto.EventDraw, Data: json.RawMessage(`{bad`)})

	// Assert
	assert.Equal(t, dto.EventError, recvEnvelope(t, client).Event)
}

// --- 注销 ---

func TestHub_UnregisterClient_RemovesFromAllRooms(t *testing.T) {
	// Arrange: 一个连接加入两个房间
	f := newTestFixture(t)
	client := newTestClient("leaver")
	peer := newTestClient("peer")
	mustJoin(f.hub, client, "room-a")
	mustJoin(f.hub, client, "room-b")
	mustJoin(f.hub, peer, "room-a")

	// 注销时 send 里还留着一条未投递的消息
	client.send <- []byte(`{"event":"draw"}`)

	// Act
	f.hub.unregisterClient(client)

	// Assert: 两个房间的扇出集合都不再包含它，空房间被回收
	f.hub.roomsMu.RLock()
	_, inRoomA := f.hub.rooms["room-a"][client]
	_, roomBExists := f.hub.rooms["room-b"]
	f.hub.roomsMu.RUnlock()
	assert.False(t, inRoomA)
	assert.False(t, roomBExists, "变空的房间应从扇出表移除")

	// 有积压消息也必须关闭 send 通道：先读出缓冲，再确认已关闭
	_, open := <-client.send
	assert.True(t, open, "缓冲中的消息应仍可读出")
	_, open = <-client.send
	assert.False(t, open, "缓冲之后通道应已关闭")

	// 之后的发送被安静丢弃，不会 panic
	assert.False(t, client.trySend([]byte("late")))

	// 留下的成员不受影响
	f.hub.roomsMu.RLock()
	_, peerStill := f.hub.rooms["room-a"][peer]
	f.hub.roomsMu.RUnlock()
	assert.True(t, peerStill)
}

func TestHub_QueueMessage_DropsWhenFull(t *testing.T) {
	// Arrange: 不运行 Run 循环，填满处理通道
	f := newTestFixture(t)
	for i := 0; i < cap(f.hub.messageChan); i++ {
		require.True(t, f.hub.QueueMessage(HubMessage{Type: msgRegister}))
	}

	// Act & Assert: 队列满时非阻塞丢弃
	assert.False(t, f.hub.QueueMessage(HubMessage{Type: msgRegister}))
}
