package service

import "errors"

// 业务层错误。auth 相关的错误文案会原样下发给出错的连接。
var (
	// Join 协议
	ErrAuthRequired = errors.New("room name and authentication token required")
	ErrAuthInvalid  = errors.New("invalid authentication token")
	// 已连接但未完成 Join 的连接发起 draw / clear-canvas
	ErrUnauthorized = errors.New("not authenticated for this room")

	// 房间目录
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomExists           = errors.New("room already exists")
	ErrNameRequired         = errors.New("room name is required")
	ErrPasswordRequired     = errors.New("password is required")
	ErrPasswordTooShort     = errors.New("password must be at least 4 characters long")
	ErrAuthenticationFailed = errors.New("invalid password")

	ErrInternalServer = errors.New("internal server error")
)
