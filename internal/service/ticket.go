package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// TicketVerifier 校验加入房间的令牌。由 TicketService 实现，
// 抽象出来便于在测试中替换。
type TicketVerifier interface {
	Verify(tokenStr, roomName string) error
}

// TicketService 负责签发和校验加入实时会话的短时令牌。
// 令牌由服务端在房间密码验证通过后签发，绑定房间名并带过期时间，
// 客户端无法仅凭房间名推导出来。
type TicketService struct {
	secret []byte
	ttl    time.Duration
}

// NewTicketService 创建 TicketService 实例。
// secretKey 应从安全配置中获取；ttl 为令牌有效期。
func NewTicketService(secretKey string, ttl time.Duration) (*TicketService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("ticket secret key cannot be empty")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute // 默认 5 分钟
	}
	return &TicketService{
		secret: []byte(secretKey),
		ttl:    ttl,
	}, nil
}

// Issue 为指定房间签发一个加入令牌
func (s *TicketService) Issue(roomName string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room": roomName,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return tokenString, nil
}

// Verify 校验令牌的签名、有效期以及房间绑定。
// 任何校验失败统一返回 ErrAuthInvalid，具体原因只进日志。
func (s *TicketService) Verify(tokenStr, roomName string) error {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名，防止算法替换
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		logrus.WithError(err).WithField("room", roomName).Debug("Ticket validation failed")
		return ErrAuthInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrAuthInvalid
	}
	// 令牌必须绑定被加入的房间
	if room, _ := claims["room"].(string); room != roomName {
		logrus.WithFields(logrus.Fields{"room": roomName, "ticket_room": claims["room"]}).
			Debug("Ticket bound to a different room")
		return ErrAuthInvalid
	}
	return nil
}
