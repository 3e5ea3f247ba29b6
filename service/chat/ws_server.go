package chat

import (
	"context"
	"errors"
	"net"
	"time"

	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	usermodel "PPChat/module/user/model"
	"PPChat/service/metrics"
	"PPChat/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     middleware.OriginChecker(origins),
	}
}

// 握手凭证：?token= 或 Authorization: Bearer
var handshakeToken = &midsec.Options{EnableAuthorizationBearer: true, EnableQueryToken: true}

// HandleWS GET /socket。先认证再升级，认证失败直接 401，不创建会话。
func (s *Server) HandleWS(c *gin.Context) {
	if s.closing.Load() {
		middleware.Fail(c, errShuttingDown.Wrap())
		return
	}
	token := midsec.ExtractToken(c.Request, handshakeToken)

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.AuthTimeout)
	user, err := s.auth.Authenticate(ctx, token)
	cancel()
	if err != nil {
		metrics.AuthFailures.WithLabelValues(authReason(err)).Inc()
		s.log.Info("handshake rejected",
			zap.String("remote", c.ClientIP()),
			zap.String("request_id", middleware.RequestID(c)),
			zap.Error(err))
		middleware.Fail(c, err)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写回 HTTP 错误
		s.log.Info("upgrade failed", zap.String("user", user.UserID()), zap.Error(err))
		return
	}
	s.Serve(user, ws)
}

// Serve 在已认证、已升级的连接上运行会话直到断开；返回时会话已关闭
func (s *Server) Serve(user *usermodel.User, ws *websocket.Conn) {
	ws.SetReadLimit(s.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	sess, err := s.Open(user, ws)
	if err != nil {
		s.log.Info("open session refused", zap.String("user", user.UserID()), zap.Error(err))
		_ = ws.Close()
		return
	}
	safe.SafeGo("ws-write:"+sess.ID, func() { s.writePump(sess) })

	reason := s.readPump(sess, ws)
	s.Close(sess, reason)
}

// readPump 只读不写；按到达顺序逐帧分派
func (s *Server) readPump(sess *Session, ws *websocket.Conn) string {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return readCloseReason(err)
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.Dispatch(sess, data)
	}
}

func readCloseReason(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return "peer closed"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "pong timeout"
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		return "message too large"
	}
	return "read error"
}

// writePump 会话唯一的写协程：出站帧与定时 ping
func (s *Server) writePump(sess *Session) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.done:
			return
		case frame := <-sess.send:
			if err := sess.write(frame, s.opts.WriteWait); err != nil {
				s.log.Info("write failed", zap.String("session", sess.ID), zap.Error(err))
				s.Close(sess, "write failed")
				return
			}
		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				s.Close(sess, "ping failed")
				return
			}
		}
	}
}
