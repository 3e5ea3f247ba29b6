package chat

import (
	"context"
	"sync/atomic"
	"time"

	"PPChat/logger"
	usermodel "PPChat/module/user/model"
	"PPChat/service/metrics"
	"PPChat/service/storage"
	"PPChat/tools/errs"
	"PPChat/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	OpTimeout      time.Duration // 单次存储/数据库调用超时
	AuthTimeout    time.Duration // 握手认证超时
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendQueue      int   // 每会话出站队列长度
	MaxMessageSize int64 // 入站帧上限
	AllowedOrigins []string
}

func (o *Options) norm() {
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Second
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 12 / 5
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
}

// UserDirectory 会话生命周期用到的用户操作
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*usermodel.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]*usermodel.User, error)
	UpdateUserOnlineStatus(ctx context.Context, id string, online bool) error
}

var errShuttingDown = errs.ErrServerInternal.WithDetail("realtime server shutting down")

// Server 实时会话管理：激活、事件分派、关闭
type Server struct {
	opts     Options
	router   *Router
	presence storage.PresenceStore
	users    UserDirectory
	auth     *Authenticator
	upgrader websocket.Upgrader
	now      func() time.Time
	log      *zap.Logger
	closing  atomic.Bool
}

func NewServer(opts Options, presence storage.PresenceStore, users UserDirectory, auth *Authenticator) *Server {
	safe.MustNotNil(presence, "presence")
	safe.MustNotNil(users, "users")
	safe.MustNotNil(auth, "auth")
	opts.norm()
	return &Server{
		opts:     opts,
		router:   NewRouter(),
		presence: presence,
		users:    users,
		auth:     auth,
		upgrader: newUpgrader(opts.AllowedOrigins),
		now:      time.Now,
		log:      logger.Named("realtime"),
	}
}

func (s *Server) Router() *Router {
	return s.router
}

func (s *Server) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.OpTimeout)
}

// Open 为已认证用户建立会话并激活：
// 在线集合 Add -> 持久化 isOnline -> 向其他会话广播 user-online -> 向本会话发送 online-users
func (s *Server) Open(user *usermodel.User, conn Conn) (*Session, error) {
	if s.closing.Load() {
		return nil, errShuttingDown.Wrap()
	}
	sess := newSession(user, conn, s.opts.SendQueue)
	s.router.Register(sess)
	if err := s.activate(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// activate Connecting -> Active。注册后、拿到锁前会话可能已被 Close（如 Shutdown），此时不再触碰在线集合。
func (s *Server) activate(sess *Session) error {
	sess.lifecycle.Lock()
	defer sess.lifecycle.Unlock()
	if sess.State() != StateConnecting {
		return errShuttingDown.WrapMsg("session closed before activation", "session", sess.ID)
	}

	uid := sess.UserID()
	ctx, cancel := s.opCtx()
	defer cancel()

	res := s.presence.Add(ctx, uid)
	sess.presenceVia = res.Status
	sess.setState(StateActive)
	if err := s.users.UpdateUserOnlineStatus(ctx, uid, true); err != nil {
		s.log.Warn("persist online status failed", zap.String("user", uid), zap.Error(err))
	}

	pub := sess.User.Public()
	pub.IsOnline = true
	s.router.BroadcastToAll(EventUserOnline, pub, sess)

	if err := s.sendOnlineUsers(ctx, sess); err != nil {
		s.log.Warn("send online users failed", zap.String("session", sess.ID), zap.Error(err))
	}
	s.log.Info("session active",
		zap.String("session", sess.ID),
		zap.String("user", uid),
		zap.String("presence", res.Status.String()),
		zap.Int64("sessions", res.Sessions))
	return nil
}

func (s *Server) sendOnlineUsers(ctx context.Context, sess *Session) error {
	ids := s.presence.Members(ctx)
	users, err := s.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return errs.WrapMsg(err, "resolve online users", "count", len(ids))
	}
	list := make([]usermodel.OnlineUser, 0, len(users))
	for _, u := range users {
		list = append(list, u.Online())
	}
	s.router.SendToSession(sess, EventOnlineUsers, list)
	return nil
}

// Dispatch 处理一个入站帧。任何错误或 panic 只记录，会话保持可用。
func (s *Server) Dispatch(sess *Session, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		s.reject(sess, "invalid", err)
		return
	}
	ev, err := env.Decode()
	if err != nil {
		s.reject(sess, eventLabel(env.Event), err)
		return
	}
	if err := safe.Run(func() error { return s.handle(sess, ev) }); err != nil {
		metrics.InboundEvents.WithLabelValues(ev.Name(), "failed").Inc()
		s.log.Error("handle event failed",
			zap.String("event", ev.Name()),
			zap.String("session", sess.ID),
			zap.String("user", sess.UserID()),
			zap.Error(err))
		return
	}
	metrics.InboundEvents.WithLabelValues(ev.Name(), "ok").Inc()
}

func (s *Server) reject(sess *Session, event string, err error) {
	metrics.InboundEvents.WithLabelValues(event, "rejected").Inc()
	s.log.Warn("drop inbound frame",
		zap.String("event", event),
		zap.String("session", sess.ID),
		zap.String("user", sess.UserID()),
		zap.Error(err))
}

// eventLabel 未知事件名不进入 metrics label
func eventLabel(name string) string {
	switch name {
	case EventGetOnlineUsers, EventJoinRoom, EventLeaveRoom, EventSendMessage:
		return name
	}
	return "unknown"
}

func (s *Server) handle(sess *Session, ev Event) error {
	switch e := ev.(type) {
	case GetOnlineUsers:
		ctx, cancel := s.opCtx()
		defer cancel()
		return s.sendOnlineUsers(ctx, sess)
	case JoinRoom:
		if sess.Join(e.RoomID) {
			s.log.Debug("join room", zap.String("user", sess.UserID()), zap.String("room", e.RoomID))
		}
		return nil
	case LeaveRoom:
		sess.Leave(e.RoomID)
		return nil
	case SendMessage:
		s.relay(sess, e)
		return nil
	default:
		return errs.ErrProtocol.WrapMsg("unhandled event", "event", ev.Name())
	}
}

// relay 原样带出客户端字段，并补 createdAt/userId/user
func (s *Server) relay(sess *Session, e SendMessage) {
	msg := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		msg[k] = v
	}
	msg["createdAt"] = s.now().UTC()
	msg["userId"] = sess.UserID()
	msg["user"] = sess.User.Name
	n := s.router.BroadcastToRoom(e.RoomID, EventReceiveMessage, msg)
	s.log.Debug("message relayed",
		zap.String("room", e.RoomID),
		zap.String("user", sess.UserID()),
		zap.Int("recipients", n))
}

// Close 关闭会话，只生效一次。
// 已激活的会话：在线集合 Remove；该用户已无会话时持久化 isOnline=false 并广播 user-offline。
func (s *Server) Close(sess *Session, reason string) {
	sess.lifecycle.Lock()
	prev := sess.State()
	if prev == StateClosed {
		sess.lifecycle.Unlock()
		return
	}
	via := sess.presenceVia
	sess.setState(StateClosed)
	close(sess.done)
	sess.lifecycle.Unlock()

	s.router.Unregister(sess)
	deadline := time.Now().Add(s.opts.WriteWait)
	_ = sess.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	_ = sess.conn.Close()

	uid := sess.UserID()
	log := s.log.With(zap.String("session", sess.ID), zap.String("user", uid), zap.String("reason", reason))
	if prev != StateActive {
		log.Info("session closed before activation")
		return
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	res := s.presence.Release(ctx, uid, via)
	if res.Sessions > 0 {
		log.Info("session closed", zap.Int64("remaining", res.Sessions))
		return
	}
	if err := s.users.UpdateUserOnlineStatus(ctx, uid, false); err != nil {
		log.Warn("persist offline status failed", zap.Error(err))
	}
	s.router.BroadcastToAll(EventUserOffline, map[string]string{"userId": uid}, nil)
	log.Info("user offline", zap.String("presence", res.Status.String()))
}

// Shutdown 拒绝新会话并关闭现有会话
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	for _, sess := range s.router.Sessions() {
		if err := ctx.Err(); err != nil {
			return errs.WrapMsg(err, "realtime shutdown", "remaining", s.router.Count())
		}
		s.Close(sess, "server shutdown")
	}
	s.log.Info("realtime server stopped")
	return nil
}
