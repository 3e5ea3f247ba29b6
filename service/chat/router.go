package chat

import (
	"sync"

	"PPChat/logger"
	"PPChat/service/metrics"

	"go.uber.org/zap"
)

// Router 本进程会话索引与扇出。投递只做非阻塞入队，慢会话丢帧不阻塞发送方。
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // sessionID -> session
	byUser   map[string]map[string]*Session // userID -> (sessionID -> session)
	log      *zap.Logger
}

func NewRouter() *Router {
	return &Router{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]*Session),
		log:      logger.Named("router"),
	}
}

func (r *Router) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	uid := s.UserID()
	mm := r.byUser[uid]
	if mm == nil {
		mm = make(map[string]*Session)
		r.byUser[uid] = mm
	}
	mm[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

// Unregister 返回会话此前是否在索引中
func (r *Router) Unregister(s *Session) bool {
	r.mu.Lock()
	_, ok := r.sessions[s.ID]
	if ok {
		delete(r.sessions, s.ID)
		uid := s.UserID()
		if mm := r.byUser[uid]; mm != nil {
			delete(mm, s.ID)
			if len(mm) == 0 {
				delete(r.byUser, uid)
			}
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return ok
}

func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions 快照
func (r *Router) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Router) UserSessions(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.byUser[userID]
	out := make([]*Session, 0, len(mm))
	for _, s := range mm {
		out = append(out, s)
	}
	return out
}

// BroadcastToAll 发给除 exclude 外的所有已激活会话，返回成功入队数
func (r *Router) BroadcastToAll(event string, payload any, exclude *Session) int {
	all := r.Sessions()
	targets := all[:0]
	for _, s := range all {
		if s != exclude && s.State() == StateActive {
			targets = append(targets, s)
		}
	}
	return r.fanout(targets, event, payload)
}

// BroadcastToRoom 发给房间内所有已激活会话（含发送者自身，如果已加入）
func (r *Router) BroadcastToRoom(roomID, event string, payload any) int {
	all := r.Sessions()
	targets := all[:0]
	for _, s := range all {
		if s.State() == StateActive && s.InRoom(roomID) {
			targets = append(targets, s)
		}
	}
	return r.fanout(targets, event, payload)
}

func (r *Router) SendToSession(s *Session, event string, payload any) bool {
	return r.fanout([]*Session{s}, event, payload) == 1
}

func (r *Router) fanout(targets []*Session, event string, payload any) int {
	if len(targets) == 0 {
		return 0
	}
	frame, err := Encode(event, payload)
	if err != nil {
		r.log.Error("encode frame failed", zap.String("event", event), zap.Error(err))
		metrics.DroppedFrames.WithLabelValues(event, "encode").Add(float64(len(targets)))
		return 0
	}
	delivered := 0
	for _, s := range targets {
		if reason := s.enqueue(frame); reason != "" {
			metrics.DroppedFrames.WithLabelValues(event, reason).Inc()
			r.log.Warn("drop frame",
				zap.String("event", event),
				zap.String("reason", reason),
				zap.String("session", s.ID),
				zap.String("user", s.UserID()))
			continue
		}
		delivered++
	}
	return delivered
}
