package chat

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	usermodel "PPChat/module/user/model"
	"PPChat/service/storage"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// 帧丢弃原因（metrics label）
const (
	dropQueueFull = "queue_full"
	dropClosed    = "closed"
)

// Session 一条已认证的实时连接及其房间成员关系。
// send 队列由唯一的写协程消费，且永不关闭；关闭信号走 done。
type Session struct {
	ID        string
	User      *usermodel.User
	CreatedAt time.Time

	conn Conn
	send chan []byte
	done chan struct{}

	// lifecycle 串行化激活与关闭，保证在线集合的增减成对。
	// 激活期间会持有它做存储 I/O（上限 OpTimeout），状态读取不走这把锁。
	lifecycle sync.Mutex
	state     atomic.Int32
	// presenceVia 激活时 Add 落在哪个后端，关闭时按同一后端撤销
	presenceVia storage.Status

	mu    sync.RWMutex
	rooms map[string]struct{}
}

func newSession(user *usermodel.User, conn Conn, queue int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: time.Now(),
		conn:      conn,
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
	}
}

func (s *Session) UserID() string {
	return s.User.UserID()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// setState 只在持有 lifecycle 时调用
func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Done 会话关闭后可读
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Join 加入房间，返回是否新加入
func (s *Session) Join(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = struct{}{}
	return true
}

func (s *Session) Leave(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		return false
	}
	delete(s.rooms, room)
	return true
}

func (s *Session) InRoom(room string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[room]
	return ok
}

func (s *Session) Rooms() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// enqueue 非阻塞投递；返回空串表示成功，否则为丢弃原因
func (s *Session) enqueue(frame []byte) string {
	select {
	case <-s.done:
		return dropClosed
	default:
	}
	select {
	case s.send <- frame:
		return ""
	default:
		return dropQueueFull
	}
}

func (s *Session) write(frame []byte, wait time.Duration) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}
