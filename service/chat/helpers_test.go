package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	usermodel "PPChat/module/user/model"
	"PPChat/service/storage"
	"PPChat/tools/errs"
	jwtlib "PPChat/tools/security"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testJWT = jwtlib.DefaultOptions([]byte("realtime-test-secret"))

type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	controls []int
	written  [][]byte
	failOn   bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn {
		return errs.New("broken pipe")
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) WriteControl(mt int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, mt)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDirectory struct {
	mu     sync.Mutex
	users  map[string]*usermodel.User
	online map[string]bool
	panic  bool
}

func newFakeDirectory(names ...string) *fakeDirectory {
	d := &fakeDirectory{users: map[string]*usermodel.User{}, online: map[string]bool{}}
	for _, n := range names {
		d.add(n)
	}
	return d
}

func (d *fakeDirectory) add(name string) *usermodel.User {
	u := &usermodel.User{ID: primitive.NewObjectID(), Name: name, Email: name + "@x.io"}
	d.mu.Lock()
	d.users[u.UserID()] = u
	d.mu.Unlock()
	return u
}

func (d *fakeDirectory) byName(name string) *usermodel.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func (d *fakeDirectory) FindUserByID(_ context.Context, id string) (*usermodel.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (d *fakeDirectory) FindUsersByIDs(_ context.Context, ids []string) ([]*usermodel.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panic {
		panic("directory exploded")
	}
	out := make([]*usermodel.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) UpdateUserOnlineStatus(_ context.Context, id string, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return errs.ErrRecordNotFound.Wrap()
	}
	d.online[id] = online
	return nil
}

func (d *fakeDirectory) isOnline(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[id]
}

func newTestServer(t *testing.T, presence storage.PresenceStore, dir *fakeDirectory, opts Options) *Server {
	t.Helper()
	if presence == nil {
		presence = storage.NewOnlineStore(nil, storage.OnlineConfig{})
	}
	return NewServer(opts, presence, dir, NewAuthenticator(testJWT, dir))
}

func open(t *testing.T, s *Server, u *usermodel.User) (*Session, *fakeConn) {
	t.Helper()
	c := &fakeConn{}
	sess, err := s.Open(u, c)
	require.NoError(t, err)
	return sess, c
}

// drain 取出会话队列中已有的帧
func drain(sess *Session) []Envelope {
	var out []Envelope
	for {
		select {
		case b := <-sess.send:
			var env Envelope
			if json.Unmarshal(b, &env) == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func events(envs []Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := Encode(event, data)
	require.NoError(t, err)
	return b
}
