package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"
	jwtlib "PPChat/tools/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/api/idtoken"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*usermodel.User
	fail  error
}

func newMemStore() *memStore { return &memStore{users: map[string]*usermodel.User{}} }

func (m *memStore) FindUserByID(_ context.Context, id string) (*usermodel.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (m *memStore) match(pred func(*usermodel.User) bool) (*usermodel.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, u := range m.users {
		if pred(u) {
			return u, nil
		}
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*usermodel.User, error) {
	email = usermodel.NormalizeEmail(email)
	return m.match(func(u *usermodel.User) bool { return u.Email == email })
}

func (m *memStore) FindByGoogleID(_ context.Context, gid string) (*usermodel.User, error) {
	return m.match(func(u *usermodel.User) bool { return u.GoogleID != "" && u.GoogleID == gid })
}

func (m *memStore) Create(_ context.Context, u *usermodel.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = primitive.NewObjectID()
	m.users[u.UserID()] = u
	return nil
}

func (m *memStore) LinkGoogle(_ context.Context, id, gid, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errs.ErrRecordNotFound.Wrap()
	}
	u.GoogleID = gid
	if avatar != "" {
		u.Avatar = avatar
	}
	return nil
}

type fakeVerifier struct {
	profile *GoogleProfile
	err     error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*GoogleProfile, error) {
	return f.profile, f.err
}

var jwtOpts = jwtlib.DefaultOptions([]byte("svc-test"))

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, jwtOpts, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterParams{Name: "Ann", Email: "Ann@x.io", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ann@x.io", res.User.Email)

	claims, err := svc.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID())

	stored, _ := store.FindByEmail(ctx, "ann@x.io")
	assert.NotEqual(t, "secret1", stored.Password)

	_, err = svc.Register(ctx, RegisterParams{Name: "Ann", Email: "ann@x.io", Password: "secret1"})
	assert.True(t, errors.Is(err, errs.ErrUserExists))

	res, err = svc.Login(ctx, LoginParams{Email: "ann@x.io", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, LoginParams{Email: "ann@x.io", Password: "wrong!"})
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
	_, err = svc.Login(ctx, LoginParams{Email: "nobody@x.io", Password: "secret1"})
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemStore(), jwtOpts, nil)
	ctx := context.Background()

	cases := []RegisterParams{
		{Name: " A ", Email: "a@x.io", Password: "secret1"},
		{Name: "Ann", Email: "not-an-email", Password: "secret1"},
		{Name: "Ann", Email: "a@x.io", Password: "12345"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.True(t, errors.Is(err, errs.ErrArgs), "%+v", in)
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errs.ErrStoreUnavailable.Wrap()
	svc := NewService(store, jwtOpts, nil)

	_, err := svc.Register(context.Background(), RegisterParams{Name: "Ann", Email: "a@x.io", Password: "secret1"})
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
}

func TestGoogleSignIn(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_, err := NewService(store, jwtOpts, nil).GoogleSignIn(ctx, "cred")
	assert.True(t, errors.Is(err, errs.ErrNoPermission))

	// new user
	p := &GoogleProfile{Subject: "g-1", Email: "gina@x.io", Name: "", Picture: "https://img/1.png"}
	svc := NewService(store, jwtOpts, fakeVerifier{profile: p})
	res, err := svc.GoogleSignIn(ctx, "cred")
	require.NoError(t, err)
	assert.Equal(t, "gina", res.User.Name)
	assert.Equal(t, "https://img/1.png", res.User.Avatar)

	// same google account, avatar refreshed
	p2 := *p
	p2.Picture = "https://img/2.png"
	res2, err := svc.SignInWithGoogle(ctx, &p2)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, res2.User.ID)
	assert.Equal(t, "https://img/2.png", res2.User.Avatar)

	// existing password user gets linked by email
	pw, err := svc.Register(ctx, RegisterParams{Name: "Hal", Email: "hal@x.io", Password: "secret1"})
	require.NoError(t, err)
	res3, err := svc.SignInWithGoogle(ctx, &GoogleProfile{Subject: "g-2", Email: "HAL@x.io", Name: "Hal G"})
	require.NoError(t, err)
	assert.Equal(t, pw.User.ID, res3.User.ID)
	linked, _ := store.FindByGoogleID(ctx, "g-2")
	assert.Equal(t, pw.User.ID, linked.UserID())

	_, err = NewService(store, jwtOpts, fakeVerifier{err: errs.ErrTokenInvalid.Wrap()}).GoogleSignIn(ctx, "bad")
	assert.True(t, errors.Is(err, errs.ErrTokenInvalid))
}

func TestGoogleVerifyIDToken(t *testing.T) {
	g := NewGoogle(GoogleConfig{ClientID: "client-1"})
	g.validate = func(_ context.Context, tok, aud string) (*idtoken.Payload, error) {
		if tok != "good" || aud != "client-1" {
			return nil, errors.New("idtoken: invalid")
		}
		return &idtoken.Payload{Subject: "g-9", Claims: map[string]interface{}{
			"email": "z@x.io", "email_verified": true, "name": "Zed", "picture": "p.png",
		}}, nil
	}

	p, err := g.VerifyIDToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, GoogleProfile{Subject: "g-9", Email: "z@x.io", EmailVerified: true, Name: "Zed", Picture: "p.png"}, *p)

	_, err = g.VerifyIDToken(context.Background(), "bad")
	assert.True(t, errors.Is(err, errs.ErrTokenInvalid))
	_, err = g.VerifyIDToken(context.Background(), "")
	assert.True(t, errors.Is(err, errs.ErrArgs))

	assert.Contains(t, g.AuthCodeURL("st"), "state=st")
	assert.Contains(t, g.AuthCodeURL("st"), "client_id=client-1")
}
