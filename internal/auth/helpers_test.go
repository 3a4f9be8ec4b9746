package auth

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskmanager-auth/internal/logging"
	"github.com/redmonkez12/taskmanager-auth/internal/user"
)

const (
	testVerifyBase = "http://api.test/api/v1/users/verify-email"
	testResetBase  = "http://app.test/reset-password"
)

type sentMail struct {
	to       string
	username string
	link     string
}

type fakeMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
	err           error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, username, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, sentMail{to: to, username: username, link: link})
	return m.err
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, username, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{to: to, username: username, link: link})
	return m.err
}

func (m *fakeMailer) lastVerification(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.verifications)
	return m.verifications[len(m.verifications)-1]
}

func (m *fakeMailer) lastReset(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets)
	return m.resets[len(m.resets)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.verifications) + len(m.resets)
}

type testEnv struct {
	service *Service
	store   user.Store
	mailer  *fakeMailer
	tokens  *TokenIssuer
	mr      *miniredis.Miniredis
}

// newTestEnv wires a service over a miniredis-backed store. Mail is sent
// synchronously so tests can read it right after the call returns.
func newTestEnv(t *testing.T, opts ServiceOptions) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if opts.ForgotPasswordURL == "" {
		opts.ForgotPasswordURL = testResetBase
	}

	store := user.NewRedisStore(client)
	mailer := &fakeMailer{}
	tokens := NewTokenIssuer(testAuthConfig())

	svc := NewService(store, NewHasher(testHashParams), tokens, NewOneTimeTokens(OneTimeTokenTTL), mailer, logging.Discard(), opts)
	svc.sendMail = func(fn func(ctx context.Context) error, _ string, _ ...any) {
		_ = fn(context.Background())
	}

	return &testEnv{service: svc, store: store, mailer: mailer, tokens: tokens, mr: mr}
}

// register creates alice and returns her with the raw verification token.
func (e *testEnv) register(t *testing.T) (*user.User, string) {
	t.Helper()

	u, err := e.service.Register(context.Background(), "a@b.com", "alice", "secret", testVerifyBase)
	require.NoError(t, err)

	return u, rawTokenFromLink(t, e.mailer.lastVerification(t).link, testVerifyBase)
}

func rawTokenFromLink(t *testing.T, link, base string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(link, base+"/"), "link %q", link)
	return strings.TrimPrefix(link, base+"/")
}
