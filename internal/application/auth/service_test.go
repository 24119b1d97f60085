package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainAuth "github.com/lpsaring/lpsaring/internal/domain/auth"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

type nopLogger struct{}

func newNopLogger() logger.Interface { return &nopLogger{} }

func (l *nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) With(args ...any) logger.Interface               { return l }
func (l *nopLogger) Named(name string) logger.Interface              { return l }

type memoryTokens struct {
	byHash map[string]*domainAuth.RefreshToken
	nextID uint
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byHash: map[string]*domainAuth.RefreshToken{}, nextID: 1}
}

func (m *memoryTokens) Create(ctx context.Context, t *domainAuth.RefreshToken) error {
	if t.ID() == 0 {
		if err := t.SetID(m.nextID); err != nil {
			return err
		}
		m.nextID++
	}
	m.byHash[t.TokenHash()] = t
	return nil
}

func (m *memoryTokens) Update(ctx context.Context, t *domainAuth.RefreshToken) error {
	if _, ok := m.byHash[t.TokenHash()]; !ok {
		return errors.NewNotFound("refresh token not found")
	}
	m.byHash[t.TokenHash()] = t
	return nil
}

func (m *memoryTokens) GetByHashForUpdate(ctx context.Context, tokenHash string) (*domainAuth.RefreshToken, error) {
	t, ok := m.byHash[tokenHash]
	if !ok {
		return nil, errors.NewNotFound("refresh token not found")
	}
	return t, nil
}

func (m *memoryTokens) GetByHash(ctx context.Context, tokenHash string) (*domainAuth.RefreshToken, error) {
	return m.GetByHashForUpdate(ctx, tokenHash)
}

func (m *memoryTokens) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, t := range m.byHash {
		if t.UserID() == userID && !t.IsRevoked() {
			if err := t.RevokeAndLink(0, time.Now().UTC()); err != nil {
				return err
			}
		}
	}
	return nil
}

type inlineTx struct{}

func (inlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(tokens *memoryTokens) *Service {
	return NewService(tokens, inlineTx{}, &sharedConfig.AuthConfig{RefreshTokenTTLHours: 1}, newNopLogger())
}

func TestRotateReplacesToken(t *testing.T) {
	tokens := newMemoryTokens()
	svc := newTestService(tokens)
	userID := uuid.New()

	raw, err := svc.Issue(context.Background(), userID, "fp-1")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	newRaw, err := svc.Rotate(context.Background(), raw, "fp-1")
	require.NoError(t, err)
	assert.NotEqual(t, raw, newRaw)

	old := tokens.byHash[domainAuth.HashToken(raw)]
	require.NotNil(t, old)
	assert.True(t, old.IsRevoked())
	require.NotNil(t, old.ReplacedByID())

	replacement := tokens.byHash[domainAuth.HashToken(newRaw)]
	require.NotNil(t, replacement)
	assert.Equal(t, *old.ReplacedByID(), replacement.ID())
	assert.False(t, replacement.IsRevoked())
}

func TestRotateTwiceFailsAndRevokesFamily(t *testing.T) {
	tokens := newMemoryTokens()
	svc := newTestService(tokens)
	userID := uuid.New()

	raw, err := svc.Issue(context.Background(), userID, "")
	require.NoError(t, err)

	newRaw, err := svc.Rotate(context.Background(), raw, "")
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), raw, "")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// Reuse burns every live session, the fresh replacement included.
	replacement := tokens.byHash[domainAuth.HashToken(newRaw)]
	require.NotNil(t, replacement)
	assert.True(t, replacement.IsRevoked())
}

func TestRotateUnknownTokenFails(t *testing.T) {
	svc := newTestService(newMemoryTokens())

	_, err := svc.Rotate(context.Background(), "never-issued", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRotateFingerprintMismatch(t *testing.T) {
	tokens := newMemoryTokens()
	svc := newTestService(tokens)

	raw, err := svc.Issue(context.Background(), uuid.New(), "fp-a")
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), raw, "fp-b")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}
