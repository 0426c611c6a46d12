package portal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AveryLor/BiasBreaker-sub000/internal/client/store"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(portalURL string) *config.Config {
	return &config.Config{
		PortalURL:              portalURL,
		NewsAPIURL:             "http://127.0.0.1:1",
		NewsAPITimeout:         time.Second,
		SessionRefreshInterval: time.Hour,
		MirrorInterval:         time.Hour,
		MirrorMaxAge:           time.Hour,
		AuthWaitTimeout:        time.Second,
		SignInPath:             "/auth/signin",
	}
}

func TestNew_RejectsBadPortalURL(t *testing.T) {
	_, err := New(testConfig("not a url"), store.NewMemory(), zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_CreatesStoreDir(t *testing.T) {
	cfg := testConfig("http://localhost:3000")
	cfg.ClientStorePath = filepath.Join(t.TempDir(), "nested", "store.db")

	p, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestSearch_EmptyQuery(t *testing.T) {
	p, err := New(testConfig("http://localhost:3000"), store.NewMemory(), zap.NewNop())
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "   ")
	assert.EqualError(t, err, "Please enter a topic to search")
}

func TestWhoami_PersistedIdentity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, store.KeyUser, `{"id":"7","name":"Ada"}`))
	p, err := New(testConfig("http://localhost:3000"), st, zap.NewNop())
	require.NoError(t, err)

	user, err := p.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
}

func TestWhoami_NobodyWhenGatewayDown(t *testing.T) {
	p, err := New(testConfig("http://127.0.0.1:1"), store.NewMemory(), zap.NewNop())
	require.NoError(t, err)

	_, err = p.Whoami(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
