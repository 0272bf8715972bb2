package qibridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/testutil"
	"github.com/hupe1980/qibridge/session"
	"github.com/hupe1980/qibridge/transport/loopback"
)

func newBridge(t *testing.T) (*Bridge, *testutil.Speech) {
	t.Helper()
	broker := loopback.New(func(o *loopback.Options) { o.Name = "robot" })
	t.Cleanup(func() { _ = broker.Close() })
	speech, err := testutil.NewSpeech(broker)
	require.NoError(t, err)

	b := New(broker, func(o *Options) { o.Config.Endpoint = "loop://robot" })
	return b, speech
}

func TestNewDefaults(t *testing.T) {
	b := New(nil)
	assert.Equal(t, session.DefaultConfig.Endpoint, b.Config().Endpoint)

	_, err := b.Connect(context.Background())
	assert.ErrorIs(t, err, core.ErrConnection)
}

func TestWithSession(t *testing.T) {
	b, speech := newBridge(t)

	var kept *Session
	err := b.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		kept = s
		tts, err := s.Service(ctx, testutil.SpeechService)
		if err != nil {
			return err
		}
		return tts.Invoke(ctx, "say", "Hello, world")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello, world"}, speech.Spoken())
	assert.False(t, kept.IsConnected())
}

func TestWithSessionReturnsCallbackError(t *testing.T) {
	b, _ := newBridge(t)
	boom := errors.New("boom")
	err := b.WithSession(context.Background(), func(context.Context, *Session) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestConnectSharesConfig(t *testing.T) {
	b, _ := newBridge(t)
	s1, err := b.Connect(context.Background())
	require.NoError(t, err)
	defer s1.Close()
	s2, err := b.Connect(context.Background())
	require.NoError(t, err)
	defer s2.Close()

	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, "loop://robot", s1.Endpoint())

	lang, err := func() (string, error) {
		tts, err := s2.Service(context.Background(), testutil.SpeechService)
		if err != nil {
			return "", err
		}
		return session.CallAs[string](context.Background(), tts, "getLanguage")
	}()
	require.NoError(t, err)
	assert.Equal(t, "English", lang)
}
