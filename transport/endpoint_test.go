package transport

import (
	"testing"

	"github.com/hupe1980/qibridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tcp://127.0.0.1:9559", "tcp://127.0.0.1:9559"},
		{"tcp://nao.local", "tcp://nao.local:9559"},
		{"tcps://10.0.0.2:9503", "tcps://10.0.0.2:9503"},
		{"10.0.0.2:9000", "tcp://10.0.0.2:9000"},
		{"  nao.local ", "tcp://nao.local:9559"},
		{"loop://bench", "loop://bench"},
		{"/ip4/127.0.0.1/tcp/9559", "tcp://127.0.0.1:9559"},
		{"/ip6/::1/tcp/9559", "tcp://[::1]:9559"},
		{"/dns/nao.local/tcp/9000", "tcp://nao.local:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEndpoint(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpointErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"http://nao.local",
		"tcp://",
		"/ip4/127.0.0.1",
		"/tcp/9559",
		"/ip4/not-an-ip/tcp/1",
	} {
		_, err := ParseEndpoint(in)
		assert.ErrorIs(t, err, core.ErrConnection, in)
	}
}
