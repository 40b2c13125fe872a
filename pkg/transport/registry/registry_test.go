package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/longpolling"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/sse"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/websocket"
)

func TestDefaultSupportsEverything(t *testing.T) {
	for _, k := range transport.All.Kinds() {
		assert.True(t, Default.Supports(k), k.String())
	}

	ws, err := Default.New(transport.WebSockets, transport.Config{})
	require.NoError(t, err)
	assert.IsType(t, &websocket.Transport{}, ws)

	s, err := Default.New(transport.ServerSentEvents, transport.Config{})
	require.NoError(t, err)
	assert.IsType(t, &sse.Transport{}, s)

	lp, err := Default.New(transport.LongPolling, transport.Config{})
	require.NoError(t, err)
	assert.IsType(t, &longpolling.Transport{}, lp)
	_, keepAlive := lp.(transport.KeepAliver)
	assert.True(t, keepAlive)
}

func TestOnly(t *testing.T) {
	r := Only(transport.LongPolling)
	assert.True(t, r.Supports(transport.LongPolling))
	assert.False(t, r.Supports(transport.WebSockets))

	_, err := r.New(transport.WebSockets, transport.Config{})
	assert.ErrorIs(t, err, rterrors.ErrTransportUnavailable)
}

func TestRegister(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(transport.WebSockets|transport.LongPolling, nil))
	assert.Error(t, r.Register(transport.None, nil))
	assert.ErrorIs(t, r.Register(transport.WebSockets, nil), rterrors.ErrInvalidArgument)
	assert.False(t, r.Supports(transport.WebSockets))

	require.NoError(t, r.Register(transport.WebSockets, func(cfg transport.Config) transport.Transport {
		return websocket.New(cfg)
	}))
	assert.True(t, r.Supports(transport.WebSockets))

	r.Unregister(transport.WebSockets)
	assert.False(t, r.Supports(transport.WebSockets))
}
