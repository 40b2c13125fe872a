package connection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// TestFallbackChoosesFirstViableInServerOrder checks, over random menus,
// selections, environments and connect failures, that candidates are tried
// in server order and the first one that passes every filter and connects
// is chosen.
func TestFallbackChoosesFirstViableInServerOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(20240611))
	names := []string{"WebSockets", "ServerSentEvents", "LongPolling", "Carrier"}
	formatNames := []string{"Text", "Binary"}

	for i := 0; i < 300; i++ {
		var entries []protocol.AvailableTransport
		for n := rng.Intn(6); n > 0; n-- {
			var formats []string
			for _, f := range formatNames {
				if rng.Intn(2) == 0 {
					formats = append(formats, f)
				}
			}
			entries = append(entries, offer(names[rng.Intn(len(names))], formats...))
		}
		allowed := transport.Kind(1 + rng.Intn(int(transport.All)))
		supported := transport.Kind(rng.Intn(int(transport.All) + 1))
		failing := transport.Kind(rng.Intn(int(transport.All) + 1))
		format := protocol.Text
		if rng.Intn(2) == 0 {
			format = protocol.Binary
		}

		var (
			tried  []transport.Kind
			chosen transport.Kind
			known  bool
		)
		for _, e := range entries {
			kind, ok := transport.ParseKind(e.Transport)
			if !ok {
				continue
			}
			known = true
			if allowed&kind == 0 || !e.Formats().Has(format) || supported&kind == 0 {
				continue
			}
			tried = append(tried, kind)
			if failing&kind == 0 {
				chosen = kind
				break
			}
		}

		name := fmt.Sprintf("case %d: menu=%v allowed=%s supported=%s failing=%s format=%s",
			i, entries, allowed, supported, failing, format)

		env := newFakeEnv(supported)
		env.build = func(kind transport.Kind) *fakeTransport {
			if failing&kind != 0 {
				return &fakeTransport{connectErr: errors.New("refused")}
			}
			return &fakeTransport{}
		}
		c := newTestConnection(t, negotiateOK(menu("abc", entries...)), env,
			WithTransport(transport.ByKind(allowed)))

		err := c.StartWithFormat(context.Background(), format)

		var created []transport.Kind
		for _, ft := range env.Created() {
			created = append(created, ft.kind)
		}
		assert.Equal(t, tried, created, name)

		switch {
		case chosen != transport.None:
			require.NoError(t, err, name)
			assert.Equal(t, chosen, env.Last().kind, name)
			assert.Equal(t, Connected, c.State(), name)
		case !known:
			assert.True(t, errors.Is(err, rterrors.ErrNoCommonTransports), name)
		default:
			assert.True(t, errors.Is(err, rterrors.ErrAggregateFallback), name)
			assert.Equal(t, Disconnected, c.State(), name)
		}
	}
}
