package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorInterface(t *testing.T) {
	tests := []struct {
		name     string
		err      Error
		wantCode int
		wantCat  Category
		wantSev  Severity
	}{
		{
			name:     "invalid state",
			err:      InvalidState("send", "Connecting", "Connected"),
			wantCode: CodeInvalidState,
			wantCat:  CategoryState,
			wantSev:  SeverityError,
		},
		{
			name:     "unexpected status",
			err:      UnexpectedStatus("http://x/negotiate", 500),
			wantCode: CodeUnexpectedStatus,
			wantCat:  CategoryNegotiation,
			wantSev:  SeverityError,
		},
		{
			name:     "transport unavailable",
			err:      TransportUnavailable("ServerSentEvents"),
			wantCode: CodeTransportUnavailable,
			wantCat:  CategoryTransport,
			wantSev:  SeverityWarning,
		},
		{
			name:     "invalid config",
			err:      InvalidConfig("url", "required"),
			wantCode: CodeInvalidConfig,
			wantCat:  CategoryConfig,
			wantSev:  SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got, tt.wantCode)
			}
			if got := tt.err.Category(); got != tt.wantCat {
				t.Errorf("Category() = %v, want %v", got, tt.wantCat)
			}
			if got := tt.err.Severity(); got != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", got, tt.wantSev)
			}
			if msg := tt.err.Error(); msg == "" {
				t.Error("Error() returned empty string")
			}
		})
	}
}

func TestSentinelsMatchByCode(t *testing.T) {
	err := fmt.Errorf("start: %w", StoppedWhileConnecting())

	assert.True(t, stderrors.Is(err, ErrStoppedWhileConnecting))
	assert.False(t, stderrors.Is(err, ErrInvalidState))
	assert.True(t, IsCode(err, CodeStoppedWhileConnecting))
	assert.True(t, IsCategory(err, CategoryState))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Cannot start a connection that is not in the 'Disconnected' state.",
		InvalidState("start", "Connected", "Disconnected").Error())
	assert.Equal(t, "Cannot send data if the connection is not in the 'Connected' state.",
		InvalidState("send", "Connecting", "Connected").Error())
	assert.Equal(t, "Unexpected status code returned from negotiate '404'",
		UnexpectedStatus("u", 404).Error())
	assert.Equal(t, "Negotiate redirection limit exceeded.", RedirectLimitExceeded("u").Error())
	assert.Equal(t, "boom from the server", ServerReported("boom from the server").Error())
	assert.Contains(t, LegacyServer().Error(), "legacy server")
	assert.Equal(t, "'WebSockets' is not supported in your environment.",
		TransportUnavailable("WebSockets").Error())
}

func TestAggregateFallback(t *testing.T) {
	failure := TransportFailed("WebSockets", stderrors.New("dial refused"))
	skip := TransportDisabled("LongPolling")

	err := AggregateFallback([]error{failure, skip})

	require.True(t, stderrors.Is(err, ErrAggregateFallback))
	assert.True(t, stderrors.Is(err, ErrTransportFailed))
	assert.True(t, stderrors.Is(err, ErrTransportRejected))
	assert.True(t, strings.HasPrefix(err.Error(),
		"Unable to connect to the server with any of the available transports. "))
	assert.Contains(t, err.Error(), "WebSockets failed: dial refused")
	assert.Contains(t, err.Error(), "'LongPolling' is disabled by the client.")

	data, ok := err.Data().(*FallbackErrorData)
	require.True(t, ok)
	assert.Len(t, data.Reasons, 2)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NegotiationFailed("http://x/negotiate", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithContext(t *testing.T) {
	err := TransportClosed("WebSockets")
	withCtx := err.WithContext(&Context{ConnectionID: "abc", Operation: "send"})

	require.NotNil(t, withCtx.Context())
	assert.Equal(t, "abc", withCtx.Context().ConnectionID)
	assert.False(t, withCtx.Context().Timestamp.IsZero())
	assert.Empty(t, err.Context().ConnectionID, "original must not be mutated")
}

func TestToJSON(t *testing.T) {
	err := MalformedResponse("http://x/negotiate", stderrors.New("unexpected EOF"))

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(CodeMalformedResponse), decoded["code"])
	assert.Equal(t, "MalformedResponse", decoded["name"])
	assert.Equal(t, "unexpected EOF", decoded["details"])
	assert.Equal(t, "unexpected EOF", decoded["cause"])
}

func TestUnknownCode(t *testing.T) {
	assert.Equal(t, "UnknownError", GetErrorCodeName(42))
	assert.Equal(t, CategoryInternal, GetErrorCodeCategory(42))
	_, ok := GetErrorCodeInfo(42)
	assert.False(t, ok)
}
