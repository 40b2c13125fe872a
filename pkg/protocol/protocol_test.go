package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferFormat(t *testing.T) {
	assert.Equal(t, "Text", Text.String())
	assert.Equal(t, "Binary", Binary.String())
	assert.Equal(t, "Text|Binary", AllFormats.String())
	assert.Equal(t, "None", TransferFormat(0).String())

	assert.True(t, AllFormats.Has(Binary))
	assert.False(t, Text.Has(Binary))
	assert.False(t, Text.Has(0))
	assert.True(t, Text.Valid())
	assert.False(t, AllFormats.Valid())

	f, err := ParseTransferFormat("binary")
	require.NoError(t, err)
	assert.Equal(t, Binary, f)
	_, err = ParseTransferFormat("xml")
	assert.Error(t, err)
}

func TestTransferFormatText(t *testing.T) {
	var v struct {
		Format TransferFormat `json:"format"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"format":"Text"}`), &v))
	assert.Equal(t, Text, v.Format)

	_, err := json.Marshal(struct{ F TransferFormat }{AllFormats})
	assert.Error(t, err)
}

func TestDecodeNegotiateResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, r *NegotiateResponse)
	}{
		{
			name: "full menu",
			body: `{"connectionId":"abc","availableTransports":[{"transport":"WebSockets","transferFormats":["Text","Binary"]},{"transport":"LongPolling","transferFormats":["Text"]}]}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.Equal(t, "abc", r.ConnectionID)
				require.Len(t, r.AvailableTransports, 2)
				assert.Equal(t, "WebSockets", r.AvailableTransports[0].Transport)
				assert.Equal(t, AllFormats, r.AvailableTransports[0].Formats())
				assert.Equal(t, Text, r.AvailableTransports[1].Formats())
				assert.False(t, r.IsRedirect())
				assert.False(t, r.IsLegacy())
			},
		},
		{
			name: "redirect",
			body: `{"url":"https://b/chat","accessToken":"tok"}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.True(t, r.IsRedirect())
				assert.Equal(t, "https://b/chat", r.URL)
				assert.Equal(t, "tok", r.AccessToken)
			},
		},
		{
			name: "server error",
			body: `{"error":"nope","connectionId":"abc"}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.Equal(t, "nope", r.Error)
			},
		},
		{
			name: "legacy string marker",
			body: `{"ProtocolVersion":"1.5","ConnectionId":"x"}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.True(t, r.IsLegacy())
				assert.Equal(t, "1.5", r.ProtocolVersion)
			},
		},
		{
			name: "legacy numeric marker",
			body: `{"ProtocolVersion":1.3}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.Equal(t, "1.3", r.ProtocolVersion)
			},
		},
		{
			name: "null marker is absent",
			body: `{"ProtocolVersion":null}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.False(t, r.IsLegacy())
			},
		},
		{
			name: "marker key is case-sensitive",
			body: `{"protocolVersion":"1.5","connectionId":"x"}`,
			check: func(t *testing.T, r *NegotiateResponse) {
				assert.False(t, r.IsLegacy())
				assert.Equal(t, "x", r.ConnectionID)
			},
		},
		{name: "array body", body: `[]`, wantErr: true},
		{name: "html body", body: `<html></html>`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "bad field type", body: `{"connectionId":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeNegotiateResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestNegotiateResponseClone(t *testing.T) {
	orig := &NegotiateResponse{
		ConnectionID:        "abc",
		AvailableTransports: []AvailableTransport{{Transport: "WebSockets", TransferFormats: []string{"Text"}}},
	}
	c := orig.Clone()
	c.AvailableTransports[0].TransferFormats[0] = "Binary"
	c.ConnectionID = ""

	assert.Equal(t, "Text", orig.AvailableTransports[0].TransferFormats[0])
	assert.Equal(t, "abc", orig.ConnectionID)
	assert.Nil(t, (*NegotiateResponse)(nil).Clone())
}
