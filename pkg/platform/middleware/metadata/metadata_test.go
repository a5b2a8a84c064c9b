package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expatdesk/pkg/requestcontext"
)

func TestResolverClientIP(t *testing.T) {
	behindLB, err := NewResolver("10.0.0.0/8", "192.0.2.254")
	require.NoError(t, err)
	direct, err := NewResolver()
	require.NoError(t, err)

	tests := []struct {
		name     string
		resolver *Resolver
		headers  map[string]string
		remote   string
		want     string
	}{
		{name: "untrusted peer ignores forwarded for", resolver: direct,
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "198.51.100.9:4000", want: "198.51.100.9"},
		{name: "untrusted peer ignores real ip", resolver: behindLB,
			headers: map[string]string{"X-Real-IP": "203.0.113.7"}, remote: "198.51.100.9:4000", want: "198.51.100.9"},
		{name: "trusted proxy forwards client", resolver: behindLB,
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "spoofed leftmost entry is skipped", resolver: behindLB,
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7, 10.0.0.5"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "all hops trusted takes leftmost", resolver: behindLB,
			headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.5"}, remote: "10.0.0.2:1234", want: "10.1.1.1"},
		{name: "garbage hop falls back to peer", resolver: behindLB,
			headers: map[string]string{"X-Forwarded-For": "not-an-ip"}, remote: "10.0.0.2:1234", want: "10.0.0.2"},
		{name: "single trusted address", resolver: behindLB,
			headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "192.0.2.254:80", want: "198.51.100.4"},
		{name: "ipv6 remote addr", resolver: direct, remote: "[::1]:5555", want: "::1"},
		{name: "empty remote addr", resolver: direct, remote: "", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.resolver.ClientIP(req))
		})
	}
}

func TestNewResolverRejectsBadEntries(t *testing.T) {
	_, err := NewResolver("10.0.0.0/33")
	assert.ErrorContains(t, err, "10.0.0.0/33")
	_, err = NewResolver("proxy.internal")
	assert.ErrorContains(t, err, "proxy.internal")
}

func TestClientMetadata_StoresPeerIP(t *testing.T) {
	var got string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestcontext.ClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.1", got)
}
