package speedtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestSortsByDistanceAndCaps(t *testing.T) {
	servers := st.Servers{
		{ID: "a", Distance: 300},
		{ID: "b", Distance: 10},
		{ID: "c", Distance: 120},
	}
	got := nearest(servers, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	// input untouched
	assert.Equal(t, "a", servers[0].ID)
}

func TestPickBestSkipsUnpinged(t *testing.T) {
	servers := []*st.Server{
		{ID: "slow", Latency: 80 * time.Millisecond},
		{ID: "unpinged"},
		nil,
		{ID: "fast", Latency: 12 * time.Millisecond},
	}
	best := pickBest(servers)
	require.NotNil(t, best)
	assert.Equal(t, "fast", best.ID)
	assert.Nil(t, pickBest([]*st.Server{{ID: "zero"}}))
}

func TestUnitConversions(t *testing.T) {
	assert.Equal(t, 8_000_000.0, bitsPerSecond(st.ByteRate(1_000_000)))
	assert.Equal(t, 12.5, durationMs(12500*time.Microsecond))
}

func TestProviderRequiresSelection(t *testing.T) {
	p := NewProvider(Config{})
	assert.Zero(t, p.CurrentLatencyMs())

	_, err := p.MeasureDownloadBps(context.Background())
	assert.ErrorIs(t, err, ErrNoEndpointSelected)
	_, err = p.MeasureUploadBps(context.Background())
	assert.ErrorIs(t, err, ErrNoEndpointSelected)
	assert.NoError(t, p.Close())
}

func TestNewHTTPClientKnobs(t *testing.T) {
	_, tr := newHTTPClient(Config{DisableHTTP2: true, DisableKeepAlives: true, OperationTimeout: 3 * time.Second})
	assert.False(t, tr.ForceAttemptHTTP2)
	assert.NotNil(t, tr.TLSNextProto)
	assert.True(t, tr.DisableKeepAlives)

	_, tr = newHTTPClient(Config{MaxConnections: 8})
	assert.Equal(t, 8, tr.MaxIdleConnsPerHost)
}

type countingTransport struct {
	base http.RoundTripper
	hits atomic.Int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.hits.Add(1)
	return t.base.RoundTrip(req)
}

func TestRequestsUseDedicatedClient(t *testing.T) {
	var agent atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("test=test"))
	}))
	defer ts.Close()

	before := http.DefaultClient.Transport
	p := NewProvider(Config{MaxConnections: 2})
	p.init()
	assert.Equal(t, before, http.DefaultClient.Transport)

	ct := &countingTransport{base: p.hc.Transport}
	p.hc.Transport = ct

	srv, err := p.stc.CustomServer(ts.URL)
	require.NoError(t, err)
	_, err = srv.HTTPPing(context.Background(), 2, 0, nil)
	require.NoError(t, err)

	assert.Positive(t, ct.hits.Load())
	assert.Equal(t, st.DefaultUserAgent, agent.Load())
	assert.NoError(t, p.Close())
}
