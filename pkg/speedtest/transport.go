package speedtest

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"
)

// newHTTPClient builds a dedicated transport so connections can be closed
// as soon as the assessment is done.
func newHTTPClient(cfg Config) (*http.Client, *http.Transport) {
	dialTimeout := 10 * time.Second
	if cfg.OperationTimeout > 0 {
		dialTimeout = min(dialTimeout, cfg.OperationTimeout/2)
		dialTimeout = max(dialTimeout, 2*time.Second)
	}

	keepAlive := 30 * time.Second
	if cfg.DisableKeepAlives {
		// Negative means "disabled" for net.Dialer.
		keepAlive = -1
	}
	d := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		IdleConnTimeout:       2 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		ForceAttemptHTTP2:     !cfg.DisableHTTP2,
	}
	if cfg.DisableHTTP2 {
		// A non-nil empty map forces HTTP/1.1.
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	if !cfg.DisableKeepAlives {
		tr.MaxIdleConns = 64
		tr.MaxIdleConnsPerHost = max(cfg.MaxConnections, 2)
		tr.IdleConnTimeout = 10 * time.Second
	}
	return &http.Client{Transport: userAgentTransport{agent: st.DefaultUserAgent, base: tr}}, tr
}

// userAgentTransport stamps the library's User-Agent, which speedtest-go
// would otherwise add in its own RoundTripper.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}

// newClientMu serializes st.New: it always points http.DefaultClient at the
// new instance before options run, so the previous transport is put back.
var newClientMu sync.Mutex

// newSpeedtest builds an instance whose requests all go through hc.
// WithDoer must come after WithUserConfig, which rewrites the doer's
// Transport.
func newSpeedtest(uc *st.UserConfig, hc *http.Client) *st.Speedtest {
	newClientMu.Lock()
	defer newClientMu.Unlock()
	prev := http.DefaultClient.Transport
	defer func() { http.DefaultClient.Transport = prev }()
	return st.New(st.WithUserConfig(uc), st.WithDoer(hc))
}
