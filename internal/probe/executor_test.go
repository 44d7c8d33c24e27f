package probe

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

func newExecutor() *Executor {
	return NewExecutor(NewHTTPClient(ClientConfig{DialTimeout: time.Second, VerifyTLS: true}), "upwatch-test", nil)
}

func snapshot(url string) monitor.Snapshot {
	return monitor.Snapshot{
		MonitorID:          5,
		ConfigVersion:      1,
		URL:                url,
		Method:             monitor.MethodGet,
		Timeout:            2 * time.Second,
		ExpectedStatusCode: http.StatusOK,
		LeaseToken:         "t",
	}
}

func TestExecute_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upwatch-test", r.UserAgent())
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newExecutor().Execute(t.Context(), snapshot(srv.URL))

	assert.Equal(t, check.StatusUp, c.Status)
	require.NotNil(t, c.StatusCode)
	assert.Equal(t, 200, *c.StatusCode)
	assert.Nil(t, c.ErrorMessage)
	require.NotNil(t, c.ResponseTimeMs)
	assert.GreaterOrEqual(t, *c.ResponseTimeMs, 0)
	assert.Equal(t, int64(5), c.MonitorID)
	assert.False(t, c.CheckedAt.IsZero())
}

func TestExecute_StatusMismatchIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newExecutor().Execute(t.Context(), snapshot(srv.URL))

	assert.Equal(t, check.StatusDown, c.Status)
	require.NotNil(t, c.StatusCode)
	assert.Equal(t, 503, *c.StatusCode)
	assert.Nil(t, c.ErrorMessage)
	assert.Equal(t, "HTTP 503", c.Cause())
}

func TestExecute_ExpectedNon2xxIsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	s := snapshot(srv.URL)
	s.ExpectedStatusCode = http.StatusMovedPermanently
	c := newExecutor().Execute(t.Context(), s)

	assert.Equal(t, check.StatusUp, c.Status)
	assert.Equal(t, 301, *c.StatusCode)
}

func TestExecute_Head(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Method
	}))
	defer srv.Close()

	s := snapshot(srv.URL)
	s.Method = monitor.MethodHead
	c := newExecutor().Execute(t.Context(), s)

	assert.Equal(t, http.MethodHead, got)
	assert.Equal(t, check.StatusUp, c.Status)
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := snapshot(srv.URL)
	s.Timeout = 100 * time.Millisecond
	c := newExecutor().Execute(t.Context(), s)

	assert.Equal(t, check.StatusDown, c.Status)
	assert.Nil(t, c.StatusCode)
	require.NotNil(t, c.ErrorMessage)
	assert.Equal(t, "timeout after 100ms", *c.ErrorMessage)
	require.NotNil(t, c.ResponseTimeMs)
	assert.GreaterOrEqual(t, *c.ResponseTimeMs, 100)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := newExecutor().Execute(t.Context(), snapshot("http://"+addr))

	assert.Equal(t, check.StatusDown, c.Status)
	assert.Nil(t, c.StatusCode)
	require.NotNil(t, c.ErrorMessage)
	assert.Equal(t, "connection refused", *c.ErrorMessage)
}

func TestExecute_UntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	c := newExecutor().Execute(t.Context(), snapshot(srv.URL))

	assert.Equal(t, check.StatusDown, c.Status)
	assert.Nil(t, c.StatusCode)
	require.NotNil(t, c.ErrorMessage)
	assert.Contains(t, *c.ErrorMessage, "tls certificate error")
}

func TestExecute_InvalidURL(t *testing.T) {
	c := newExecutor().Execute(t.Context(), snapshot("http://bad host"))

	assert.Equal(t, check.StatusDown, c.Status)
	require.NotNil(t, c.ErrorMessage)
	assert.Contains(t, *c.ErrorMessage, "invalid request")
}

// rawServer answers every request with the given bytes and closes.
func rawServer(t *testing.T, reply string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			br := bufio.NewReader(conn)
			for {
				line, err := br.ReadString('\n')
				if err != nil || line == "\r\n" {
					break
				}
			}
			_, _ = conn.Write([]byte(reply))
			_ = conn.Close()
		}
	}()
	return "http://" + l.Addr().String()
}

func TestExecute_MalformedStatusLineKeepsValidUTF8(t *testing.T) {
	url := rawServer(t, "HTTP/1.1 "+strings.Repeat("é", 200)+" OK\r\n\r\n")

	c := newExecutor().Execute(t.Context(), snapshot(url))

	assert.Equal(t, check.StatusDown, c.Status)
	require.NotNil(t, c.ErrorMessage)
	assert.True(t, utf8.ValidString(*c.ErrorMessage), "%q", *c.ErrorMessage)
	assert.LessOrEqual(t, len(*c.ErrorMessage), maxMessageLen)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxMessageLen-1) + "éé"
	got := truncate(long)
	assert.Equal(t, strings.Repeat("a", maxMessageLen-1), got)

	assert.Equal(t, "bad \uFFFD byte", truncate("bad \xff byte"))
	assert.Equal(t, "short", truncate("short"))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com", normalizeURL(" example.com "))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
	assert.Equal(t, "", normalizeURL("  "))
}
