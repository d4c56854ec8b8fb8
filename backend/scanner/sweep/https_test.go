package sweepscan

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func TestParseStatusLine(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
		none  bool
	}{
		{name: "well formed", input: "HTTP/1.1 200 OK\r\nServer: nginx\r\n\r\n", want: 200},
		{name: "two tokens only", input: "HTTP/1.0 404\r\n", want: 404},
		{name: "no terminator yet", input: "HTTP/1.1 301 Moved Permanently", want: 301},
		{name: "empty", input: "", none: true},
		{name: "single token", input: "HTTP/1.1\r\n", none: true},
		{name: "wrong protocol prefix", input: "SSH-2.0-OpenSSH_8.9 banner\r\n", none: true},
		{name: "non numeric code", input: "HTTP/1.1 abc OK\r\n", none: true},
		{name: "garbage bytes", input: "\xff\xfe\x00garbage\r\n", none: true},
	}

	for _, tc := range cases {
		got := parseStatusLine([]byte(tc.input))
		if tc.none {
			if got != nil {
				t.Fatalf("%s: expected no status, got %d", tc.name, *got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("%s: expected status %d, got none", tc.name, tc.want)
		}
		if *got != tc.want {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.want, *got)
		}
	}
}

func TestHTTPSStatusAgainstTLSServer(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	suite := newProbeSuite(ScanParams{HTTPSTimeout: 3 * time.Second}.WithDefaults(normalizeDefaults(DefaultOptions{})))
	suite.httpsPort = serverPort(t, server.Listener.Addr())

	got := suite.httpsStatus(context.Background(), netip.MustParseAddr("127.0.0.1"))
	if got == nil {
		t.Fatalf("expected a status from TLS server, got none")
	}
	if *got != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, *got)
	}
}

func TestHTTPSStatusConnectionRefused(t *testing.T) {
	suite := newProbeSuite(ScanParams{}.WithDefaults(normalizeDefaults(DefaultOptions{})))
	suite.httpsPort = closedPort(t)
	suite.httpsTimeout = 500 * time.Millisecond

	if got := suite.httpsStatus(context.Background(), netip.MustParseAddr("127.0.0.1")); got != nil {
		t.Fatalf("expected no status against closed port, got %d", *got)
	}
}

func TestHTTPSStatusPlaintextPeer(t *testing.T) {
	// A listener that never speaks TLS: the handshake must fail and the
	// probe must normalize it to an absent status.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("220 not tls\r\n"))
			conn.Close()
		}
	}()

	suite := newProbeSuite(ScanParams{}.WithDefaults(normalizeDefaults(DefaultOptions{})))
	suite.httpsPort = serverPort(t, listener.Addr())
	suite.httpsTimeout = time.Second

	if got := suite.httpsStatus(context.Background(), netip.MustParseAddr("127.0.0.1")); got != nil {
		t.Fatalf("expected no status from plaintext peer, got %d", *got)
	}
}

func TestAsciiBytesDropsNonEncodable(t *testing.T) {
	got := string(asciiBytes("HEAD / HTTP/1.1\r\nHost: héllo\r\n"))
	want := "HEAD / HTTP/1.1\r\nHost: hllo\r\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func serverPort(t *testing.T, addr net.Addr) int {
	t.Helper()
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected listener address type %T", addr)
	}
	return tcp.Port
}

// closedPort reserves an ephemeral port and releases it so the following
// connect attempt is refused.
func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}
