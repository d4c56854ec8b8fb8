package sweepscan

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

var crlf = []byte("\r\n")

// httpsStatus performs the encrypted status probe: negotiate TLS on the
// HTTPS port, send a minimal HEAD request, and parse the numeric status
// code from the response's first line. Any failure anywhere in the
// sequence, including a malformed or empty response, yields nil.
//
// Certificate verification is deliberately disabled: the probe targets bare
// numeric hosts whose certificates are routinely self-signed or issued for
// names, and strict validation would hide exactly the listeners this probe
// exists to reveal.
func (s *probeSuite) httpsStatus(ctx context.Context, addr netip.Addr) *int {
	deadline := time.Now().Add(s.httpsTimeout)
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var dialer net.Dialer
	raw, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(s.httpsPort)))
	if err != nil {
		return nil
	}
	defer raw.Close()
	if err := raw.SetDeadline(deadline); err != nil {
		return nil
	}

	conn := tls.Client(raw, &tls.Config{
		ServerName:         addr.String(),
		InsecureSkipVerify: true,
	})
	defer conn.Close()
	if err := conn.HandshakeContext(dctx); err != nil {
		return nil
	}

	request := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", addr)
	if _, err := conn.Write(asciiBytes(request)); err != nil {
		return nil
	}

	// Accumulate until the first line terminator shows up or the peer
	// stops sending.
	var buf []byte
	tmp := make([]byte, 1024)
	for !bytes.Contains(buf, crlf) {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			break
		}
	}
	if len(buf) == 0 {
		return nil
	}
	return parseStatusLine(buf)
}

// parseStatusLine extracts the integer status code from the first line of a
// raw HTTP response. It returns nil when the line does not carry one: fewer
// than two whitespace-separated tokens, a first token without the HTTP/
// prefix, or a non-numeric second token.
func parseStatusLine(data []byte) *int {
	line := data
	if idx := bytes.Index(data, crlf); idx >= 0 {
		line = data[:idx]
	}
	// string() never fails on arbitrary bytes; undecodable sequences pass
	// through and simply won't match the expected tokens.
	fields := strings.Fields(string(line))
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return nil
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil
	}
	return &code
}

// asciiBytes encodes a request string as plain bytes, dropping characters
// outside the ASCII range instead of failing.
func asciiBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 0x80 {
			out = append(out, s[i])
		}
	}
	return out
}
