package notifier

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/NordCoder/Upwatch/internal/config/notifier"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
)

// fakeSMTP accepts one session and returns the DATA payload.
func fakeSMTP(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		reply("220 fake ESMTP")
		var data strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				for {
					l, err := r.ReadString('\n')
					if err != nil || l == ".\r\n" {
						break
					}
					data.WriteString(l)
				}
				reply("250 queued")
				out <- data.String()
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestMailer_Send(t *testing.T) {
	addr, got := fakeSMTP(t)
	m := NewMailer(config.SMTP{Addr: addr, From: "noreply@upwatch.dev", Timeout: time.Second, SubjPrefix: "[Upwatch]"})

	err := m.Send(t.Context(), "ops@example.com", notification.Message{Subject: "DOWN: x", Body: "details"})
	require.NoError(t, err)

	select {
	case data := <-got:
		assert.Contains(t, data, "To: ops@example.com\r\n")
		assert.Contains(t, data, "Subject: [Upwatch] DOWN: x\r\n")
		assert.Contains(t, data, "\r\n\r\ndetails")
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestMailer_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = NewMailer(config.SMTP{Addr: addr, Timeout: time.Second}).Send(t.Context(), "a@b.c", notification.Message{})
	assert.Error(t, err)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "smtp.example.com", host("smtp.example.com:587"))
	assert.Equal(t, "smtp.example.com", host("smtp.example.com"))
}
