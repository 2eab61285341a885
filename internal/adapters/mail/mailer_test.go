package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailer(t *testing.T) {
	var lines []string
	m := &LogMailer{logf: func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}}

	require.NoError(t, m.Send(context.Background(), Message{To: "b@x.com", Subject: "Hello", HTML: "<p>hi</p>"}))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "b@x.com")
	assert.Contains(t, lines[0], `"Hello"`)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: "2525", Username: "u", Password: "p", From: "noreply@mortgageos.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), Message{To: "b@x.com", Subject: "Status", HTML: "<p>ok</p>"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, "noreply@mortgageos.com", gotFrom)
	assert.Equal(t, []string{"b@x.com"}, gotTo)
	body := string(gotBody)
	assert.True(t, strings.HasPrefix(body, "From: noreply@mortgageos.com\r\n"))
	assert.Contains(t, body, "Subject: Status\r\n")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\n<p>ok</p>"))
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: "25"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := m.Send(context.Background(), Message{To: "b@x.com", Subject: "s"})
	assert.ErrorContains(t, err, "refused")

	err = m.Send(context.Background(), Message{To: "b@x.com\r\nBcc: evil@x.com", Subject: "s"})
	assert.Error(t, err)
}
