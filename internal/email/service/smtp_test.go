package service

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/courier/internal/config"
	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
	edomain "github.com/corvusHold/courier/internal/email/domain"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("from@x.com", edomain.Envelope{To: []string{"a@x.com", "b@x.com"}, Subject: "S", Body: "hello"}))
	assert.Contains(t, msg, "To: a@x.com, b@x.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8")

	msg = string(buildMessage("from@x.com", edomain.Envelope{To: []string{"a@x.com"}, Body: "<!DOCTYPE html><p>x</p>"}))
	assert.Contains(t, msg, "Content-Type: text/html")
}

func TestSMTP_ConnectionRefusedClassifiesAsConnection(t *testing.T) {
	// grab a free port and close it so the dial is refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewSMTP(mockSettings{}, config.Config{SMTPHost: "127.0.0.1", SMTPPort: port, SMTPFrom: "f@x.com"})
	err = s.Send(context.Background(), edomain.Envelope{To: []string{"a@x.com"}})
	require.Error(t, err)
	assert.Equal(t, ddomain.FailureConnection, ddomain.Classify(err))
}
