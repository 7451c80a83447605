package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

func (h *harness) sweeper() *Sweeper {
	return NewSweeper(h.d.tracker, h.d, 10, h.d.log)
}

func TestSweeper_DeliversDueUnits(t *testing.T) {
	h := newHarness(t, nil, 0)
	ctx := context.Background()

	_, err := h.d.Send(ctx, h.interactive(), &domain.Message{Channel: domain.ChannelEmail, Subject: "s", Body: "b", Destinations: []string{"a@x.com"}})
	require.NoError(t, err)
	_, err = h.d.Send(ctx, h.interactive(), &domain.Message{Channel: domain.ChannelSMS, TemplateCode: "NOTICE", Destinations: []string{"+1"}})
	require.NoError(t, err)
	future := time.Now().Add(time.Hour)
	_, err = h.d.Send(ctx, h.interactive(), &domain.Message{Channel: domain.ChannelEmail, Body: "later", Destinations: []string{"b@x.com"}, ExpectedSendDate: &future})
	require.NoError(t, err)

	report := h.sweeper().RunOnce(ctx)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, [][]string{{"a@x.com"}}, h.email.calls)
	assert.Equal(t, [][]string{{"+1"}}, h.sms.calls)

	statuses := map[domain.Status]int{}
	for _, m := range h.messages.all() {
		statuses[m.Status]++
	}
	assert.Equal(t, map[domain.Status]int{domain.StatusSuccess: 2, domain.StatusPending: 1}, statuses)

	// delivered units are not picked up again
	report = h.sweeper().RunOnce(ctx)
	assert.Empty(t, report.MessageIDs)
}

func TestSweeper_FailuresDoNotStopTheBatch(t *testing.T) {
	h := newHarness(t, nil, 0)
	ctx := context.Background()
	h.email.failFor = map[string]error{"a@x.com": errors.New("550 no such user")}

	for _, dest := range []string{"a@x.com", "b@x.com"} {
		_, err := h.d.Send(ctx, h.interactive(), &domain.Message{Channel: domain.ChannelEmail, Body: "b", Destinations: []string{dest}})
		require.NoError(t, err)
	}

	report := h.sweeper().RunOnce(ctx)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "EMAIL_SEND_FAILED", report.Failures[0].Code)
}

func TestSweeper_ConcurrentSweepsSendOnce(t *testing.T) {
	h := newHarness(t, nil, 0)
	ctx := context.Background()
	_, err := h.d.Send(ctx, h.interactive(), &domain.Message{Channel: domain.ChannelEmail, Body: "b", Destinations: []string{"a@x.com"}})
	require.NoError(t, err)

	first, err := h.d.tracker.Due(ctx, domain.ChannelEmail, 10)
	require.NoError(t, err)
	second, err := h.d.tracker.Due(ctx, domain.ChannelEmail, 10)
	require.NoError(t, err)
	for _, m := range append(first, second...) {
		_, err := h.d.Deliver(ctx, m)
		require.NoError(t, err)
	}
	assert.Equal(t, [][]string{{"a@x.com"}}, h.email.calls)

	report := h.sweeper().RunOnce(ctx)
	assert.Empty(t, report.MessageIDs)
	assert.Len(t, h.email.calls, 1)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.sweeper().Start(ctx, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
