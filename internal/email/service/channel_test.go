package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
)

// replaceRenderer substitutes {{key}} tokens; it is enough to observe which params reach rendering.
type replaceRenderer struct{ fail error }

func (r replaceRenderer) Render(_ string, text string, params map[string]string) (string, error) {
	if r.fail != nil {
		return "", r.fail
	}
	for k, v := range params {
		text = strings.ReplaceAll(text, "{{"+k+"}}", v)
	}
	return text, nil
}

func TestChannel_Capabilities(t *testing.T) {
	c := NewChannel(&captureSender{}, replaceRenderer{})
	assert.Equal(t, ddomain.ChannelEmail, c.Type())
	assert.Equal(t, "a@x.com", c.Address(ddomain.Contact{Email: "a@x.com", Mobile: "+1"}))
	assert.True(t, c.PerDestination())
	assert.False(t, c.RequiresTemplate())
}

func TestChannel_SendMessageRendersTemplate(t *testing.T) {
	sender := &captureSender{}
	c := NewChannel(sender, replaceRenderer{})
	tid := uuid.New()
	cfg := ddomain.ChannelConfig{Provider: "brevo", Settings: map[string]string{"email.brevo.api_key": "k"}}
	tpl := ddomain.Template{Code: "LOGIN", Content: "code {{code}}"}
	m := &ddomain.Message{TenantID: tid, From: "ops@x.com", Subject: "Login {{code}}", Destinations: []string{"a@x.com"}, Params: map[string]string{"code": "123456"}}

	require.NoError(t, c.SendMessage(context.Background(), cfg, tpl, m))
	require.Len(t, sender.sent, 1)
	env := sender.sent[0]
	assert.Equal(t, "code 123456", env.Body)
	assert.Equal(t, "Login 123456", env.Subject)
	assert.Equal(t, "brevo", env.Provider)
	assert.Equal(t, tid, env.TenantID)
	assert.Equal(t, "k", env.Overrides["email.brevo.api_key"])
}

func TestChannel_SendMessageLiteralBody(t *testing.T) {
	sender := &captureSender{}
	c := NewChannel(sender, replaceRenderer{fail: errors.New("must not render")})
	m := &ddomain.Message{Subject: "S", Body: "literal {{x}}", Destinations: []string{"a@x.com", "b@x.com"}}

	require.NoError(t, c.SendMessage(context.Background(), ddomain.ChannelConfig{}, ddomain.Template{}, m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "literal {{x}}", sender.sent[0].Body)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, sender.sent[0].To)
}

func TestChannel_SendBatchMessageUsesParamSets(t *testing.T) {
	sender := &captureSender{}
	c := NewChannel(sender, replaceRenderer{})
	tpl := ddomain.Template{Code: "WELCOME", Content: "hi {{name}} from {{org}}"}
	m := &ddomain.Message{
		Destinations: []string{"a@x.com", "b@x.com"},
		Params:       map[string]string{"org": "acme"},
		ParamSets:    []map[string]string{{"name": "ann"}, {"name": "bob"}},
	}

	require.NoError(t, c.SendBatchMessage(context.Background(), ddomain.ChannelConfig{}, tpl, m))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "hi ann from acme", sender.sent[0].Body)
	assert.Equal(t, []string{"b@x.com"}, sender.sent[1].To)
	assert.Equal(t, "hi bob from acme", sender.sent[1].Body)
}

func TestChannel_RenderErrorSurfaces(t *testing.T) {
	boom := ddomain.NewProviderError(ddomain.FailureTemplateParse, errors.New("bad"))
	c := NewChannel(&captureSender{}, replaceRenderer{fail: boom})
	err := c.SendMessage(context.Background(), ddomain.ChannelConfig{}, ddomain.Template{Content: "x"}, &ddomain.Message{Destinations: []string{"a@x.com"}})
	assert.Equal(t, ddomain.FailureTemplateParse, ddomain.Classify(err))
}
