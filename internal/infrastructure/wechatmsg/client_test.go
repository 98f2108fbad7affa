package wechatmsg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/silenceper/wechat/v2/officialaccount/message"
	"github.com/silenceper/wechat/v2/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeTo points the SDK's fixed platform host at srv for one test.
func routeTo(t *testing.T, srv *httptest.Server) {
	t.Helper()
	util.SetURIModifier(func(uri string) string {
		return strings.Replace(uri, "https://api.weixin.qq.com", srv.URL, 1)
	})
	t.Cleanup(func() { util.SetURIModifier(nil) })
}

type fakePlatform struct {
	mu          sync.Mutex
	tokenCalls  int
	sent        []message.TemplateMessage
	rejectFirst int // errcode returned to the first send, 0 for none
}

func (p *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		assert.Equal(t, "client_credential", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "wx-msg", r.URL.Query().Get("appid"))
		assert.Equal(t, "secret", r.URL.Query().Get("secret"))
		p.tokenCalls++
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":7200}`, p.tokenCalls)
	})
	mux.HandleFunc("/cgi-bin/message/template/send", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		var req message.TemplateMessage
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if p.rejectFirst != 0 {
			code := p.rejectFirst
			p.rejectFirst = 0
			fmt.Fprintf(w, `{"errcode":%d,"errmsg":"access_token expired"}`, code)
			return
		}
		if r.URL.Query().Get("access_token") == "" {
			fmt.Fprint(w, `{"errcode":41001,"errmsg":"access_token missing"}`)
			return
		}
		p.sent = append(p.sent, req)
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	})
	return mux
}

func newClient(t *testing.T, p *fakePlatform) *Client {
	t.Helper()
	srv := httptest.NewServer(p.handler(t))
	t.Cleanup(srv.Close)
	routeTo(t, srv)

	c, err := New(Config{AppID: "wx-msg", AppSecret: "secret"}, nil)
	require.NoError(t, err)
	return c
}

func TestSendReusesAccessToken(t *testing.T) {
	p := &fakePlatform{}
	c := newClient(t, p)
	ctx := context.Background()

	msg := Message{ToUser: "union-1", TemplateID: "tpl", Data: map[string]string{"thing2": "North Gate"}}
	require.NoError(t, c.Send(ctx, msg))
	require.NoError(t, c.Send(ctx, msg))

	assert.Equal(t, 1, p.tokenCalls)
	require.Len(t, p.sent, 2)
	assert.Equal(t, "union-1", p.sent[0].ToUser)
	assert.Equal(t, "tpl", p.sent[0].TemplateID)
	assert.Equal(t, "North Gate", p.sent[0].Data["thing2"].Value)
}

func TestSendRefreshesExpiredToken(t *testing.T) {
	p := &fakePlatform{rejectFirst: errExpiredToken}
	c := newClient(t, p)

	require.NoError(t, c.Send(context.Background(), Message{ToUser: "u", TemplateID: "tpl"}))
	assert.Equal(t, 2, p.tokenCalls)
	assert.Len(t, p.sent, 1)
}

func TestSendReportsPlatformErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cgi-bin/token" {
			fmt.Fprint(w, `{"access_token":"token-1","expires_in":7200}`)
			return
		}
		fmt.Fprint(w, `{"errcode":43004,"errmsg":"require subscribe"}`)
	}))
	defer srv.Close()
	routeTo(t, srv)

	c, err := New(Config{AppID: "wx-msg", AppSecret: "secret"}, nil)
	require.NoError(t, err)

	err = c.Send(context.Background(), Message{ToUser: "u", TemplateID: "tpl"})
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 43004, ae.Code)
}

func TestSendFailsWhenTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":40013,"errmsg":"invalid appid"}`)
	}))
	defer srv.Close()
	routeTo(t, srv)

	c, err := New(Config{AppID: "bad", AppSecret: "secret"}, nil)
	require.NoError(t, err)

	err = c.Send(context.Background(), Message{ToUser: "u", TemplateID: "tpl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "40013")
}

type mapTokens struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func (m *mapTokens) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapTokens) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mapTokens) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func TestSendSharesTokenThroughCache(t *testing.T) {
	p := &fakePlatform{}
	srv := httptest.NewServer(p.handler(t))
	defer srv.Close()
	routeTo(t, srv)

	tokens := &mapTokens{values: map[string]string{}, ttls: map[string]time.Duration{}}
	first, err := New(Config{AppID: "wx-msg", AppSecret: "secret"}, tokens)
	require.NoError(t, err)
	second, err := New(Config{AppID: "wx-msg", AppSecret: "secret"}, tokens)
	require.NoError(t, err)

	msg := Message{ToUser: "u", TemplateID: "tpl"}
	require.NoError(t, first.Send(context.Background(), msg))
	require.NoError(t, second.Send(context.Background(), msg))

	assert.Equal(t, 1, p.tokenCalls)
	assert.Equal(t, "token-1", tokens.values["wechat_oa_access_token_wx-msg"])
	assert.Greater(t, tokens.ttls["wechat_oa_access_token_wx-msg"], time.Hour)
}

func TestSendValidates(t *testing.T) {
	c, err := New(Config{AppID: "a", AppSecret: "b"}, nil)
	require.NoError(t, err)
	assert.Error(t, c.Send(context.Background(), Message{TemplateID: "tpl"}))

	_, err = New(Config{AppID: "a"}, nil)
	assert.Error(t, err)
}
