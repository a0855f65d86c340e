package lark

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/domain/entity"
)

type fakeOpenAPI struct {
	mu       sync.Mutex
	messages []sentMessage
	fail     bool
}

type sentMessage struct {
	receiveIDType string
	body          map[string]string
}

func (f *fakeOpenAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(r.URL.Path, "tenant_access_token"):
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`)
	case strings.HasSuffix(r.URL.Path, "/im/v1/messages"):
		raw, _ := io.ReadAll(r.Body)
		var body map[string]string
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.messages = append(f.messages, sentMessage{receiveIDType: r.URL.Query().Get("receive_id_type"), body: body})
		fail := f.fail
		f.mu.Unlock()

		if fail {
			_, _ = io.WriteString(w, `{"code":230013,"msg":"bot has no availability to this user"}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestMessenger(t *testing.T) (*Messenger, *fakeOpenAPI) {
	t.Helper()
	api := &fakeOpenAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client := NewClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL}, zap.NewNop())
	return NewMessenger(client, zap.NewNop()), api
}

func TestMessenger_SendAddressesByUserIDThenEmail(t *testing.T) {
	m, api := newTestMessenger(t)
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, entity.Recipient{UserID: "u1", LarkUserID: "ou_1", Email: "a@uni.example"}, "Application advanced", "moved to committee"))
	require.NoError(t, m.Send(ctx, entity.Recipient{UserID: "u2", Email: "b@uni.example"}, "", "plain"))

	require.Len(t, api.messages, 2)
	assert.Equal(t, "user_id", api.messages[0].receiveIDType)
	assert.Equal(t, "ou_1", api.messages[0].body["receive_id"])
	assert.Equal(t, "text", api.messages[0].body["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(api.messages[0].body["content"]), &content))
	assert.Equal(t, "Application advanced\n\nmoved to committee", content["text"])

	assert.Equal(t, "email", api.messages[1].receiveIDType)
	assert.Equal(t, "b@uni.example", api.messages[1].body["receive_id"])
}

func TestMessenger_SendErrors(t *testing.T) {
	m, api := newTestMessenger(t)
	ctx := context.Background()

	err := m.Send(ctx, entity.Recipient{UserID: "nobody"}, "s", "b")
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Empty(t, api.messages)

	api.fail = true
	err = m.Send(ctx, entity.Recipient{UserID: "u1", LarkUserID: "ou_1"}, "s", "b")
	assert.ErrorContains(t, err, "230013")
}

func TestTextContent_EscapesJSON(t *testing.T) {
	content, err := textContent(`Quote "this"`, "line1\nline2\t\\")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "Quote \"this\"\n\nline1\nline2\t\\", decoded["text"])
}
