package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/agent"
	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/config"
	"music-copilot-go/internal/repository"
	"music-copilot-go/internal/service"
	"music-copilot-go/internal/skill"
	"music-copilot-go/internal/tools"
	"music-copilot-go/internal/workflow"
	"music-copilot-go/pkg/llm"
	"music-copilot-go/pkg/token"
)

type echoLLM struct{}

func (echoLLM) Decide(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Decision, error) {
	if tools == nil {
		return &llm.Decision{Text: `["还有呢？"]`}, nil
	}
	return &llm.Decision{}, nil
}

func (echoLLM) StreamGenerate(ctx context.Context, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range []string{"你好", "，创作人"} {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *token.TicketManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := capability.NewRegistry()
	require.NoError(t, tools.Register(reg))
	reg.Seal()
	set, err := workflow.NewSet(workflow.Builtin()...)
	require.NoError(t, err)

	repo := repository.NewMemoryConversationRepository()
	client := echoLLM{}
	chat := service.NewChatService(repo, workflow.NewRouter(set), workflow.NewExecutor(reg),
		agent.NewToolLoop(client, reg), agent.NewFollowUpGenerator(client), "sys",
		config.ChatConfig{HistoryLimit: 20, TitleMaxRunes: 30})
	tickets := token.NewTicketManager("test-secret", 5)

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Chat:         NewChatHandler(chat, tickets),
		Conversation: NewConversationHandler(service.NewConversationService(repo, nil)),
		System:       NewSystemHandler("0.1.0", []skill.Skill{{Name: "lyrics", Description: "写词"}}),
	})
	return r, tickets
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func frames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, part := range strings.Split(body, "\n\n") {
		if part == "" {
			continue
		}
		require.True(t, strings.HasPrefix(part, "data: "), part)
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(part, "data: ")), &m))
		out = append(out, m)
	}
	return out
}

func TestSystemRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"0.1.0"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/quick-actions", "")
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var actions []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &actions))
	assert.Len(t, actions, 6)

	w = do(r, http.MethodGet, "/api/skills", "")
	assert.Contains(t, w.Body.String(), `"name":"lyrics"`)
}

func TestChatStream(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/chat", `{"message":"今天天气怎么样"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	fs := frames(t, w.Body.String())
	require.Len(t, fs, 4)
	assert.Equal(t, map[string]any{"type": "token", "content": "你好"}, fs[0])
	assert.Equal(t, "follow_ups", fs[2]["type"])
	assert.Equal(t, "done", fs[3]["type"])
	convID, _ := fs[3]["conversation_id"].(string)
	require.NotEmpty(t, convID)
	assert.NotEmpty(t, fs[3]["message_id"])

	w = do(r, http.MethodGet, "/api/conversations", "")
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "今天天气怎么样", list[0]["title"])
	assert.EqualValues(t, 2, list[0]["message_count"])

	w = do(r, http.MethodGet, "/api/conversations/"+convID+"/messages", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "你好，创作人", msgs[1]["content"])
	assert.Equal(t, []any{"还有呢？"}, msgs[1]["follow_ups"])

	w = do(r, http.MethodDelete, "/api/conversations/"+convID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatStream_Rejects(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, body := range []string{`{"message":"   "}`, `{"message":"` + strings.Repeat("歌", 2001) + `"}`, `not json`} {
		w := do(r, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.NotContains(t, w.Header().Get("Content-Type"), "event-stream")
	}
}

func TestConversationNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/conversations/missing"},
		{http.MethodGet, "/api/conversations/missing/messages"},
		{http.MethodDelete, "/api/conversations/missing"},
	} {
		w := do(r, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, "会话不存在", env.Message)
	}

	w := do(r, http.MethodGet, "/api/conversations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportWithoutStorage(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	fs := frames(t, w.Body.String())
	convID := fs[len(fs)-1]["conversation_id"].(string)

	w = do(r, http.MethodGet, "/api/conversations/"+convID+"/export", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebSocketChat(t *testing.T) {
	r, tickets := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	w := do(r, http.MethodGet, "/api/chat/ticket", "")
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var data struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	_, err := tickets.Verify(data.Ticket)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws/" + data.Ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "今天天气怎么样"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var types []string
	for {
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))
		types = append(types, frame["type"].(string))
		if frame["type"] == "done" {
			assert.NotEmpty(t, frame["conversation_id"])
			break
		}
	}
	assert.Equal(t, []string{"token", "token", "follow_ups", "done"}, types)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "stop"}))
	var ack map[string]any
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "stop", ack["type"])
}

func TestWebSocketRejectsBadTicket(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/chat/ws/not-a-ticket", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
