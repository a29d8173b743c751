// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/service"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	// 跨域由 CORS 中间件控制，票据本身已完成鉴权
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler 负责 SSE 与 WebSocket 两种流式对话入口。
type ChatHandler struct {
	chatService service.ChatService
	tickets     *token.TicketManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, tickets *token.TicketManager) *ChatHandler {
	return &ChatHandler{chatService: chatService, tickets: tickets}
}

// Stream 处理 POST /api/chat，以 text/event-stream 逐帧返回事件。
func (h *ChatHandler) Stream(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "请求参数错误", "data": nil})
		return
	}
	if _, err := service.ValidateMessage(req.Message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "消息不能为空且不能超过 2000 个字符", "data": nil})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	emit := func(ev model.Event) error {
		frame, err := model.EncodeFrame(ev)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write(frame); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.chatService.StreamResponse(c.Request.Context(), req, emit); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Infof("[ChatHandler] 客户端断开，流式响应结束")
			return
		}
		log.Warnf("[ChatHandler] 流式响应异常结束: %v", err)
	}
}

// IssueTicket 处理 GET /api/chat/ticket，签发 WebSocket 连接使用的短期票据。
func (h *ChatHandler) IssueTicket(c *gin.Context) {
	ticket, expiresAt, err := h.tickets.Issue(c.Query("conversation_id"))
	if err != nil {
		log.Errorf("[ChatHandler] 签发票据失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "签发票据失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"ticket": ticket, "expires_at": model.LocalTime(expiresAt)},
	})
}

// wsMessage 是客户端通过 WebSocket 发来的消息：对话请求或 {"type":"stop"} 控制指令。
type wsMessage struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// wsSession 保存一条 WebSocket 连接上的状态。同一时刻只处理一轮对话。
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu             sync.Mutex
	cancel         context.CancelFunc
	conversationID string
	wg             sync.WaitGroup
}

func (s *wsSession) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSession) writeEvent(ev model.Event) error {
	b, err := model.MarshalEvent(ev)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// stop 取消正在进行的一轮对话，返回是否确有对话被取消。
func (s *wsSession) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Handle 处理 GET /api/chat/ws/:ticket。
// 每条文本消息发起一轮对话，事件以与 SSE 相同的 JSON 逐条下发；{"type":"stop"} 中断当前回复。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.tickets.Verify(c.Param("ticket"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的票据", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	sess := &wsSession{conn: conn, conversationID: claims.ConversationID}
	connCtx, cancelConn := context.WithCancel(c.Request.Context())
	defer func() {
		cancelConn()
		sess.wg.Wait()
	}()
	log.Infof("[ChatHandler] WebSocket 连接已建立, conversation=%s", claims.ConversationID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = sess.writeEvent(model.ErrorEvent{Content: "消息格式错误"})
			continue
		}

		if msg.Type == "stop" {
			if sess.stop() {
				log.Info("收到停止指令，正在中断流式响应...")
			}
			_ = sess.write(gin.H{"type": "stop", "message": "响应已停止", "timestamp": time.Now().UnixMilli()})
			continue
		}

		if _, err := service.ValidateMessage(msg.Message); err != nil {
			_ = sess.writeEvent(model.ErrorEvent{Content: "消息不能为空且不能超过 2000 个字符"})
			continue
		}
		h.startRound(connCtx, sess, msg)
	}
}

func (h *ChatHandler) startRound(ctx context.Context, sess *wsSession, msg wsMessage) {
	sess.mu.Lock()
	if sess.cancel != nil {
		sess.mu.Unlock()
		_ = sess.writeEvent(model.ErrorEvent{Content: "上一条回复尚未结束，请稍后再试"})
		return
	}
	roundCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	req := service.ChatRequest{Message: msg.Message, ConversationID: msg.ConversationID}
	if req.ConversationID == "" {
		req.ConversationID = sess.conversationID
	}
	sess.mu.Unlock()

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer func() {
			sess.mu.Lock()
			sess.cancel = nil
			sess.mu.Unlock()
			cancel()
		}()

		emit := func(ev model.Event) error {
			if done, ok := ev.(model.DoneEvent); ok && done.ConversationID != "" {
				sess.mu.Lock()
				sess.conversationID = done.ConversationID
				sess.mu.Unlock()
			}
			return sess.writeEvent(ev)
		}
		if err := h.chatService.StreamResponse(roundCtx, req, emit); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("[ChatHandler] WebSocket 对话异常结束: %v", err)
		}
	}()
}
