// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"doc-chat-go/internal/model"
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// chatSession 维护单个 WebSocket 连接的状态：
// 写锁保证流式 goroutine 与读循环不会交错写帧，
// cancel 用于中止当前在途问题的生成。
// seq 区分前后两个问题，旧问题收尾时不会误伤新问题。
type chatSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

func (s *chatSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Handle 处理一个传入的 WebSocket 连接。
// 浏览器 WebSocket 无法设置请求头，token 经路径参数传入。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	if h.userService.IsTokenRevoked(tokenString) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "token 已失效", "data": nil})
		return
	}

	// 获取用户模型
	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	session := &chatSession{conn: conn}
	// 连接关闭时终止仍在进行的生成
	defer session.stopCurrent()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		// JSON 控制指令: {"type":"stop"} 中止当前在途问题
		if ctrl := parseControl(message); ctrl == "stop" {
			log.Infof("收到停止指令，用户: %s", claims.Username)
			session.stopCurrent()
			continue
		}

		question := strings.TrimSpace(string(message))
		if question == "" {
			continue
		}
		log.Infof("收到 WebSocket 问题, 用户: %s", claims.Username)

		// 同一连接上一次只处理一个问题，新问题会中止上一个
		ctx, cancel := context.WithCancel(context.Background())
		seq := session.setCurrent(cancel)

		events, err := h.chatService.StreamAnswer(ctx, user, question)
		if err != nil {
			session.clearCurrent(seq)
			log.Errorf("启动流式回答失败, 用户: %s, Error: %v", claims.Username, err)
			_ = session.writeJSON(gin.H{"error": streamErrorMessage(err)})
			continue
		}

		go func() {
			defer session.clearCurrent(seq)
			h.forwardEvents(session, events)
		}()
	}
}

// forwardEvents 把服务层事件流转成 WebSocket 帧。
// 成功流以一个 {"sources": [...]} 帧收尾；失败流以 {"error": "..."} 帧收尾。
func (h *ChatHandler) forwardEvents(session *chatSession, events <-chan model.StreamEvent) {
	for event := range events {
		switch event.Type {
		case model.EventAnswerChunk:
			if err := session.writeJSON(gin.H{"answer_chunk": event.AnswerChunk}); err != nil {
				// 写失败说明连接已断，defer 的 clearCurrent 会取消生成
				log.Warnf("写 WebSocket 帧失败: %v", err)
				return
			}
		case model.EventSources:
			if err := session.writeJSON(gin.H{"sources": event.Sources}); err != nil {
				log.Warnf("写 WebSocket 帧失败: %v", err)
				return
			}
		case model.EventError:
			_ = session.writeJSON(gin.H{"error": streamErrorMessage(event.Err)})
			return
		}
	}
}

// setCurrent 中止上一个问题并登记新问题的取消函数，返回新问题的序号。
func (s *chatSession) setCurrent(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel
	return s.seq
}

// stopCurrent 中止当前在途问题（如果有）。
func (s *chatSession) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// clearCurrent 释放指定问题的取消函数；该问题已被新问题顶替时不做任何事。
func (s *chatSession) clearCurrent(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// parseControl 解析 JSON 控制消息的 type 字段，非控制消息返回空串。
func parseControl(message []byte) string {
	if len(message) == 0 || message[0] != '{' {
		return ""
	}
	var ctrl struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &ctrl); err != nil {
		return ""
	}
	return ctrl.Type
}

// streamErrorMessage 把服务层错误映射为面向用户的提示。
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		return "向量化服务暂时不可用，请稍后重试"
	case errors.Is(err, service.ErrStorageFailure):
		return "知识库加载失败，请稍后重试"
	case errors.Is(err, service.ErrGenerationFailure):
		return "AI服务暂时不可用，请稍后重试"
	default:
		return "AI服务暂时不可用，请稍后重试"
	}
}
