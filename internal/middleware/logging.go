// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"music-copilot-go/pkg/log"
)

// maxLoggedBody 是日志中记录的请求体与响应体的最大字节数。
const maxLoggedBody = 4 << 10

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 将响应写入 gin.ResponseWriter，同时在上限内保留一份副本
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求与响应日志。
// 流式对话、WebSocket 升级与文件上传只记录元信息，不捕获包体。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		capture := !isStreaming(c)
		var requestBody []byte
		if capture && c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 放回请求体，后续处理函数可以正常读取
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		var blw *bodyLogWriter
		if capture {
			blw = &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
			c.Writer = blw
		}

		c.Next()

		fields := []any{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if capture {
			fields = append(fields,
				"requestBody", truncate(requestBody),
				"responseBody", truncate(blw.body.Bytes()),
			)
		} else {
			fields = append(fields, "streaming", true)
		}
		log.Infow("HTTP Request Log", fields...)
	}
}

func isStreaming(c *gin.Context) bool {
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/") {
		return true
	}
	return c.Request.Method == "POST" && c.FullPath() == "/api/chat"
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
