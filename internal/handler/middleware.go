package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/attendlog/internal/auth"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	contextUsernameKey = "username"
)

// AgentAuth 校验心跳代理的 Bearer token。
func (a *API) AgentAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.agentToken == "" {
			respondError(c, http.StatusServiceUnavailable, "未配置 BEARER_TOKEN")
			c.Abort()
			return
		}
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.agentToken)) != 1 {
			respondError(c, http.StatusUnauthorized, "无效的 token")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthRequired 接受后台会话或 API token。页面请求未登录时跳转到登录页，API 请求返回 401。
func (a *API) AuthRequired(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(sessionUserIDKey) != nil {
			if name, ok := session.Get(sessionUsernameKey).(string); ok {
				c.Set(contextUsernameKey, name)
			}
			c.Next()
			return
		}

		if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			claims, err := a.auth.ParseToken(token)
			if err == nil {
				c.Set(contextUsernameKey, claims.Username)
				c.Next()
				return
			}
		}

		if api {
			respondError(c, http.StatusUnauthorized, "未登录或 token 无效")
		} else {
			c.Redirect(http.StatusFound, "/admin/login")
		}
		c.Abort()
	}
}

func currentUsername(c *gin.Context) string {
	if name, ok := c.Get(contextUsernameKey); ok {
		if s, ok := name.(string); ok {
			return s
		}
	}
	return ""
}
