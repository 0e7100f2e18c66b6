package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	internalOIDC "cardbid/adapters/oidc"
	"cardbid/models"
)

const contextKeyPrincipal = "cardbid-principal"

// IdentityResolver 將請求帶來的憑證解析為帳號身份。
// 憑證的核發與撤銷由外部系統負責，這裡只信任解析後的結果。
type IdentityResolver interface {
	Resolve(ctx context.Context, rawToken string) (subject, username string, err error)
}

// OIDCResolver 透過OIDC提供者驗證ID token
type OIDCResolver struct {
	provider *internalOIDC.Provider
}

func (r *OIDCResolver) Resolve(ctx context.Context, rawToken string) (string, string, error) {
	token, err := r.provider.VerifyBearer(ctx, rawToken)
	if err != nil {
		return "", "", err
	}
	username := token.Name
	if username == "" {
		username = token.Nickname
	}
	return token.Sub, username, nil
}

// AuthMiddleware 解析請求的身份並載入對應的使用者。
// 沒有憑證的請求會繼續往下走，由各個handler決定是否要求登入。
func (impl *ServerImpl) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := bearerToken(c)
		if rawToken == "" {
			c.Next()
			return
		}
		subject, username, err := impl.identity.Resolve(c.Request.Context(), rawToken)
		if err != nil {
			slog.Debug("Fail to resolve identity", slog.Any("error", err))
			c.Next()
			return
		}
		// 第一次看到的身份會建立對應的使用者
		user, err := impl.store.EnsureUser(c.Request.Context(), subject, username)
		if err != nil {
			slog.Error("Fail to ensure user", slog.Any("error", err))
			c.Next()
			return
		}
		c.Set(contextKeyPrincipal, user)
		c.Next()
	}
}

// principalFrom 取得請求的登入使用者，未登入時回傳nil
func principalFrom(c *gin.Context) *models.User {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// bearerToken 從Authorization標頭或cookie取出憑證
func bearerToken(c *gin.Context) string {
	authorization := c.GetHeader("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimPrefix(authorization, "Bearer ")
	}
	if token, err := c.Cookie("access_token"); err == nil {
		return token
	}
	return ""
}
