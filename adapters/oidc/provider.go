package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Provider 包裝身份提供者的公開金鑰端點，
// 用於驗證請求帶來的 ID token 並解析出帳號身份。
// 登入與憑證核發由外部系統負責，這裡只消費驗證結果。
type Provider struct {
	*oidc.Provider

	clientID string
}

func NewProvider(issuerURL, clientID string) (*Provider, error) {
	const op = "NewProvider"
	provider, err := oidc.NewProvider(context.Background(), issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create provider, err=%w", op, err)
	}
	return &Provider{
		Provider: provider,
		clientID: clientID,
	}, nil
}

// VerifyBearer 驗證一個 raw ID token 並回傳其中的身份宣告。
// 簽章、發行者、受眾或有效期限不符都會回傳錯誤。
func (p *Provider) VerifyBearer(ctx context.Context, rawIDToken string) (*IDToken, error) {
	const op = "VerifyBearer"
	verifier := p.Verifier(&oidc.Config{ClientID: p.clientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[%s] Failed to verify ID Token, err=%w", op, err)
	}
	token := &IDToken{internal: idToken}
	if err := idToken.Claims(token); err != nil {
		return nil, fmt.Errorf("[%s] Failed to parse ID Token claims, err=%w", op, err)
	}
	return token, nil
}
