package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrStateMismatch = errors.New("state mismatch")
	ErrNonceMismatch = errors.New("nonce mismatch")
)

// Provider 包裝單一 OIDC 提供者，負責授權 URL 組裝與授權碼交換
type Provider struct {
	*oidc.Provider

	clientID     string
	clientSecret string
}

func NewProvider(issuerURL, clientID, clientSecret string) (*Provider, error) {
	const op = "NewProvider"
	provider, err := oidc.NewProvider(context.Background(), issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create provider, err=%w", op, err)
	}
	return &Provider{
		Provider:     provider,
		clientID:     clientID,
		clientSecret: clientSecret,
	}, nil
}

func (p *Provider) oauth2Config(redirectURL string, scopes []string) oauth2.Config {
	return oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     p.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// AuthURL 組出導向外部提供者的授權 URL
func (p *Provider) AuthURL(state, nonce, redirectURL string, scopes []string) string {
	config := p.oauth2Config(redirectURL, scopes)
	return config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange 以授權碼交換令牌並驗證其中的 ID Token
func (p *Provider) Exchange(ctx context.Context, verifier *ExchangeVerifier, code, state, redirectURL string) (*Identity, error) {
	const op = "Exchange"
	if !verifier.VerifyState(state) {
		return nil, ErrStateMismatch
	}
	config := p.oauth2Config(redirectURL, nil)
	oauth2Token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("[%s] Failed to exchange token, err=%w", op, err)
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("[%s] No id_token field in oauth2 token", op)
	}
	idToken, err := verifier.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[%s] Failed to verify ID Token, err=%w", op, err)
	}
	if !verifier.VerifyNonce(idToken.Nonce) {
		return nil, ErrNonceMismatch
	}
	identity := new(Identity)
	if err := idToken.Claims(identity); err != nil {
		return nil, fmt.Errorf("[%s] Failed to parse ID Token claims, err=%w", op, err)
	}
	return identity, nil
}

// NewExchangeVerifier 建立一組用於單次交換流程的驗證器
func (p *Provider) NewExchangeVerifier(reqState, reqNonce string) *ExchangeVerifier {
	return &ExchangeVerifier{
		idTokenVerifier: p.Verifier(&oidc.Config{ClientID: p.clientID}),
		reqState:        reqState,
		reqNonce:        reqNonce,
	}
}

// ExchangeVerifier 用於驗證 OIDC 身份驗證過程中的令牌和狀態
type ExchangeVerifier struct {
	idTokenVerifier *oidc.IDTokenVerifier // ID 令牌驗證器
	reqState        string                // 請求狀態值
	reqNonce        string                // 請求隨機數
}

// VerifyIDToken 驗證 ID 令牌的有效性
func (v *ExchangeVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	const op = "VerifyIDToken"
	idToken, err := v.idTokenVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[%s] err=%w", op, err)
	}
	return idToken, nil
}

// VerifyState 驗證狀態值是否匹配
func (v *ExchangeVerifier) VerifyState(state string) bool {
	return state == v.reqState
}

// VerifyNonce 驗證隨機數是否匹配
func (v *ExchangeVerifier) VerifyNonce(nonce string) bool {
	return nonce == v.reqNonce
}
