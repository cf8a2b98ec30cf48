// 參考 https://auth0.com/docs/get-started/apis/scopes/openid-connect-scopes
package oidc

// Identity 是從 ID Token 取出、對應使用者帳號所需的最小宣告集合
type Identity struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}
