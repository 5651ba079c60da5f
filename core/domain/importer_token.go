package domain

import "time"

// Credentials holds a tenant's OAuth client configuration. Loaded once
// per request context and never mutated by the service.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	AuthURI      string `json:"authUri"`
	TokenURI     string `json:"tokenUri"`
}

func (c *Credentials) Complete() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.TokenURI != ""
}

// Token is the persisted access/refresh token pair for a tenant.
// ExpiresAt is computed locally at save time, never supplied by the
// provider.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// Valid reports whether the token can be used without a refresh.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && t.ExpiresAt.After(now)
}

// StampExpiry recomputes ExpiresAt from ExpiresIn. Called immediately
// after every successful exchange or refresh.
func (t *Token) StampExpiry(now time.Time) {
	t.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// InheritRefreshToken keeps the previous refresh token when the
// provider omitted one from a refresh response.
func (t *Token) InheritRefreshToken(prev *Token) {
	if t.RefreshToken == "" && prev != nil {
		t.RefreshToken = prev.RefreshToken
	}
}
