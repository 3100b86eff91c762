package server

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"skirace/config"
)

// ErrUnknownToken token 不在身份表中
var ErrUnknownToken = errors.New("unknown token")

// Identity 解析后的身份
type Identity struct {
	UserID      string
	DisplayName string
	Guest       bool
}

// IdentityResolver 把不透明 token 映射为用户；空 token 视为游客
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// TokenResolver 静态 token 表
type TokenResolver struct {
	tokens map[string]config.TokenEntry
}

func NewTokenResolver(entries []config.TokenEntry) *TokenResolver {
	r := &TokenResolver{tokens: make(map[string]config.TokenEntry, len(entries))}
	for _, e := range entries {
		r.tokens[e.Token] = e
	}
	return r
}

func (r *TokenResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Guest(), nil
	}
	e, ok := r.tokens[token]
	if !ok {
		return Identity{}, ErrUnknownToken
	}
	return Identity{UserID: e.UserID, DisplayName: e.DisplayName}, nil
}

// Guest 生成游客身份，名称形如 Guest-7F3A
func Guest() Identity {
	id := uuid.New()
	return Identity{
		DisplayName: "Guest-" + strings.ToUpper(id.String()[:4]),
		Guest:       true,
	}
}
