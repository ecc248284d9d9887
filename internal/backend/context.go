package backend

import "context"

type ctxKey struct{}

// WithAccessToken returns a context whose backend calls run as the holder
// of token. An empty token means anonymous access.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// AccessToken returns the token stored by WithAccessToken, or "".
func AccessToken(ctx context.Context) string {
	tok, _ := ctx.Value(ctxKey{}).(string)
	return tok
}
