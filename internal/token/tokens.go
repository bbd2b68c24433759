package token

import (
	"context"
)

// Tokens static bearer token per-RPC credentials. An empty token sends no metadata.
type Tokens struct {
	Token string
}

func (t *Tokens) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	if t.Token == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"authorization": "Bearer " + t.Token}, nil
}

func (t *Tokens) RequireTransportSecurity() bool {
	return false
}
