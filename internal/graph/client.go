package graph

import (
	"context"
	"errors"
)

// Client is the small surface the vouch projection needs from a graph store.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

type Result struct {
	Records []Record
}

type Record map[string]any

type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

var ErrMissingURI = errors.New("graph URI is required")
