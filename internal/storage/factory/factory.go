// Package factory instantiates storage backends from configuration. It
// lives apart from package storage so the interface package stays free of
// implementation imports.
package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcollard/webshell/internal/storage"
	"github.com/jcollard/webshell/internal/storage/local"
	"github.com/jcollard/webshell/internal/storage/memory"
	"github.com/jcollard/webshell/internal/storage/postgres"
	s3backend "github.com/jcollard/webshell/internal/storage/s3"
)

// New creates a Backend from a backend type string and JSON config.
func New(ctx context.Context, backendType string, config json.RawMessage) (storage.Backend, error) {
	switch backendType {
	case "memory":
		return memory.NewFromJSON(config)
	case "local":
		return local.NewFromJSON(config)
	case "s3":
		return s3backend.NewFromJSON(ctx, config)
	case "postgres":
		return postgres.NewFromJSON(ctx, config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", backendType)
	}
}
