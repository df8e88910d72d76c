package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/internal/storage"
	"github.com/sirosfoundation/go-iso20022/internal/storage/memory"
	"github.com/sirosfoundation/go-iso20022/internal/storage/mongodb"
	"github.com/sirosfoundation/go-iso20022/pkg/parser"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/reliability"
	"github.com/sirosfoundation/go-iso20022/pkg/response"
	"github.com/sirosfoundation/go-iso20022/pkg/rules"
	"github.com/sirosfoundation/go-iso20022/pkg/schema"
)

// newLogger builds the process logger from the logging settings.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// pipelineOptions configures parsing and validation from the iso20022
// settings. Side effects are added by the caller.
func pipelineOptions(cfg config.ISO20022Config, logger *slog.Logger) ([]processor.Option, error) {
	profile, err := rules.ParseProfile(cfg.Validation.Profile)
	if err != nil {
		return nil, err
	}

	opts := []processor.Option{
		processor.WithLogger(logger),
		processor.WithParser(parser.New(
			parser.WithMaxDocumentSize(cfg.MaxDocumentBytes),
			parser.WithLogger(logger),
		)),
		processor.WithBusinessValidator(rules.New(
			rules.WithProfile(profile),
			rules.WithLogger(logger),
		)),
		processor.WithGenerator(response.New(response.WithLogger(logger))),
		processor.WithSupportedMessages(cfg.SupportedMessages...),
	}

	if cfg.SchemaValidationEnabled() {
		resolve := schema.EmbeddedResolver()
		if cfg.SchemaPath != "" {
			resolve = schema.ChainResolver(schema.DirResolver(cfg.SchemaPath), resolve)
		}
		opts = append(opts, processor.WithStructuralValidator(schema.NewValidator(resolve, logger)))
	} else {
		opts = append(opts, processor.WithStructuralValidator(nil))
	}
	return opts, nil
}

// newDetector returns nil when duplicate detection is disabled.
func newDetector(cfg config.DuplicatesConfig) (reliability.Detector, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return reliability.NewMemoryDetector(cfg.Window), nil
	case "redis":
		d, err := reliability.NewRedisDetector(reliability.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Window:    cfg.Window,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown duplicates backend %q", cfg.Backend)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStore(), nil
	case "mongodb":
		s, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:            cfg.MongoDB.URI,
			Database:       cfg.MongoDB.Database,
			Collection:     cfg.MongoDB.Collection,
			GridFSBucket:   cfg.MongoDB.GridFS.BucketName,
			ChunkSizeBytes: cfg.MongoDB.GridFS.ChunkSizeBytes,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
