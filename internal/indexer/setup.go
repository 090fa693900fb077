package indexer

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sony/gobreaker"

	"indexer/internal/config"
	"indexer/internal/logger"
	"indexer/internal/runlog"
	"indexer/pkg/cel"
	"indexer/pkg/circuitbreaker"
)

// Pipeline is everything a configured handler needs, assembled once at
// startup. Any error here must abort startup.
type Pipeline struct {
	Coordinator *Coordinator
	Archiver    *Archiver
	Fetcher     *Fetcher
	Publisher   *Publisher
}

// Build creates the storage dir, compiles the template and the optional
// guard, and wires the HTTP stages.
func Build(cfg *config.Config, recorder runlog.Recorder, log logger.Logger) (*Pipeline, error) {
	ic := cfg.Indexer

	archiver, err := NewArchiver(osfs.New(ic.StorageDir))
	if err != nil {
		return nil, fmt.Errorf("archiver: %w", err)
	}

	templatePath, err := filepath.Abs(ic.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("template path: %w", err)
	}
	dir, file := filepath.Split(templatePath)
	transformer, err := LoadTransformer(osfs.New(dir), file, ic.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("transformer: %w", err)
	}

	var guard *cel.Guard
	if ic.AcceptExpression != "" {
		if guard, err = cel.NewGuard(ic.AcceptExpression); err != nil {
			return nil, fmt.Errorf("accept expression: %w", err)
		}
	}

	fetcher := NewFetcher(ic.FetchTimeout, breakerOption(cfg.CircuitBreaker, "record-source", log)...)
	publisher := NewPublisher(ic.ElasticURL, ic.ElasticIndex, ic.PublishTimeout, breakerOption(cfg.CircuitBreaker, "search-index", log)...)

	coordinator, err := NewCoordinator(Dependencies{
		HandlerID:   ic.HandlerID,
		Guard:       guard,
		Source:      fetcher,
		Transformer: transformer,
		Store:       archiver,
		Index:       publisher,
		Recorder:    recorder,
		Policy: Policy{
			FailOnArchiveError: ic.FailOnArchiveError,
			FailOnPublishError: ic.FailOnPublishError,
		},
		Logger: log.Named("coordinator"),
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Coordinator: coordinator,
		Archiver:    archiver,
		Fetcher:     fetcher,
		Publisher:   publisher,
	}, nil
}

func breakerOption(cfg config.CircuitBreakerConfig, name string, log logger.Logger) []HTTPOption {
	if !cfg.Enabled {
		return nil
	}

	cbCfg := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbCfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbCfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbCfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbCfg.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbCfg.MinRequests = cfg.MinRequests
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warnw("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}

	return []HTTPOption{WithCircuitBreaker(circuitbreaker.New(cbCfg))}
}
