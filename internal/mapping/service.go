package mapping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"indexer/internal/logger"
	apperrors "indexer/pkg/errors"
	"indexer/pkg/metrics"
)

// Service resolves registered mappings and runs the matching tool. Temporary
// input and result files live in workDir.
type Service struct {
	repo    Repository
	tools   map[string]Tool
	workDir billy.Filesystem
	logger  logger.Logger
}

func NewService(repo Repository, workDir billy.Filesystem, log logger.Logger) *Service {
	return &Service{
		repo:    repo,
		tools:   make(map[string]Tool),
		workDir: workDir,
		logger:  log,
	}
}

func (s *Service) RegisterTool(mappingType string, tool Tool) {
	s.tools[strings.ToUpper(mappingType)] = tool
}

func (s *Service) Get(ctx context.Context, id string) (*Mapping, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, m Mapping) (*Mapping, error) {
	m.Type = strings.ToUpper(strings.TrimSpace(m.Type))
	switch {
	case strings.TrimSpace(m.ID) == "":
		return nil, apperrors.ErrValidation.WithDetail("field", "id")
	case m.DocumentPath == "":
		return nil, apperrors.ErrValidation.WithDetail("field", "document_path")
	}
	if _, ok := s.tools[m.Type]; !ok {
		return nil, apperrors.ErrValidation.WithDetail("unsupported_type", m.Type)
	}

	m.CreatedAt = time.Now().UTC()
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Map satisfies MapFunc. An empty mappingType falls back to the registered type.
func (s *Service) Map(ctx context.Context, mappingID, mappingType, inputPath string) (string, error) {
	m, err := s.repo.Get(ctx, mappingID)
	if err != nil {
		return "", err
	}

	if mappingType == "" {
		mappingType = m.Type
	}
	tool, ok := s.tools[strings.ToUpper(mappingType)]
	if !ok {
		return "", apperrors.ErrValidation.WithDetail("unsupported_type", mappingType)
	}

	result, err := s.workDir.TempFile("", "mapping-result-")
	if err != nil {
		return "", fmt.Errorf("create result file: %w", err)
	}
	resultPath := s.absolute(result.Name())
	result.Close()

	if err := tool.Map(ctx, m.DocumentPath, inputPath, resultPath); err != nil {
		metrics.IncMappingExecution("error")
		s.workDir.Remove(result.Name())
		return "", apperrors.ErrInternal.WithCause(err).WithDetail("mapping_id", mappingID)
	}

	metrics.IncMappingExecution("ok")
	return resultPath, nil
}

// Execute maps an in-memory document and returns the mapped bytes, cleaning
// up both temporary files.
func (s *Service) Execute(ctx context.Context, mappingID, mappingType string, document io.Reader) ([]byte, error) {
	input, err := s.workDir.TempFile("", "mapping-input-")
	if err != nil {
		return nil, fmt.Errorf("create input file: %w", err)
	}
	defer s.workDir.Remove(input.Name())

	if _, err := io.Copy(input, document); err != nil {
		input.Close()
		return nil, fmt.Errorf("write input file: %w", err)
	}
	if err := input.Close(); err != nil {
		return nil, fmt.Errorf("close input file: %w", err)
	}

	resultPath, err := s.Map(ctx, mappingID, mappingType, s.absolute(input.Name()))
	if err != nil {
		return nil, err
	}
	resultName := s.relative(resultPath)
	defer s.workDir.Remove(resultName)

	data, err := util.ReadFile(s.workDir, resultName)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(fmt.Errorf("read mapping result: %w", err))
	}
	if len(data) == 0 {
		return nil, apperrors.ErrInternal.WithCause(errors.New("mapping produced no output"))
	}
	return data, nil
}

func (s *Service) absolute(name string) string {
	return filepath.Join(s.workDir.Root(), name)
}

func (s *Service) relative(path string) string {
	rel, err := filepath.Rel(s.workDir.Root(), path)
	if err != nil {
		return path
	}
	return rel
}
