package mapping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"indexer/internal/logger"
)

// Tool runs one kind of mapping over files on disk.
type Tool interface {
	Map(ctx context.Context, mappingFile, inputPath, outputPath string) error
}

// GemmaTool shells out to the GEMMA python script:
// <python> <script> <mapping file> <input> <output>. Exit status 0 is success.
type GemmaTool struct {
	python string
	script string
	logger logger.Logger
}

func NewGemmaTool(python, script string, log logger.Logger) *GemmaTool {
	return &GemmaTool{python: python, script: script, logger: log}
}

func (g *GemmaTool) Map(ctx context.Context, mappingFile, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, g.python, g.script, mappingFile, inputPath, outputPath)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	g.logger.DebugwCtx(ctx, "Running mapping tool",
		"script", g.script,
		"mapping_file", mappingFile,
		"input", inputPath,
		"output", outputPath,
	)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return fmt.Errorf("gemma exited with code %d: %w (output: %s)", exitCode, err, strings.TrimSpace(output.String()))
	}
	return nil
}
