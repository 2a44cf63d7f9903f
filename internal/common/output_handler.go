package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"resumeforge/internal/errors"
	"resumeforge/internal/formatters"
)

// CommandConfig carries the output options shared by the enhance and
// analyze commands.
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler renders a pipeline result and delivers it to the
// requested destination: a file when one was given, the terminal
// otherwise.
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	stdout        io.Writer
	logger        *errors.Logger
}

// NewOutputHandler creates an OutputHandler writing terminal output to
// os.Stdout.
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return &OutputHandler{
		fileProcessor: NewFileProcessor(logger),
		registry:      formatters.GlobalRegistry,
		stdout:        os.Stdout,
		logger:        logger,
	}
}

// HandleOutput renders data in config.OutputFormat and writes it out.
// Terminal output gets a trailing newline so the prompt does not run
// into the result; file output is written byte-exact.
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	rendered, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("cannot render result as %s", config.OutputFormat), err)
	}

	if config.OutputFile == "" {
		if !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
		if _, err := io.WriteString(oh.stdout, rendered); err != nil {
			return errors.NewIOError(errors.ErrCodeFileNotReadable, "write result to terminal", err)
		}
		return nil
	}

	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}
	if err := oh.fileProcessor.WriteFile(config.OutputFile, []byte(rendered)); err != nil {
		return err
	}
	oh.logger.Info("result written",
		"file", config.OutputFile,
		"format", config.OutputFormat,
		"bytes", len(rendered))
	return nil
}
