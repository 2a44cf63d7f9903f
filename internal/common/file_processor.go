package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resumeforge/internal/errors"
	"resumeforge/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// ReadFile reads text content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	data, err := fp.ReadBytes(filename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBytes reads raw content from a file. Resume documents can be
// binary (docx, pdf), so the pipeline always takes bytes.
func (fp *FileProcessor) ReadBytes(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil && fp.logger != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return content, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename string, content []byte) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, content, 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ReadJobDescription validates and reads a job-description text file.
func (fp *FileProcessor) ReadJobDescription(filename string) (string, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return "", errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	if !utils.IsTextFile(filename) && fp.logger != nil {
		fp.logger.Warn("Job description may not be a text file", "filename", filename)
	}
	return fp.ReadFile(filename)
}

// ReadDocument validates and reads a resume document, returning its
// raw bytes for format detection downstream.
func (fp *FileProcessor) ReadDocument(filename string) ([]byte, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	if err := ValidateDocumentFile(filename); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE", err.Error(), nil)
	}
	return fp.ReadBytes(filename)
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
