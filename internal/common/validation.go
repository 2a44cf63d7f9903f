package common

import (
	"fmt"
	"slices"

	"resumeforge/internal/utils"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateDocumentFile checks that a resume document has a supported
// extension before the pipeline reads it.
func ValidateDocumentFile(filename string) error {
	if utils.IsDocumentFile(filename) {
		return nil
	}
	return fmt.Errorf("unsupported document type '%s'. Supported extensions: %v",
		utils.GetFileExtension(filename), utils.DocumentExtensions())
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}
