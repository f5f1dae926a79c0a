// =============================================================================
// pkg/utils/file_utils.go - File Utilities
// =============================================================================
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultContentType is served when the extension is unknown.
const DefaultContentType = "video/mp4"

// VideoExtensions maps common video file extensions to their MIME type
var VideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
}

// IsVideoFile checks if a file is a video file based on extension
func IsVideoFile(filename string) bool {
	_, ok := VideoExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ContentType returns the MIME type for filename, falling back to video/mp4
func ContentType(filename string) string {
	if ct, ok := VideoExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return DefaultContentType
}

// CreateTempDir creates a temporary directory for downloads
func CreateTempDir() (string, error) {
	return os.MkdirTemp("", "seedstream-*")
}

// DefaultSaveDir is used when a session is created without a save location
func DefaultSaveDir() string {
	return filepath.Join(os.TempDir(), "seedstream")
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
