package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/listing-studio/pkg/types"
)

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp":
		return true
	}
	return false
}

// ResultFilename names a downloaded result, e.g. "listing-main_4_3.jpg".
func ResultFilename(prefix, presetID string, format types.Format) string {
	name := SanitizeFilename(prefix + presetID)
	if name == "" {
		name = "result"
	}
	return fmt.Sprintf("%s.%s", name, format.Extension())
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	result = strings.Trim(result, " .")

	return result
}

// ZipResults writes every result into a zip archive, ordered by preset id.
func ZipResults(w io.Writer, prefix string, results map[string]types.EncodedImage) error {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	zw := zip.NewWriter(w)
	for _, id := range ids {
		res := results[id]
		// already compressed image data
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:   ResultFilename(prefix, id, res.Format),
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("adding %s: %w", id, err)
		}
		if _, err := f.Write(res.Data); err != nil {
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}
	return zw.Close()
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
