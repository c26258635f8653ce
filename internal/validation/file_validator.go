package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "csvmapper/internal/errors"
)

// FileValidator checks uploaded files and CLI input/output paths
type FileValidator struct {
	maxBytes   int64
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewFileValidator creates a file validator. A non-positive maxBytes disables
// the size check and an empty extension list accepts every extension.
func NewFileValidator(maxBytes int64, extensions []string, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &FileValidator{
		maxBytes:   maxBytes,
		extensions: allowed,
		logger:     logger.With(slog.String("component", "file_validator")),
	}
}

// MaxBytes returns the configured size limit
func (v *FileValidator) MaxBytes() int64 {
	return v.maxBytes
}

// ValidateUpload checks the name and size of an uploaded file
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewAppValidationError("uploaded file has no name")
	}
	if size == 0 {
		v.logger.Warn("Empty upload rejected", slog.String("file", name))
		return apperrors.NewAppValidationError(fmt.Sprintf("file %s is empty", name)).
			WithContext("file", name)
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Warn("Upload exceeds size limit",
			slog.String("file", name),
			slog.Int64("size", size),
			slog.Int64("max_bytes", v.maxBytes))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("file %s is %d bytes, the limit is %d", name, size, v.maxBytes)).
			WithContext("file", name).
			WithContext("max_bytes", v.maxBytes)
	}
	if err := v.ValidateExtension(name); err != nil {
		return err
	}

	v.logger.Debug("Upload validated",
		slog.String("file", name),
		slog.Int64("size", size))
	return nil
}

// ValidateExtension rejects file names whose extension is not allowed
func (v *FileValidator) ValidateExtension(name string) error {
	if len(v.extensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := v.extensions[ext]; ok {
		return nil
	}
	v.logger.Warn("Unsupported file extension",
		slog.String("file", name),
		slog.String("extension", ext))
	return apperrors.NewAppValidationError(
		fmt.Sprintf("file %s has unsupported extension %q; allowed: %s", name, ext, strings.Join(v.AllowedExtensions(), ", "))).
		WithContext("file", name)
}

// AllowedExtensions returns the accepted extensions in sorted order
func (v *FileValidator) AllowedExtensions() []string {
	out := make([]string, 0, len(v.extensions))
	for ext := range v.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	return v.ValidateUpload(filepath.Base(path), info.Size())
}

// ValidateOutputDirectory ensures the directory of an output file exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}
