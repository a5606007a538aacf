package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// FileFormat represents the artifacts a saved index consists of
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatSuffix             // Suffix table, "start length" per line
	FormatLCP                // LCP table, one integer per line
	FormatSkip               // Skip table, one integer per line
	FormatCorpus             // Raw sentinel framed corpus bytes
	FormatCatalog            // Msgpack record catalog
)

// FormatInfo contains metadata about an artifact format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extension   string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatSuffix: {
		Format:      FormatSuffix,
		Description: "Suffix Table",
		Extension:   ".sa",
	},
	FormatLCP: {
		Format:      FormatLCP,
		Description: "LCP Table",
		Extension:   ".lcp",
	},
	FormatSkip: {
		Format:      FormatSkip,
		Description: "Skip Table",
		Extension:   ".skip",
	},
	FormatCorpus: {
		Format:      FormatCorpus,
		Description: "Corpus",
		Extension:   ".corpus",
		MinSize:     2, // two sentinels
	},
	FormatCatalog: {
		Format:      FormatCatalog,
		Description: "Record Catalog",
		Extension:   ".cat",
		MinSize:     1,
	},
}

// Path returns the artifact path for prefix in the given format.
func Path(prefix string, format FileFormat) string {
	return prefix + supportedFormats[format].Extension
}

// ValidateFileFormat checks if a file matches the expected format
func ValidateFileFormat(filename string, expectedFormat FileFormat) error {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	formatInfo, exists := supportedFormats[expectedFormat]
	if !exists {
		return fmt.Errorf("unknown format: %v", expectedFormat)
	}

	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != formatInfo.Extension {
		return fmt.Errorf("file %s has invalid extension %s for format %s (expected: %s)",
			filename, ext, formatInfo.Description, formatInfo.Extension)
	}

	switch expectedFormat {
	case FormatSuffix:
		return validateTableFormat(filename, 2)
	case FormatLCP, FormatSkip:
		return validateTableFormat(filename, 1)
	case FormatCorpus:
		return validateCorpusFormat(filename, fileInfo.Size())
	}
	return nil
}

// validateTableFormat checks that the first line holds the expected number of fields
func validateTableFormat(filename string, fields int) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read from %s: %w", filename, err)
		}
		log.Debugf("Table file %s validated: empty", filename)
		return nil
	}
	if got := len(strings.Fields(sc.Text())); got != fields {
		return fmt.Errorf("invalid first line in %s: %d fields, want %d", filename, got, fields)
	}

	log.Debugf("Table file %s validated", filename)
	return nil
}

// validateCorpusFormat checks the sentinel framing without reading the whole file
func validateCorpusFormat(filename string, size int64) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	var first, last [1]byte
	if _, err := file.ReadAt(first[:], 0); err != nil {
		return fmt.Errorf("failed to read header from %s: %w", filename, err)
	}
	if _, err := file.ReadAt(last[:], size-1); err != nil {
		return fmt.Errorf("failed to read trailer from %s: %w", filename, err)
	}
	if first[0] != last[0] {
		return fmt.Errorf("corpus %s is not framed: starts with %q, ends with %q", filename, first[0], last[0])
	}

	log.Debugf("Corpus file %s validated: %d bytes", filename, size)
	return nil
}

// DetectFileFormat attempts to detect the format of a file
func DetectFileFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for format, info := range supportedFormats {
		if info.Extension != ext {
			continue
		}
		if err := ValidateFileFormat(filename, format); err != nil {
			return FormatUnknown, err
		}
		return format, nil
	}
	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", filename)
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}
