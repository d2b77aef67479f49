package render

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/Benny93/classgraph/internal/config"
	"github.com/Benny93/classgraph/internal/ingestion"
)

// JSON writes res as indented JSON.
func JSON(w io.Writer, res *ingestion.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return errors.Errorf("encoding json: %w", err)
	}
	return nil
}

// ErrUnknownFormat is returned by WriteFile for formats it cannot render.
var ErrUnknownFormat = errors.Base("unknown output format")

// WriteFile renders res into dir, naming the file after the analyzed
// source, and returns the written path and its size in bytes.
func WriteFile(dir, format string, res *ingestion.Result) (string, int64, error) {
	if format != config.FormatHTML && format != config.FormatJSON {
		return "", 0, errors.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, errors.Errorf("creating %s: %w", dir, err)
	}

	base := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path))
	if base == "" || base == "." {
		base = "class_diagram"
	}
	path := filepath.Join(dir, base+"."+format)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, errors.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if format == config.FormatJSON {
		err = JSON(f, res)
	} else {
		err = HTML(f, res.KnowledgeGraph(), filepath.Base(res.Path))
	}
	if err != nil {
		return "", 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return "", 0, errors.Errorf("stat %s: %w", path, err)
	}
	return path, info.Size(), nil
}
