// Package report renders analysis responses into the per-image result file.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresuchdata/visionbatch/internal/analysis"
	"github.com/andresuchdata/visionbatch/internal/storage"
)

// Writer creates result files under Dir/<results prefix>/.
type Writer struct {
	Dir           string
	ResultsPrefix string
	Suffix        string
}

// NewWriter returns a Writer for the given local root, results prefix and suffix.
func NewWriter(dir, resultsPrefix, suffix string) *Writer {
	return &Writer{Dir: dir, ResultsPrefix: resultsPrefix, Suffix: suffix}
}

// Key returns the object key the result file for name is published under.
func (w *Writer) Key(name string) string {
	return storage.ResultKey(w.ResultsPrefix, name, w.Suffix)
}

// Path returns the local path of the result file for name.
func (w *Writer) Path(name string) string {
	return storage.LocalPath(w.Dir, w.Key(name))
}

// Write creates or truncates the result file for name and dumps the labels,
// faces and text responses, one labelled line each, in that order.
func (w *Writer) Write(name string, res *analysis.Result) (string, error) {
	if name == "" {
		return "", fmt.Errorf("report: empty image name")
	}
	if res == nil {
		return "", fmt.Errorf("report: nil result for %s", name)
	}

	path := w.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed creating directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed creating %s: %w", path, err)
	}

	if err := Render(f, res); err != nil {
		f.Close()
		return "", fmt.Errorf("failed writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed closing %s: %w", path, err)
	}
	return path, nil
}

// Render writes the three sections of res to out.
func Render(out io.Writer, res *analysis.Result) error {
	bw := bufio.NewWriter(out)
	sections := []struct {
		label string
		value any
	}{
		{"Labels API", res.Labels},
		{"Faces API", res.Faces},
		{"Text API", res.Text},
	}
	for _, s := range sections {
		raw, err := json.Marshal(s.value)
		if err != nil {
			return fmt.Errorf("render %s: %w", s.label, err)
		}
		if _, err := fmt.Fprintf(bw, "%s: %s\n", s.label, raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}
