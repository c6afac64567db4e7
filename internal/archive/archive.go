// Package archive persists raw provider responses as a write-once audit
// log. Files are never read back by the pipeline.
package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Writer archives provider responses under a base directory, one file per
// call: <base>/<provider>/<safe-name>_<UTC timestamp>.json.
type Writer struct {
	base string
	now  func() time.Time
}

// NewWriter creates an archive writer rooted at base. An empty base
// disables archiving (Save becomes a no-op).
func NewWriter(base string) *Writer {
	return &Writer{base: base, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Save writes payload as indented JSON keyed by provider and profile name.
// Archive failures are reported but callers treat them as non-fatal: the
// audit log must never fail a generation that already succeeded.
func (w *Writer) Save(provider, profileName string, payload any) error {
	if w.base == "" {
		return nil
	}

	dir := filepath.Join(w.base, provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "archive: create dir %s", dir)
	}

	name := strings.TrimSpace(profileName)
	if name == "" {
		name = "unknown"
	}
	name = strings.ReplaceAll(name, "/", "-")

	ts := w.now().UTC().Format("20060102T150405.000000000")
	ts = strings.ReplaceAll(ts, ".", "")
	path := filepath.Join(dir, name+"_"+ts+".json")

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return eris.Wrap(err, "archive: marshal payload")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "archive: write %s", path)
	}

	zap.L().Debug("archived provider response",
		zap.String("provider", provider),
		zap.String("path", path),
	)
	return nil
}
