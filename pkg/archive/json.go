package archive

import (
	"encoding/json"
	"io"
	"os"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/swarm"
)

// WriteJSON renders an export record as indented JSON.
func WriteJSON(w io.Writer, record *swarm.ExportRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to encode export record")
	}
	return nil
}

// ExportJSONFile writes an export record to path, replacing any existing
// file.
func ExportJSONFile(path string, record *swarm.ExportRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to create export file"),
			errors.Fields{"path": path},
		)
	}
	defer f.Close()
	return WriteJSON(f, record)
}
