// Package history implements the decision journal.
package history

import (
	"strings"

	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/filesystem"
	"github.com/doeshing/riskgate/internal/ports"
)

// DefaultPath is the journal location when history.path is empty.
const DefaultPath = "~/.riskgate/history.db"

// Open returns the journal configured by settings, or nil when disabled.
// A path ending in .jsonl selects the plain file store.
func Open(settings domain.HistorySettings) ports.DecisionJournal {
	if !settings.Enabled {
		return nil
	}
	path := settings.Path
	if path == "" {
		path = DefaultPath
	}
	path = filesystem.ExpandPath(path)
	if strings.HasSuffix(path, ".jsonl") {
		return NewFileStore(path)
	}
	return OpenSQLite(path)
}
