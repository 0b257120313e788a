package reconcile

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExportLog appends a human-readable line for every operator-applied link to
// a history file, so a later audit can replay what was decided and when.
// Writing is best effort: a missing or unwritable path is warned about once
// per line, never fatal. A nil *ExportLog is a valid no-op sink.
type ExportLog struct {
	Path   string
	Logger *logrus.Logger

	mu sync.Mutex
}

func NewExportLog(path string, logger *logrus.Logger) *ExportLog {
	return &ExportLog{Path: path, Logger: logger}
}

func (e *ExportLog) LinkedCustomer(kind RecordKind, rec *Unresolved, customerID int64, alias *Marking) {
	if e == nil {
		return
	}
	e.append(fmt.Sprintf("%s record id=%d (%s) linked to customer %d (%s, %s)",
		kind, rec.ID, rec.Marking, customerID, alias.CustomerName, alias.CustomerAddress))
}

func (e *ExportLog) LinkedShipment(kind RecordKind, rec *Unresolved, shipmentID int64) {
	if e == nil {
		return
	}
	e.append(fmt.Sprintf("%s record id=%d (awb=%s marking=%s) linked to shipment %d",
		kind, rec.ID, rec.AWB, rec.Marking, shipmentID))
}

func (e *ExportLog) NewAlias(m Marking) {
	if e == nil {
		return
	}
	e.append(fmt.Sprintf("new marking alias %q for customer %s (%s)",
		m.Name, formatLink(m.CustomerID), m.CustomerName))
}

func (e *ExportLog) append(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.OpenFile(e.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.Logger.WithError(err).WithField("path", e.Path).
			Warn("history log not writable, link recorded in database only")
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s  %s\n", time.Now().Format(time.RFC3339), line); err != nil {
		e.Logger.WithError(err).Warn("history log write failed")
	}
}
