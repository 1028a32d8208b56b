package utilities

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RawLog appends raw traffic lines to one file per prefix per day:
// <dir>/<prefix>_YYYYMMDD.log. A zero Dir disables it.
type RawLog struct {
	Dir string

	mu  sync.Mutex
	now func() time.Time
}

func NewRawLog(dir string) *RawLog {
	return &RawLog{Dir: dir, now: time.Now}
}

// CreateLog saves one line under prefix.
func (l *RawLog) CreateLog(prefix, message string) error {
	if l == nil || l.Dir == "" {
		return nil
	}
	now := time.Now()
	if l.now != nil {
		now = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("raw log dir: %w", err)
	}
	filename := filepath.Join(l.Dir, prefix+"_"+now.Format("20060102")+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("raw log open: %w", err)
	}
	defer f.Close()

	logLine := now.Format("15:04:05") + " - " + message + "\n"
	if _, err := f.WriteString(logLine); err != nil {
		return fmt.Errorf("raw log write: %w", err)
	}
	return nil
}
