// Package output provides output formatting for the snapback CLI.
package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shevanio/snapback/internal/backup/restore"
	"github.com/Shevanio/snapback/internal/backup/retain"
	"github.com/Shevanio/snapback/internal/backup/verify"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/core/service"
)

// SnapshotList is the tabular view over stored snapshots.
type SnapshotList []*domain.Snapshot

func (l SnapshotList) Table() *Table {
	t := &Table{Headers: []string{"SNAPSHOT ID", "TYPE", "CREATED", "SOURCE", "SIZE", "STATUS"}}
	for _, s := range l {
		status := "live"
		if s.Deleted {
			status = "deleted"
		}
		t.AddRow(
			s.ID,
			string(s.Type),
			formatMillis(s.CreatedAt),
			s.SourcePath,
			humanSize(s.UncompressedSize),
			status,
		)
	}
	return t
}

// CreateView is the tabular view over a completed snapshot run.
type CreateView struct {
	Result *service.CreateResult
}

func (v CreateView) Table() *Table {
	t := &Table{Headers: []string{"SNAPSHOT ID", "TYPE", "PARENT", "CHANGED", "REMOVED", "SIZE", "DURATION"}}
	s := v.Result.Snapshot
	parent := s.ParentID
	if parent == "" {
		parent = "-"
	}
	t.AddRow(
		s.ID,
		string(s.Type),
		parent,
		fmt.Sprintf("%d", v.Result.Changed),
		fmt.Sprintf("%d", v.Result.Removed),
		humanSize(s.UncompressedSize),
		v.Result.Duration.Round(time.Millisecond).String(),
	)
	return t
}

func (v CreateView) MarshalJSON() ([]byte, error) { return json.Marshal(v.Result) }
func (v CreateView) MarshalYAML() (any, error) { return v.Result, nil }

// PruneView is the tabular view over a retention sweep.
type PruneView struct {
	Report *retain.Report
}

func (v PruneView) Table() *Table {
	t := &Table{Headers: []string{"SNAPSHOT ID", "ACTION"}}
	for _, id := range v.Report.Deleted {
		t.AddRow(id, "deleted")
	}
	for _, id := range v.Report.Retained {
		t.AddRow(id, "retained (live dependent)")
	}
	return t
}

func (v PruneView) MarshalJSON() ([]byte, error) { return json.Marshal(v.Report) }
func (v PruneView) MarshalYAML() (any, error) { return v.Report, nil }

// RestoreView is the tabular view over a completed restore.
type RestoreView struct {
	Report *restore.Report
}

func (v RestoreView) Table() *Table {
	t := &Table{Headers: []string{"SNAPSHOT ID", "TARGET", "LAYERS", "FILES", "REMOVED"}}
	t.AddRow(
		v.Report.SnapshotID,
		v.Report.DestRoot,
		fmt.Sprintf("%d", len(v.Report.Layers)),
		fmt.Sprintf("%d", v.Report.Files),
		fmt.Sprintf("%d", v.Report.Removed),
	)
	return t
}

func (v RestoreView) MarshalJSON() ([]byte, error) { return json.Marshal(v.Report) }
func (v RestoreView) MarshalYAML() (any, error) { return v.Report, nil }

// VerifyList is the tabular view over verification results.
type VerifyList []*verify.Result

func (l VerifyList) Table() *Table {
	t := &Table{Headers: []string{"SNAPSHOT ID", "ARCHIVE", "STATUS"}}
	for _, r := range l {
		t.AddRow(r.SnapshotID, r.Archive, string(r.Status))
	}
	return t
}

// formatMillis renders a unix-millisecond timestamp for humans.
func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

// humanSize renders a byte count with a binary unit suffix.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
