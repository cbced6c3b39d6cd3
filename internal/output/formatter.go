package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/ai"
	"github.com/matthewjhunter/dossier/internal/dbsync"
	"github.com/matthewjhunter/dossier/internal/storage"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	case FormatHuman, "":
		return FormatHuman, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputApplications lists applications
func (f *Formatter) OutputApplications(apps []storage.ApplicationSummary) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(apps)
	case FormatText:
		for _, a := range apps {
			fmt.Fprintf(f.out, "id=%d\tstatus=%s\tcompany=%s\tposition=%s\tdeadline=%s\n",
				a.ID, a.Status, a.Company, a.Position, formatDate(a.Deadline))
		}
		return nil
	case FormatHuman:
		if len(apps) == 0 {
			fmt.Fprintln(f.out, "No applications")
			return nil
		}
		for _, a := range apps {
			fmt.Fprintf(f.out, "#%-4d %-18s %s, %s\n", a.ID, a.Status, a.Position, a.Company)
			if a.Deadline != nil {
				fmt.Fprintf(f.out, "      deadline %s\n", a.Deadline)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputStats outputs database statistics
func (f *Formatter) OutputStats(stats *dossier.DatabaseStats) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(stats)
	case FormatText:
		fmt.Fprintf(f.out, "path=%s\tfile_size=%d\twal_size=%d\tpages=%d\tpage_size=%d\tindexed_documents=%d\n",
			stats.Path, stats.FileSize, stats.WALSize, stats.PageCount, stats.PageSize, stats.IndexedDocuments)
		for _, name := range sortedKeys(stats.Tables) {
			fmt.Fprintf(f.out, "table=%s\trows=%d\n", name, stats.Tables[name])
		}
		fmt.Fprintf(f.out, "sync_enabled=%t\tsync_backend=%s\tlast_sync=%s\n",
			stats.Sync.Enabled, stats.Sync.Backend, formatTime(stats.Sync.LastSuccess))
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Database: %s\n", stats.Path)
		fmt.Fprintf(f.out, "  Size:  %s (WAL %s), %d pages of %d bytes\n",
			humanBytes(stats.FileSize), humanBytes(stats.WALSize), stats.PageCount, stats.PageSize)
		if stats.SearchIndexPresent {
			fmt.Fprintf(f.out, "  Search index: %d documents\n", stats.IndexedDocuments)
		} else {
			fmt.Fprintln(f.out, "  Search index: missing (run `dossier index rebuild`)")
		}
		fmt.Fprintln(f.out, "  Rows:")
		for _, name := range sortedKeys(stats.Tables) {
			fmt.Fprintf(f.out, "    %-26s %d\n", name, stats.Tables[name])
		}
		f.outputSyncState(stats.Sync)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

func (f *Formatter) outputSyncState(st dbsync.State) {
	if !st.Enabled {
		fmt.Fprintln(f.out, "  Sync: disabled")
		return
	}
	last := "never"
	if st.LastSuccess != nil {
		last = st.LastSuccess.Local().Format(time.DateTime)
	}
	fmt.Fprintf(f.out, "  Sync: %s:%s, last upload %s\n", st.Backend, st.Key, last)
	if st.LastError != "" {
		fmt.Fprintf(f.out, "  Last sync error: %s\n", st.LastError)
	}
}

// OutputSyncResult outputs the outcome of a database upload or download
func (f *Formatter) OutputSyncResult(action string, res dbsync.Result) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]interface{}{
			"action": action,
			"status": res.Status,
			"error":  res.Error,
		})
	case FormatText:
		fmt.Fprintf(f.out, "action=%s\tstatus=%s", action, res.Status)
		if res.Error != "" {
			fmt.Fprintf(f.out, "\terror=%s", res.Error)
		}
		fmt.Fprintln(f.out)
		return nil
	case FormatHuman:
		switch res.Status {
		case dbsync.StatusDisabled:
			fmt.Fprintf(f.out, "Sync is disabled; nothing to %s\n", action)
		case dbsync.StatusFailed:
			fmt.Fprintf(f.out, "❌ %s failed: %s\n", action, res.Error)
		default:
			fmt.Fprintf(f.out, "✅ %s complete\n", action)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputReindex outputs the result of a search index rebuild
func (f *Formatter) OutputReindex(res *dossier.ReindexResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(res)
	case FormatText:
		fmt.Fprintf(f.out, "index_created=%t\tscanned=%d\tindexed=%d\tfallback=%d\tfailed=%d\n",
			res.IndexCreated, res.Scanned, res.Indexed, res.Fallback, res.Failed)
		return nil
	case FormatHuman:
		if res.IndexCreated {
			fmt.Fprintln(f.out, "🔧 Recreated the search index table")
		}
		if res.Scanned == 0 {
			fmt.Fprintln(f.out, "Every document is indexed")
			return nil
		}
		fmt.Fprintf(f.out, "📄 Scanned %d unindexed documents: %d indexed (%d by filename only), %d failed\n",
			res.Scanned, res.Indexed, res.Fallback, res.Failed)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputBackup reports where a backup was written
func (f *Formatter) OutputBackup(res *dossier.BackupResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(res)
	case FormatText:
		fmt.Fprintf(f.out, "path=%s\tsize=%d\tremote_key=%s\n", res.Path, res.Size, res.RemoteKey)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "💾 Backup written to %s (%s)\n", res.Path, humanBytes(res.Size))
		if res.RemoteKey != "" {
			fmt.Fprintf(f.out, "   uploaded as %s\n", res.RemoteKey)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputReminders lists reminders
func (f *Formatter) OutputReminders(reminders []storage.Reminder, today storage.Date) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(reminders)
	case FormatText:
		for _, r := range reminders {
			app := ""
			if r.ApplicationID != nil {
				app = fmt.Sprintf("%d", *r.ApplicationID)
			}
			fmt.Fprintf(f.out, "id=%d\tdue=%s\ttype=%s\tstatus=%s\tapplication=%s\ttitle=%s\n",
				r.ID, r.DueDate, r.Type, r.Status, app, r.Title)
		}
		return nil
	case FormatHuman:
		if len(reminders) == 0 {
			fmt.Fprintln(f.out, "No reminders due")
			return nil
		}
		for _, r := range reminders {
			marker := "  "
			if r.DueDate.Time.Before(today.Time) {
				marker = "⚠️"
			}
			fmt.Fprintf(f.out, "%s %s  %s", marker, r.DueDate, r.Title)
			if r.Recurrence != nil {
				fmt.Fprintf(f.out, " (every %d %s)", r.Recurrence.Interval, r.Recurrence.Pattern)
			}
			fmt.Fprintln(f.out)
			if r.Description != "" {
				fmt.Fprintf(f.out, "      %s\n", truncate(r.Description, 120))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputPrompts lists the prompt slots and where each resolves from
func (f *Formatter) OutputPrompts(prompts []ai.PromptInfo) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(prompts)
	case FormatText:
		for _, p := range prompts {
			fmt.Fprintf(f.out, "name=%s\tsource=%s\tupdated=%s\tbytes=%d\n",
				p.Name, p.Source, formatTime(p.UpdatedAt), len(p.Content))
		}
		return nil
	case FormatHuman:
		for _, p := range prompts {
			fmt.Fprintf(f.out, "%-15s %s", p.Name, p.Source)
			if p.UpdatedAt != nil {
				fmt.Fprintf(f.out, " (updated %s)", p.UpdatedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintln(f.out)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputPrompt prints a single prompt template
func (f *Formatter) OutputPrompt(p *ai.PromptInfo) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.out).Encode(p)
	}
	fmt.Fprint(f.out, p.Content)
	if !strings.HasSuffix(p.Content, "\n") {
		fmt.Fprintln(f.out)
	}
	return nil
}

// OutputPromptSync outputs a prompt file sync
func (f *Formatter) OutputPromptSync(results []ai.SyncResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(results)
	case FormatText:
		for _, r := range results {
			fmt.Fprintf(f.out, "name=%s\tstatus=%s\tsource=%s\tarchived=%d\n",
				r.Name, r.Status, r.Source, r.Archived)
		}
		return nil
	case FormatHuman:
		for _, r := range results {
			if r.Status == "unchanged" {
				fmt.Fprintf(f.out, "  %-15s unchanged\n", r.Name)
				continue
			}
			fmt.Fprintf(f.out, "✏️  %-15s updated from %s (previous kept as version %d)\n", r.Name, r.Source, r.Archived)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSearchHits outputs document search results
func (f *Formatter) OutputSearchHits(hits []storage.SearchHit) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(hits)
	case FormatText:
		for _, h := range hits {
			fmt.Fprintf(f.out, "document=%d\tapplication=%d\trank=%.3f\tfilename=%s\n",
				h.DocumentID, h.ApplicationID, h.Rank, h.Filename)
		}
		return nil
	case FormatHuman:
		if len(hits) == 0 {
			fmt.Fprintln(f.out, "No matching documents")
			return nil
		}
		for _, h := range hits {
			fmt.Fprintf(f.out, "• %s (%s, %s)\n", h.Filename, h.Position, h.Company)
			snippet := strings.NewReplacer("<mark>", "", "</mark>", "").Replace(h.Snippet)
			fmt.Fprintf(f.out, "    %s\n", truncate(strings.Join(strings.Fields(snippet), " "), 160))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// formatTime formats a time pointer for output
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatDate(d *storage.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// truncate truncates a string to maxLen runes
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func humanBytes(n int64) string {
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

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
