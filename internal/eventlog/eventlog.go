// Package eventlog implements the append-only JSONL run log: one entry per
// checkpoint, duration, device dispatch, or error, written with an
// exclusive file lock so multiple worker goroutines can append safely, and
// a set of read-side helpers (grouping, section splitting, error
// extraction) used by post-run reporting.
//
// Grounded directly on original_source/cellpainter/log.py's LogEntry and
// Log classes. File rotation uses lumberjack, the teacher's logging
// library (pkg/ uses log/slog with a lumberjack-backed writer); exclusive
// append access uses gofrs/flock, adopted from the wider example pack for
// exactly this "several goroutines appending to one file" concern.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pharmbio/cellpaint/internal/command"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Error is a fatal or recoverable run-time failure attached to a log entry.
type Error struct {
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
	Fatal     bool   `json:"fatal"`
}

// Metadata is the bookkeeping bag carried on every log entry: the command
// tree's own Metadata plus the two log-only fields (Section, Completed)
// that original_source's Metadata dataclass also carries.
type Metadata struct {
	command.Metadata
	Section   string `json:"section,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// Entry is one line of the event log.
type Entry struct {
	LogTime     string   `json:"log_time"`
	T           float64  `json:"t"`
	T0          *float64 `json:"t0,omitempty"`
	Metadata    Metadata `json:"metadata"`
	CommandKind string   `json:"cmd_kind,omitempty"`
	Name        string   `json:"name,omitempty"`
	Err         *Error   `json:"err,omitempty"`
	Msg         string   `json:"msg,omitempty"`
}

// Duration returns t - t0 rounded to milliseconds, or nil if T0 is unset.
func (e Entry) Duration() *float64 {
	if e.T0 == nil {
		return nil
	}
	d := math.Round((e.T-*e.T0)*1000) / 1000
	return &d
}

// IsEnd reports whether this entry closes a paired start (T0 is set).
func (e Entry) IsEnd() bool {
	return e.T0 != nil
}

// Countdown returns the number of whole seconds remaining until to, as of
// tNow. Grounded on log.py's countdown() helper.
func Countdown(tNow, to float64) int {
	return int(math.Ceil(to - math.Ceil(tNow)))
}

// Log is an ordered sequence of entries plus the read-side helpers original
// cellpainter's Log(list[LogEntry]) subclass exposes.
type Log []Entry

// Checkpoints returns the wall time recorded for each Checkpoint command.
func (l Log) Checkpoints() map[string]float64 {
	out := make(map[string]float64)
	for _, e := range l {
		if e.CommandKind == "checkpoint" {
			out[e.Name] = e.T
		}
	}
	return out
}

// Durations returns the measured duration for each Duration command that
// has actually closed (T0 set).
func (l Log) Durations() map[string]float64 {
	out := make(map[string]float64)
	for _, e := range l {
		if e.CommandKind != "duration" {
			continue
		}
		if d := e.Duration(); d != nil {
			out[e.Name] = *d
		}
	}
	return out
}

var trailingDigitsRe = regexp.MustCompile(`[ 0-9]+$`)

// GroupDurations groups Durations() by name with trailing " <digits>"
// stripped, rendering each value with PPSecs in order of the full duration
// name. Plate-prefixed groups are keyed as "plate %2s <rest>". The result is
// a map, so it carries no ordering between groups. Grounded on log.py's
// group_durations.
func (l Log) GroupDurations() map[string][]string {
	durations := l.Durations()
	type kv struct {
		key string
		val float64
	}
	groups := make(map[string][]kv)
	for name, v := range durations {
		key := trailingDigitsRe.ReplaceAllString(name, "")
		groups[key] = append(groups[key], kv{name, v})
	}

	type sortable struct {
		displayKey string
		sortKey    string
		values     []string
	}
	var rows []sortable
	for k, vs := range groups {
		sort.Slice(vs, func(i, j int) bool { return vs[i].key < vs[j].key })
		values := make([]string, len(vs))
		for i, v := range vs {
			values[i] = PPSecs(v.val)
		}
		displayKey := k
		sortKey := k
		if strings.HasPrefix(k, "plate") {
			fields := strings.Fields(k)
			if len(fields) >= 2 {
				rest := strings.Join(fields[2:], " ")
				sortKey = fmt.Sprintf(" plate %s %03s", rest, fields[1])
				displayKey = fmt.Sprintf("plate %2s %s", fields[1], rest)
			}
		}
		rows = append(rows, sortable{displayKey, sortKey, values})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].sortKey < rows[j].sortKey })

	out := make(map[string][]string, len(rows))
	for _, r := range rows {
		out[r.displayKey] = r.values
	}
	return out
}

// PPSecs renders a duration in seconds as a short human string, the style
// original_source utils.pp_secs is used for in reporting output.
func PPSecs(secs float64) string {
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs) / 60
	rem := secs - float64(mins*60)
	return fmt.Sprintf("%dm%04.1fs", mins, rem)
}

// Errors returns every (error, entry) pair in the log. When
// currentRuntimeOnly is true, only entries from the last run (the run
// starting after the final entry whose Metadata.Section == "run-start",
// used as the run-boundary marker) are considered — a direct analogue of
// log.py's "scan backwards for the last Running marker" behavior, adapted
// since this log has no Running snapshot concept.
func (l Log) Errors(currentRuntimeOnly bool) []Entry {
	start := 0
	if currentRuntimeOnly {
		for i := len(l) - 1; i >= 0; i-- {
			if l[i].Metadata.Section == "run-start" {
				start = i
				break
			}
		}
	}
	var out []Entry
	for _, e := range l[start:] {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// SectionStarts returns the wall time each named section began.
func (l Log) SectionStarts() map[string]float64 {
	out := make(map[string]float64)
	for _, e := range l {
		if e.Metadata.Section != "" {
			out[e.Metadata.Section] = e.T
		}
	}
	return out
}

// MinT and MaxT report the log's time span; Length is their difference.
func (l Log) MinT() float64 {
	if len(l) == 0 {
		return 0
	}
	m := l[0].T
	for _, e := range l[1:] {
		if e.T < m {
			m = e.T
		}
	}
	return m
}

func (l Log) MaxT() float64 {
	if len(l) == 0 {
		return 0
	}
	m := l[0].T
	for _, e := range l[1:] {
		if e.T > m {
			m = e.T
		}
	}
	return m
}

func (l Log) Length() float64 {
	return l.MaxT() - l.MinT()
}

// GroupBySection splits the log into one sub-log per section, ordered by
// time, the entries before the first named section collected under
// firstSectionName. Grounded on log.py's group_by_section.
func (l Log) GroupBySection(firstSectionName string) map[string]Log {
	sorted := append(Log{}, l...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })

	out := map[string]Log{firstSectionName: {}}
	current := firstSectionName
	for _, e := range sorted {
		if e.Metadata.Section != "" {
			current = e.Metadata.Section
			out[current] = Log{}
		}
		out[current] = append(out[current], e)
	}
	if len(out[firstSectionName]) == 0 {
		delete(out, firstSectionName)
	}
	return out
}

// NumPlates returns the highest numeric plate id mentioned in the log.
func (l Log) NumPlates() int {
	max := 0
	for _, e := range l {
		if e.Metadata.PlateID == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Metadata.PlateID, "%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max
}

// DropBoring removes Validate-mode biotek entries, the routine
// protocol-validation pings that clutter a human-facing report. Grounded
// on log.py's drop_boring.
func (l Log) DropBoring() Log {
	out := make(Log, 0, len(l))
	for _, e := range l {
		if (e.CommandKind == "wash" || e.CommandKind == "disp") && e.Name == "Validate" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Writer appends entries to a rotated JSONL file, guarded by an exclusive
// file lock so concurrent device-worker goroutines never interleave
// partial lines.
type Writer struct {
	path string
	lock *flock.Flock
	roll *lumberjack.Logger
}

// NewWriter opens (creating if needed) the JSONL log at path, with rotation
// handled by lumberjack the way the teacher's log sink does.
func NewWriter(path string) *Writer {
	return &Writer{
		path: path,
		lock: flock.New(path + ".lock"),
		roll: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     0,
			Compress:   false,
		},
	}
}

// Append writes one entry as a JSON line, holding the exclusive lock for
// the duration of the write.
func (w *Writer) Append(e Entry) error {
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("eventlog: lock %s: %w", w.path, err)
	}
	defer w.lock.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eventlog: marshal entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.roll.Write(line); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the underlying rotated file.
func (w *Writer) Close() error {
	return w.roll.Close()
}

// FromJSONL reads back a Log written by Writer.
func FromJSONL(path string) (Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	defer f.Close()

	var out Log
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("eventlog: parse %s: %w", path, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: scan %s: %w", path, err)
	}
	return out, nil
}
