package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	dayLayout = "2006-01-02"
	// PruneInterval is how often the resident runtime prunes old files.
	PruneInterval = 6 * time.Hour
)

// Entry is one completed answer, stored as a single JSON line.
type Entry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	AppName          string    `json:"appName,omitempty"`
	BundleIdentifier string    `json:"bundleIdentifier,omitempty"`
	SelectionText    string    `json:"selectionText"`
	Language         string    `json:"language"`
	OutputText       string    `json:"outputText"`
	Model            string    `json:"model"`
	Source           string    `json:"source"`
}

// Store appends entries to one YYYY-MM-DD.jsonl file per local day.
type Store struct {
	Dir string

	mu  sync.Mutex
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Store) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	path := s.DayFile(e.Timestamp)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// DayFile is the file holding entries for t's local day.
func (s *Store) DayFile(t time.Time) string {
	return filepath.Join(s.Dir, t.In(time.Local).Format(dayLayout)+".jsonl")
}

// Files lists the history files, oldest day first.
func (s *Store) Files() ([]string, error) {
	ents, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.EqualFold(filepath.Ext(e.Name()), ".jsonl") {
			continue
		}
		out = append(out, filepath.Join(s.Dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFiles decodes every entry in paths. Lines that fail to decode are skipped.
func ReadFiles(paths ...string) ([]Entry, error) {
	var out []Entry
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for sc.Scan() {
			var e Entry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				continue
			}
			out = append(out, e)
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Prune deletes files for days older than keepDays (at least one day).
// Files whose names are not a day fall back to their modification time.
func (s *Store) Prune(keepDays int) (int, error) {
	if keepDays < 1 {
		keepDays = 1
	}
	cutoff := s.clock().AddDate(0, 0, -keepDays)

	files, err := s.Files()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		var stamp time.Time
		if day, err := time.ParseInLocation(dayLayout, name, time.Local); err == nil {
			stamp = day
		} else if info, err := os.Stat(path); err == nil {
			stamp = info.ModTime()
		} else {
			continue
		}
		if !stamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("history: failed to remove %s: %v", path, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Printf("history: pruned %d file(s) older than %d day(s)", deleted, keepDays)
	}
	return deleted, nil
}

// SummaryInput renders entries oldest first as a compact log, stopping once
// maxChars is exceeded.
func SummaryInput(entries []Entry, maxChars int) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] (%s) selection: %s\n", e.Timestamp.Format(time.RFC3339), e.Language, e.SelectionText)
		fmt.Fprintf(&b, "  answer: %s\n\n", e.OutputText)
		if maxChars > 0 && b.Len() > maxChars {
			break
		}
	}
	return b.String()
}

// SummaryMaxChars bounds the history log sent for a summary.
const SummaryMaxChars = 70000

// SummaryLabel names the day range covered by paths: "2026-01-02" for one
// file, "2026-01-01_to_2026-01-03" for several.
func SummaryLabel(paths []string) string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(p), ".jsonl"))
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	if len(names) == 1 {
		return names[0]
	}
	return names[0] + "_to_" + names[len(names)-1]
}

// WriteSummary stores markdown as Summaries/<label>.md under the history
// directory and returns its path.
func (s *Store) WriteSummary(markdown, label string) (string, error) {
	dir := filepath.Join(s.Dir, "Summaries")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create summary dir: %w", err)
	}
	path := filepath.Join(dir, label+".md")
	if err := os.WriteFile(path, []byte(markdown), 0600); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}
