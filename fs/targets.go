// Package fs stores the watch-list in a JSON file on local disk.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/stockwatch"
	"github.com/gogs/chardet"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Ensure TargetService implements stockwatch.TargetService at compile time.
var _ stockwatch.TargetService = (*TargetService)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TargetService implements stockwatch.TargetService on a JSON file.
// Every write replaces the file atomically, so readers see either the old
// or the new list. Each read goes to disk, so edits made by hand are
// picked up on the next call.
type TargetService struct {
	path       string
	legacyPath string

	mu  sync.Mutex
	now func() time.Time
}

// Option configures a TargetService.
type Option func(*TargetService)

// WithLegacyFile imports a plain text watch-list with one URL per line when
// the JSON file does not exist yet. The first write migrates it to JSON;
// the legacy file itself is never modified.
func WithLegacyFile(path string) Option {
	return func(s *TargetService) {
		s.legacyPath = path
	}
}

// NewTargetService creates a TargetService backed by the file at path.
func NewTargetService(path string, opts ...Option) *TargetService {
	s := &TargetService{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTarget appends a new target to the list.
func (s *TargetService) CreateTarget(ctx context.Context, target *stockwatch.Target) error {
	target.Normalize()
	if err := target.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.load()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.URL == target.URL {
			return stockwatch.Errorf(stockwatch.ECONFLICT, "target %s is already watched", target.URL)
		}
	}

	target.ID = uuid.New().String()
	target.CreatedAt = s.now().UTC()

	c := *target
	return s.save(append(targets, &c))
}

// FindTargetByID retrieves a target by ID.
func (s *TargetService) FindTargetByID(ctx context.Context, id string) (*stockwatch.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
}

// FindTargets retrieves targets matching the filter in file order.
func (s *TargetService) FindTargets(ctx context.Context, filter stockwatch.TargetFilter) ([]*stockwatch.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.load()
	if err != nil {
		return nil, err
	}

	matched := make([]*stockwatch.Target, 0, len(targets))
	for _, t := range targets {
		if filter.ID != nil && t.ID != *filter.ID {
			continue
		}
		if filter.URL != nil && t.URL != strings.TrimSpace(*filter.URL) {
			continue
		}
		matched = append(matched, t)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return matched[:0], nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// DeleteTarget removes a target from the list.
func (s *TargetService) DeleteTarget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.load()
	if err != nil {
		return err
	}
	for i, t := range targets {
		if t.ID == id {
			return s.save(append(targets[:i:i], targets[i+1:]...))
		}
	}
	return stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
}

// load reads the current list. Must be called with mu held.
func (s *TargetService) load() ([]*stockwatch.Target, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.loadLegacy()
	}
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return []*stockwatch.Target{}, nil
	}

	var targets []*stockwatch.Target
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return targets, nil
}

func (s *TargetService) loadLegacy() ([]*stockwatch.Target, error) {
	if s.legacyPath == "" {
		return []*stockwatch.Target{}, nil
	}

	data, err := os.ReadFile(s.legacyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []*stockwatch.Target{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy targets: %w", err)
	}

	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.legacyPath, err)
	}
	targets, err := ParseURLList(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.legacyPath, err)
	}
	return targets, nil
}

// save replaces the file with targets. Must be called with mu held.
func (s *TargetService) save(targets []*stockwatch.Target) error {
	data, err := json.MarshalIndent(targets, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DecodeText returns data as UTF-8. Input that is not valid UTF-8 is tried
// as GBK first, which covers watch-lists saved by Windows editors on Chinese
// locales, then decoded with the detected charset.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	if out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data); err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return string(out), nil
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return "", stockwatch.Errorf(stockwatch.EINVALID, "unsupported file encoding %s", res.Charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseURLList parses a plain text watch-list with one URL per line. Blank
// lines, lines starting with '#', invalid URLs and duplicates are skipped.
// IDs are derived from the URL so they stay stable across reads. A list it
// cannot read to the end is rejected rather than returned truncated.
func ParseURLList(text string) ([]*stockwatch.Target, error) {
	targets := []*stockwatch.Target{}
	seen := make(map[string]bool)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		t := &stockwatch.Target{URL: line}
		t.Normalize()
		if t.Validate() != nil {
			continue
		}
		seen[line] = true
		t.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(t.URL)).String()
		targets = append(targets, t)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, stockwatch.Errorf(stockwatch.EINVALID, "watch-list has a line longer than %d bytes", bufio.MaxScanTokenSize)
		}
		return nil, err
	}
	return targets, nil
}
