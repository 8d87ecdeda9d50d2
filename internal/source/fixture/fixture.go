// Package fixture serves recorded upstream payloads from disk. It backs offline runs and demos.
//
// Layout:
//
//	<dir>/sleep/<YYYY-MM-DD>.json       sleep record for that date
//	<dir>/activities/<YYYY-MM-DD>.json  array of all-day events for that date
//
// A missing file is an empty day.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/AndreyKarmanov/aw-garmin/internal/normalize"
)

const dateLayout = "2006-01-02"

// Source reads fixtures from a directory.
type Source struct {
	fsys fs.FS
}

// New returns a Source rooted at dir.
func New(dir string) *Source {
	return &Source{fsys: os.DirFS(dir)}
}

// NewFS returns a Source backed by fsys.
func NewFS(fsys fs.FS) *Source {
	return &Source{fsys: fsys}
}

// Login always succeeds.
func (s *Source) Login(context.Context) error { return nil }

// FetchSleep reads sleep/<date>.json. A missing file is an empty day.
func (s *Source) FetchSleep(ctx context.Context, date time.Time) (normalize.SleepData, error) {
	var data normalize.SleepData
	if err := s.read(ctx, "sleep", date, &data); err != nil {
		return normalize.SleepData{}, err
	}
	return data, nil
}

// FetchActivities reads activities/<date>.json. A missing file is an empty day.
func (s *Source) FetchActivities(ctx context.Context, date time.Time) ([]normalize.AllDayEvent, error) {
	var events []normalize.AllDayEvent
	if err := s.read(ctx, "activities", date, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Source) read(ctx context.Context, kind string, date time.Time, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := path.Join(kind, date.Format(dateLayout)+".json")
	raw, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return nil
}
