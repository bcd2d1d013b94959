package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RegionRun struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Status      string     `json:"status"` // pending, running, completed, failed
	Records     int        `json:"records"`
	Pages       int        `json:"pages"`
	Files       []string   `json:"files,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Run is a point-in-time copy of a RunLog.
type Run struct {
	ID         string      `json:"id"`
	Date       string      `json:"date"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Regions    []RegionRun `json:"regions"`
}

// RunLog tracks the status of every region in a run and mirrors it to a
// JSON manifest at <dir>/runs/{date}_{id}.json after each change. An empty
// dir keeps the log in memory only.
type RunLog struct {
	mu       sync.RWMutex
	run      Run
	regions  map[string]*RegionRun
	order    []string
	filename string
}

func NewRunLog(dir string, runDate time.Time, regions []models.Region) (*RunLog, error) {
	id := uuid.NewString()
	date := runDate.Format(DateLayout)

	rl := &RunLog{
		run: Run{
			ID:        id,
			Date:      date,
			StartedAt: time.Now(),
		},
		regions: make(map[string]*RegionRun, len(regions)),
	}
	if dir != "" {
		rl.filename = filepath.Join(dir, "runs", fmt.Sprintf("%s_%s.json", date, id))
	}

	now := time.Now()
	for _, r := range regions {
		if _, exists := rl.regions[r.Code]; exists {
			return nil, fmt.Errorf("duplicate region in run: %s", r.Code)
		}
		rl.regions[r.Code] = &RegionRun{
			Code:        r.Code,
			Description: r.Description,
			Status:      StatusPending,
			UpdatedAt:   now,
		}
		rl.order = append(rl.order, r.Code)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if err := rl.save(); err != nil {
		return nil, err
	}
	return rl, nil
}

func (rl *RunLog) ID() string {
	return rl.run.ID
}

// Filename is the manifest path, or "" for an in-memory log.
func (rl *RunLog) Filename() string {
	return rl.filename
}

func (rl *RunLog) Start(code string) error {
	return rl.update(code, func(r *RegionRun, now time.Time) {
		r.Status = StatusRunning
		r.StartedAt = &now
	})
}

func (rl *RunLog) Complete(code string, records, pages int, files []string) error {
	return rl.update(code, func(r *RegionRun, now time.Time) {
		r.Status = StatusCompleted
		r.Records = records
		r.Pages = pages
		r.Files = files
		r.Error = ""
		r.FinishedAt = &now
	})
}

func (rl *RunLog) Fail(code string, cause error) error {
	return rl.update(code, func(r *RegionRun, now time.Time) {
		r.Status = StatusFailed
		if cause != nil {
			r.Error = cause.Error()
		}
		r.FinishedAt = &now
	})
}

// Finish stamps the end of the run.
func (rl *RunLog) Finish() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.run.FinishedAt = &now
	return rl.save()
}

func (rl *RunLog) Get(code string) (RegionRun, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	r, exists := rl.regions[code]
	if !exists {
		return RegionRun{}, false
	}
	return copyRegion(r), true
}

// Snapshot returns the run with regions in table order.
func (rl *RunLog) Snapshot() Run {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.snapshot()
}

func (rl *RunLog) GetStats() map[string]int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	stats := map[string]int{
		StatusPending:   0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
	}
	for _, r := range rl.regions {
		stats[r.Status]++
	}
	stats["total"] = len(rl.regions)
	return stats
}

func (rl *RunLog) update(code string, apply func(r *RegionRun, now time.Time)) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	r, exists := rl.regions[code]
	if !exists {
		return fmt.Errorf("region not in run: %s", code)
	}

	now := time.Now()
	apply(r, now)
	r.UpdatedAt = now

	return rl.save()
}

func (rl *RunLog) snapshot() Run {
	run := rl.run
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		run.FinishedAt = &finished
	}
	run.Regions = make([]RegionRun, 0, len(rl.order))
	for _, code := range rl.order {
		run.Regions = append(run.Regions, copyRegion(rl.regions[code]))
	}
	return run
}

func (rl *RunLog) save() error {
	if rl.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(rl.snapshot(), "", "  ")
	if err != nil {
		return err
	}

	return writeAtomic(rl.filename, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// LoadRun reads a manifest written by a RunLog.
func LoadRun(filename string) (*Run, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", filename, err)
	}
	return &run, nil
}

func copyRegion(r *RegionRun) RegionRun {
	c := *r
	if r.Files != nil {
		c.Files = append([]string(nil), r.Files...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
