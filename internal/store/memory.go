package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/hccscore/internal/model"
)

// MemoryStore is an in-process Store. It follows the same append-once and
// status rules as PGStore.
type MemoryStore struct {
	mu          sync.Mutex
	nextGroup   int64
	runs        map[string]*model.RunRecord
	scores      map[string][]model.RiskScoreRecord
	audits      map[string]Audit
	comparisons map[string][]model.ComparisonRecord
	drivers     map[string][]model.DecompositionDriver
	inputs      map[string][]model.MemberRow
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]*model.RunRecord),
		scores:      make(map[string][]model.RiskScoreRecord),
		audits:      make(map[string]Audit),
		comparisons: make(map[string][]model.ComparisonRecord),
		drivers:     make(map[string][]model.DecompositionDriver),
		inputs:      make(map[string][]model.MemberRow),
	}
}

func (s *MemoryStore) RegisterRun(_ context.Context, run *model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if _, dup := s.runs[run.RunID]; dup {
		return fmt.Errorf("register run: run %s already exists", run.RunID)
	}
	if run.GroupID == 0 {
		s.nextGroup++
		run.GroupID = s.nextGroup
	}
	if run.TriggerSource == "" {
		run.TriggerSource = "cli"
	}
	now := time.Now().UTC()
	run.RunTimestamp, run.CreatedAt, run.UpdatedAt = now, now, now
	run.Status = model.RunStarted

	cp := *run
	s.runs[run.RunID] = &cp
	return nil
}

func (s *MemoryStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	if status != model.RunSuccess && status != model.RunFailed {
		return fmt.Errorf("update run %s: invalid target status %q", runID, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if r.Terminal() {
		return fmt.Errorf("%w: run %s already finished", ErrRunImmutable, runID)
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cp := *r
	return &cp, nil
}

// writable reports whether runID may still receive rows; has says whether
// rows already exist. Callers hold mu.
func (s *MemoryStore) writable(runID string, has bool) error {
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if r.Status != model.RunStarted {
		return fmt.Errorf("%w: run %s is %s", ErrRunImmutable, runID, r.Status)
	}
	if has {
		return fmt.Errorf("%w: run %s already has rows", ErrRunImmutable, runID)
	}
	return nil
}

func (s *MemoryStore) WriteScores(ctx context.Context, runID string, recs <-chan *model.RiskScoreRecord, audit Audit) (int64, error) {
	s.mu.Lock()
	_, has := s.scores[runID]
	err := s.writable(runID, has)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	// Stage locally so a failure part way leaves nothing behind.
	var staged []model.RiskScoreRecord
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case r, ok := <-recs:
			if !ok {
				if err := ctx.Err(); err != nil {
					return 0, err
				}
				return s.commitScores(runID, staged, audit)
			}
			if seen[r.MemberID] {
				return 0, fmt.Errorf("copy scores: duplicate member %s in run %s", r.MemberID, runID)
			}
			seen[r.MemberID] = true
			staged = append(staged, *r)
		}
	}
}

func (s *MemoryStore) commitScores(runID string, staged []model.RiskScoreRecord, audit Audit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, has := s.scores[runID]
	if err := s.writable(runID, has); err != nil {
		return 0, err
	}
	if staged == nil {
		staged = []model.RiskScoreRecord{}
	}
	s.scores[runID] = staged
	s.audits[runID] = audit
	return int64(len(staged)), nil
}

func (s *MemoryStore) LoadScores(_ context.Context, runID string) ([]model.RiskScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if r.Status != model.RunSuccess {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunIncomplete, runID, r.Status)
	}
	out := append([]model.RiskScoreRecord(nil), s.scores[runID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

// Audit returns the findings and skips written with a run's scores.
func (s *MemoryStore) Audit(runID string) Audit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audits[runID]
}

func (s *MemoryStore) WriteComparison(_ context.Context, batchID string, recs []model.ComparisonRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, has := s.comparisons[batchID]
	if err := s.writable(batchID, has); err != nil {
		return 0, err
	}
	out := make([]model.ComparisonRecord, len(recs))
	for i := range recs {
		recs[i].BatchID = batchID
		out[i] = recs[i]
	}
	s.comparisons[batchID] = out
	return int64(len(out)), nil
}

func (s *MemoryStore) LoadComparison(_ context.Context, batchID string) ([]model.ComparisonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[batchID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, batchID)
	}
	return append([]model.ComparisonRecord(nil), s.comparisons[batchID]...), nil
}

func (s *MemoryStore) WriteDrivers(_ context.Context, batchID string, drivers []model.DecompositionDriver) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, has := s.drivers[batchID]
	if err := s.writable(batchID, has); err != nil {
		return 0, err
	}
	out := make([]model.DecompositionDriver, len(drivers))
	for i := range drivers {
		drivers[i].BatchID = batchID
		out[i] = drivers[i]
	}
	s.drivers[batchID] = out
	return int64(len(out)), nil
}

func (s *MemoryStore) LoadDrivers(_ context.Context, batchID string) ([]model.DecompositionDriver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[batchID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, batchID)
	}
	return append([]model.DecompositionDriver(nil), s.drivers[batchID]...), nil
}

func (s *MemoryStore) WriteMemberInputs(_ context.Context, inputSet string, rows []model.MemberRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(rows))
	for i := range rows {
		if seen[rows[i].MemberID] {
			return 0, fmt.Errorf("copy member inputs: duplicate member %s", rows[i].MemberID)
		}
		seen[rows[i].MemberID] = true
	}
	s.inputs[inputSet] = append([]model.MemberRow(nil), rows...)
	return int64(len(rows)), nil
}

func (s *MemoryStore) LoadMemberInputs(_ context.Context, inputSet string) ([]model.MemberRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]model.MemberRow(nil), s.inputs[inputSet]...)
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
