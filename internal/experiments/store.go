package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// assignmentsKey is the fixed slot the serialized assignment map lives
// under in whatever PersistenceStore backs the service. There is no
// versioning; a format change means clearing the slot.
const assignmentsKey = "vibechecc_experiment_assignments"

// ErrNotPersisted is returned by PersistenceStore.Load when nothing has
// been saved yet.
var ErrNotPersisted = errors.New("no persisted assignments")

// PersistenceStore mirrors the in-memory assignment map so assignments
// survive restarts. Implementations are expected to be best-effort; the
// assignment store logs failures and carries on, because losing the mirror
// only degrades to re-bucketing, which lands users in the same variant
// anyway (the hash inputs are fixed per pair).
type PersistenceStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// assignmentStore owns the (experimentID, userID) -> Assignment mapping.
// Writes go to memory and then to the persistence mirror on the same call;
// concurrent writers from different processes are last-writer-wins on the
// mirror, which is acceptable for bucketing (worst case a user briefly
// sees inconsistent variants across devices).
type assignmentStore struct {
	mu      sync.RWMutex
	byKey   map[string]*Assignment
	persist PersistenceStore
	log     *zap.Logger
}

func pairKey(experimentID, userID string) string {
	return experimentID + ":" + userID
}

// newAssignmentStore eagerly loads the persisted blob. A missing or
// corrupt blob is a cold start, not an error.
func newAssignmentStore(persist PersistenceStore, log *zap.Logger) *assignmentStore {
	s := &assignmentStore{
		byKey:   make(map[string]*Assignment),
		persist: persist,
		log:     log,
	}
	if persist == nil {
		return s
	}

	data, err := persist.Load(context.Background())
	if err != nil {
		if !errors.Is(err, ErrNotPersisted) {
			log.Warn("failed to load persisted assignments, starting cold", zap.Error(err))
		}
		return s
	}
	var loaded map[string]*Assignment
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn("persisted assignments are unreadable, starting cold", zap.Error(err))
		return s
	}
	s.byKey = loaded
	log.Info("loaded persisted experiment assignments", zap.Int("count", len(loaded)))
	return s
}

// get returns the stored assignment for the pair, or nil.
func (s *assignmentStore) get(experimentID, userID string) *Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKey[pairKey(experimentID, userID)]
}

// put stores an assignment for the pair unless one already exists, and
// mirrors the map to the persistence store. The existing assignment wins:
// assignments stay stable for the life of the experiment so results are
// not contaminated by re-randomization.
func (s *assignmentStore) put(ctx context.Context, a *Assignment) *Assignment {
	s.mu.Lock()
	key := pairKey(a.ExperimentID, a.UserID)
	if existing, ok := s.byKey[key]; ok {
		s.mu.Unlock()
		return existing
	}
	s.byKey[key] = a
	snapshot, err := json.Marshal(s.byKey)
	s.mu.Unlock()

	if s.persist == nil {
		return a
	}
	if err != nil {
		s.log.Warn("failed to serialize assignments", zap.Error(err))
		return a
	}
	if err := s.persist.Save(ctx, snapshot); err != nil {
		s.log.Warn("failed to persist assignments", zap.Error(err))
	}
	return a
}

// forUser returns every stored assignment belonging to userID.
func (s *assignmentStore) forUser(userID string) []*Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Assignment
	for _, a := range s.byKey {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// clear drops every assignment from memory and the mirror.
func (s *assignmentStore) clear(ctx context.Context) {
	s.mu.Lock()
	s.byKey = make(map[string]*Assignment)
	s.mu.Unlock()

	if s.persist == nil {
		return
	}
	if err := s.persist.Clear(ctx); err != nil {
		s.log.Warn("failed to clear persisted assignments", zap.Error(err))
	}
}

// MemoryPersistence is an in-process PersistenceStore, mainly for tests.
type MemoryPersistence struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryPersistence() *MemoryPersistence { return &MemoryPersistence{} }

func (m *MemoryPersistence) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotPersisted
	}
	return m.data, nil
}

func (m *MemoryPersistence) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryPersistence) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// FilePersistence keeps the assignment blob in a single JSON file, the
// server-side analogue of the web client's localStorage slot.
type FilePersistence struct {
	Path string
}

func NewFilePersistence(path string) *FilePersistence {
	return &FilePersistence{Path: path}
}

func (f *FilePersistence) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotPersisted
	}
	return data, err
}

func (f *FilePersistence) Save(ctx context.Context, data []byte) error {
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f *FilePersistence) Clear(ctx context.Context) error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// assignmentTimestamp exists so tests can pin time.
var assignmentTimestamp = func() time.Time { return time.Now().UTC() }
