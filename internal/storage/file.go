package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/clock"
)

const (
	usersFileName    = "users.json"
	profilesFileName = "profiles.json"
	sessionsFileName = "sessions.json"
	forestFileName   = "forest.json"
)

// FileStorage keeps everything in memory and persists each collection as a
// JSON file. Writes are batched by background workers.
type FileStorage struct {
	users        map[string]*internal.User          // token -> User
	profiles     map[string]*internal.Profile       // userID -> Profile
	sessions     map[string]*internal.Session       // id -> Session
	profileIndex map[string][]string                // profileID -> session ids
	forest       map[string][]*internal.ForestEntry // profileID -> entries (sorted descending)
	mu           sync.RWMutex
	dir          string
	savers       map[string]*fileSaver
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	saveDelay    time.Duration
	clock        clock.Clock
	logger       internal.Logger
}

type fileSaver struct {
	path   string
	signal chan struct{}
	save   func() error
}

func NewFileStorage(dir string, logger internal.Logger, opts ...Option) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &FileStorage{
		users:        make(map[string]*internal.User),
		profiles:     make(map[string]*internal.Profile),
		sessions:     make(map[string]*internal.Session),
		profileIndex: make(map[string][]string),
		forest:       make(map[string][]*internal.ForestEntry),
		dir:          dir,
		shutdownChan: make(chan struct{}),
		saveDelay:    500 * time.Millisecond,
		clock:        buildOptions(opts).clock,
		logger:       logger,
	}

	if err := s.load(); err != nil {
		logger.Errorf("storage: failed to load %s: %v", dir, err)
		return nil, err
	}

	s.savers = map[string]*fileSaver{
		usersFileName:    s.newSaver(usersFileName, s.saveUsers),
		profilesFileName: s.newSaver(profilesFileName, s.saveProfiles),
		sessionsFileName: s.newSaver(sessionsFileName, s.saveSessions),
		forestFileName:   s.newSaver(forestFileName, s.saveForest),
	}
	for _, fs := range s.savers {
		s.wg.Add(1)
		go s.saveWorker(fs)
	}

	return s, nil
}

func (s *FileStorage) newSaver(name string, save func() error) *fileSaver {
	return &fileSaver{
		path:   filepath.Join(s.dir, name),
		signal: make(chan struct{}, 1),
		save:   save,
	}
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.dir, name)
}

func loadJSON(path string, into interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *FileStorage) load() error {
	var users []*internal.User
	if err := loadJSON(s.path(usersFileName), &users); err != nil {
		return err
	}
	var profiles []*internal.Profile
	if err := loadJSON(s.path(profilesFileName), &profiles); err != nil {
		return err
	}
	var sessions []*internal.Session
	if err := loadJSON(s.path(sessionsFileName), &sessions); err != nil {
		return err
	}
	var forest []*internal.ForestEntry
	if err := loadJSON(s.path(forestFileName), &forest); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.Token] = u
	}
	for _, p := range profiles {
		s.profiles[p.UserID] = p
	}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
		s.profileIndex[sess.ProfileID] = append(s.profileIndex[sess.ProfileID], sess.ID)
	}
	for i := len(forest) - 1; i >= 0; i-- {
		e := forest[i]
		s.forest[e.ProfileID] = append(s.forest[e.ProfileID], e)
	}
	// Sort each profile's forest descending by PlantedAt
	for profileID := range s.forest {
		entries := s.forest[profileID]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PlantedAt.After(entries[j].PlantedAt)
		})
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveUsers() error {
	s.mu.RLock()
	users := make([]*internal.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return atomicWriteFileJSON(s.path(usersFileName), users)
}

func (s *FileStorage) saveProfiles() error {
	s.mu.RLock()
	profiles := make([]*internal.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	s.mu.RUnlock()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.Before(profiles[j].CreatedAt) })
	return atomicWriteFileJSON(s.path(profilesFileName), profiles)
}

func (s *FileStorage) saveSessions() error {
	s.mu.RLock()
	sessions := make([]*internal.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.Before(sessions[j].StartedAt) })
	return atomicWriteFileJSON(s.path(sessionsFileName), sessions)
}

func (s *FileStorage) saveForest() error {
	s.mu.RLock()
	entries := make([]*internal.ForestEntry, 0)
	for _, list := range s.forest {
		for i := len(list) - 1; i >= 0; i-- {
			entries = append(entries, list[i])
		}
	}
	s.mu.RUnlock()
	// oldest first; equal timestamps keep planting order
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].PlantedAt.Before(entries[j].PlantedAt) })
	return atomicWriteFileJSON(s.path(forestFileName), entries)
}

// saveWorker batches save operations to avoid frequent disk writes
func (s *FileStorage) saveWorker(fs *fileSaver) {
	defer s.wg.Done()
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-fs.signal:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := fs.save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", fs.path, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

// markDirty signals the save worker for name (non-blocking).
func (s *FileStorage) markDirty(name string) {
	fs, ok := s.savers[name]
	if !ok {
		return
	}
	select {
	case fs.signal <- struct{}{}:
	default:
	}
}

func (s *FileStorage) Close() error {
	close(s.shutdownChan)
	s.wg.Wait()

	// Save pending data synchronously on shutdown
	for _, name := range []string{usersFileName, profilesFileName, sessionsFileName, forestFileName} {
		if err := s.savers[name].save(); err != nil {
			return err
		}
	}
	return nil
}

// --- UserRepository ---
func (s *FileStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateUser registers user or, when the id already exists, replaces its
// token and name. The previous token stops authenticating.
func (s *FileStorage) CreateUser(ctx context.Context, user *internal.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, existing := range s.users {
		if existing.ID == user.ID {
			delete(s.users, token)
		}
	}
	cp := *user
	s.users[user.Token] = &cp
	s.markDirty(usersFileName)
	return nil
}

// --- PomodoroRepository ---

// WithProfile holds the store-wide write lock for the whole unit of work and
// applies the staged changes only when fn succeeds.
func (s *FileStorage) WithProfile(ctx context.Context, userID string, fn func(tx PomodoroTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fileTx{s: s, sessions: make(map[string]*internal.Session)}
	if p, ok := s.profiles[userID]; ok {
		cp := *p
		tx.profile = &cp
	} else {
		now := s.clock.Now()
		tx.profile = &internal.Profile{
			ID:        uuid.NewString(),
			UserID:    userID,
			Level:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		tx.profileDirty = true
	}

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type fileTx struct {
	s            *FileStorage
	profile      *internal.Profile
	profileDirty bool
	sessions     map[string]*internal.Session
	planted      []*internal.ForestEntry
}

func (tx *fileTx) Profile() *internal.Profile {
	cp := *tx.profile
	return &cp
}

func (tx *fileTx) SaveProfile(ctx context.Context, p *internal.Profile) error {
	cp := *p
	tx.profile = &cp
	tx.profileDirty = true
	return nil
}

func (tx *fileTx) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	if staged, ok := tx.sessions[id]; ok {
		cp := *staged
		return &cp, nil
	}
	sess, ok := tx.s.sessions[id]
	if !ok || sess.ProfileID != tx.profile.ID {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (tx *fileTx) RunningSessions(ctx context.Context) ([]*internal.Session, error) {
	var running []*internal.Session
	seen := make(map[string]bool)
	for _, staged := range tx.sessions {
		seen[staged.ID] = true
		if staged.Running() {
			cp := *staged
			running = append(running, &cp)
		}
	}
	for _, id := range tx.s.profileIndex[tx.profile.ID] {
		if seen[id] {
			continue
		}
		if sess := tx.s.sessions[id]; sess.Running() {
			cp := *sess
			running = append(running, &cp)
		}
	}
	sort.Slice(running, func(i, j int) bool { return running[i].StartedAt.After(running[j].StartedAt) })
	return running, nil
}

func (tx *fileTx) SaveSession(ctx context.Context, sess *internal.Session) error {
	cp := *sess
	cp.ProfileID = tx.profile.ID
	tx.sessions[sess.ID] = &cp
	return nil
}

func (tx *fileTx) PlantTree(ctx context.Context, e *internal.ForestEntry) error {
	cp := *e
	cp.ProfileID = tx.profile.ID
	tx.planted = append(tx.planted, &cp)
	return nil
}

func (tx *fileTx) RecentForest(ctx context.Context, limit int) ([]internal.ForestEntry, error) {
	all := make([]*internal.ForestEntry, 0, len(tx.planted)+len(tx.s.forest[tx.profile.ID]))
	for i := len(tx.planted) - 1; i >= 0; i-- {
		all = append(all, tx.planted[i])
	}
	all = append(all, tx.s.forest[tx.profile.ID]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].PlantedAt.After(all[j].PlantedAt) })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	entries := make([]internal.ForestEntry, len(all))
	for i, e := range all {
		entries[i] = *e
	}
	return entries, nil
}

// commit runs with the store write lock held.
func (tx *fileTx) commit() {
	s := tx.s
	if tx.profileDirty {
		s.profiles[tx.profile.UserID] = tx.profile
		s.markDirty(profilesFileName)
	}
	for id, sess := range tx.sessions {
		if _, exists := s.sessions[id]; !exists {
			s.profileIndex[sess.ProfileID] = append(s.profileIndex[sess.ProfileID], id)
		}
		s.sessions[id] = sess
	}
	if len(tx.sessions) > 0 {
		s.markDirty(sessionsFileName)
	}
	for _, e := range tx.planted {
		// insert maintaining descending order
		entries := s.forest[e.ProfileID]
		i := sort.Search(len(entries), func(i int) bool { return !entries[i].PlantedAt.After(e.PlantedAt) })
		entries = append(entries, nil)
		copy(entries[i+1:], entries[i:])
		entries[i] = e
		s.forest[e.ProfileID] = entries
	}
	if len(tx.planted) > 0 {
		s.markDirty(forestFileName)
	}
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
