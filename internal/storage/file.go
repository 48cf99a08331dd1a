package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

type FileStorage struct {
	connections    map[string]*internal.Connection    // id -> Connection
	userConnIndex  map[string]*internal.Connection    // connKey(user, provider) -> Connection
	entries        map[string]*internal.TimelineEntry // id -> TimelineEntry
	userEntryIndex map[string][]*internal.TimelineEntry
	sourceIndex    map[string]string // sourceKey(user, source, externalID) -> entry id
	mu             sync.RWMutex
	saveMu         sync.Mutex // serializes writers of the .tmp files
	connsDirty     atomic.Bool
	entriesDirty   atomic.Bool

	connectionsFile  string
	entriesFile      string
	saveConnsChan    chan struct{}
	saveEntriesChan  chan struct{}
	shutdownChan     chan struct{}
	saveConnsDelay   time.Duration
	saveEntriesDelay time.Duration
	logger           internal.Logger
}

func NewFileStorage(connectionsFile, entriesFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		connections:      make(map[string]*internal.Connection),
		userConnIndex:    make(map[string]*internal.Connection),
		entries:          make(map[string]*internal.TimelineEntry),
		userEntryIndex:   make(map[string][]*internal.TimelineEntry),
		sourceIndex:      make(map[string]string),
		connectionsFile:  connectionsFile,
		entriesFile:      entriesFile,
		saveConnsChan:    make(chan struct{}, 1),
		saveEntriesChan:  make(chan struct{}, 1),
		shutdownChan:     make(chan struct{}),
		saveConnsDelay:   500 * time.Millisecond,
		saveEntriesDelay: 500 * time.Millisecond,
		logger:           logger,
	}

	for _, f := range []string{connectionsFile, entriesFile} {
		if dir := filepath.Dir(f); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
	}
	if err := s.loadConnections(); err != nil {
		logger.Errorf("storage: failed to load connections: %v", err)
		return nil, err
	}
	if err := s.loadEntries(); err != nil {
		logger.Errorf("storage: failed to load timeline entries: %v", err)
		return nil, err
	}

	go s.saveWorker(s.saveConnsChan, s.saveConnsDelay, "connections", s.saveConnections)
	go s.saveWorker(s.saveEntriesChan, s.saveEntriesDelay, "timeline entries", s.saveEntries)

	return s, nil
}

func connKey(userID, provider string) string {
	return userID + "|" + strings.ToLower(provider)
}

func sourceKey(userID, source, externalID string) string {
	return userID + "|" + source + "|" + externalID
}

func decodeJSONFile(path string, v interface{}) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileStorage) loadConnections() error {
	var conns []*internal.Connection
	if ok, err := decodeJSONFile(s.connectionsFile, &conns); !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range conns {
		s.connections[c.ID] = c
		s.userConnIndex[connKey(c.UserID, c.Provider)] = c
	}
	return nil
}

func (s *FileStorage) loadEntries() error {
	var entries []*internal.TimelineEntry
	if ok, err := decodeJSONFile(s.entriesFile, &entries); !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
		s.userEntryIndex[e.UserID] = append(s.userEntryIndex[e.UserID], e)
		if e.HasSourceKey() {
			s.sourceIndex[sourceKey(e.UserID, e.SourceProvider, e.ExternalID)] = e.ID
		}
	}

	// Sort each user's entries descending by EventDate
	for userID := range s.userEntryIndex {
		list := s.userEntryIndex[userID]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].EventDate.After(list[j].EventDate)
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

// saveConnections and saveEntries encode copies taken under the read lock.
// Files are rewritten only after a mutation.
func (s *FileStorage) saveConnections() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if !s.connsDirty.Swap(false) {
		return nil
	}
	s.mu.RLock()
	conns := make([]internal.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, *c)
	}
	s.mu.RUnlock()
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })

	if err := atomicWriteFileJSON(s.connectionsFile, conns); err != nil {
		s.connsDirty.Store(true)
		return err
	}
	return nil
}

func (s *FileStorage) saveEntries() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if !s.entriesDirty.Swap(false) {
		return nil
	}
	s.mu.RLock()
	entries := make([]internal.TimelineEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	if err := atomicWriteFileJSON(s.entriesFile, entries); err != nil {
		s.entriesDirty.Store(true)
		return err
	}
	return nil
}

// saveWorker batches save operations to avoid frequent disk writes.
func (s *FileStorage) saveWorker(signal <-chan struct{}, delay time.Duration, what string, save func() error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-signal:
			timer.Reset(delay)
		case <-timer.C:
			if err := save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", what, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *FileStorage) markConnections() {
	s.connsDirty.Store(true)
	notify(s.saveConnsChan)
}

func (s *FileStorage) markEntries() {
	s.entriesDirty.Store(true)
	notify(s.saveEntriesChan)
}

func (s *FileStorage) Close() error {
	close(s.shutdownChan)

	// Save pending data synchronously on shutdown
	if err := s.saveConnections(); err != nil {
		return err
	}
	return s.saveEntries()
}

// --- ConnectionRepository ---

func (s *FileStorage) GetConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.userConnIndex[connKey(userID, provider)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *FileStorage) GetActiveConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	c, err := s.GetConnection(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *FileStorage) ListConnections(ctx context.Context, userID string) ([]internal.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := []internal.Connection{}
	for _, c := range s.connections {
		if c.UserID == userID {
			conns = append(conns, *c)
		}
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Provider < conns[j].Provider })
	return conns, nil
}

func (s *FileStorage) UpsertConnection(ctx context.Context, conn *internal.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := connKey(conn.UserID, conn.Provider)
	if existing, ok := s.userConnIndex[key]; ok {
		existing.AccessToken = conn.AccessToken
		if conn.RefreshToken != "" {
			existing.RefreshToken = conn.RefreshToken
		}
		existing.TokenExpiresAt = conn.TokenExpiresAt
		existing.IsActive = conn.IsActive
		if len(conn.Settings) > 0 {
			existing.Settings = conn.Settings
		}
		existing.UpdatedAt = now
		*conn = *existing
	} else {
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}
		conn.CreatedAt = now
		conn.UpdatedAt = now
		stored := *conn
		s.connections[stored.ID] = &stored
		s.userConnIndex[key] = &stored
	}
	s.markConnections()
	return nil
}

func (s *FileStorage) DeactivateConnection(ctx context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.userConnIndex[connKey(userID, provider)]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	s.markConnections()
	return nil
}

func (s *FileStorage) UpdateLastSync(ctx context.Context, connectionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return ErrNotFound
	}
	c.LastSyncAt = at
	c.UpdatedAt = at
	s.markConnections()
	return nil
}

// --- EntryRepository ---

func (s *FileStorage) Exists(ctx context.Context, userID, sourceProvider, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sourceIndex[sourceKey(userID, sourceProvider, externalID)]
	return ok, nil
}

func (s *FileStorage) ExistingExternalIDs(ctx context.Context, userID, sourceProvider string, externalIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[string]bool)
	for _, id := range externalIDs {
		if _, ok := s.sourceIndex[sourceKey(userID, sourceProvider, id)]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *FileStorage) InsertMany(ctx context.Context, entries []internal.TimelineEntry) ([]internal.TimelineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	committed := make([]internal.TimelineEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.HasSourceKey() {
			key := sourceKey(e.UserID, e.SourceProvider, e.ExternalID)
			if _, dup := s.sourceIndex[key]; dup {
				continue
			}
			s.sourceIndex[key] = e.ID
		}
		s.insertLocked(&e)
		committed = append(committed, e)
	}
	if len(committed) > 0 {
		s.markEntries()
	}
	return committed, nil
}

func (s *FileStorage) CreateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.HasSourceKey() {
		key := sourceKey(entry.UserID, entry.SourceProvider, entry.ExternalID)
		if _, dup := s.sourceIndex[key]; dup {
			return ErrConflict
		}
		s.sourceIndex[key] = entry.ID
	}
	e := *entry
	s.insertLocked(&e)
	s.markEntries()
	return nil
}

// insertLocked keeps the user index in descending EventDate order.
func (s *FileStorage) insertLocked(e *internal.TimelineEntry) {
	stored := *e
	s.entries[stored.ID] = &stored
	list := s.userEntryIndex[stored.UserID]
	pos := sort.Search(len(list), func(i int) bool {
		return list[i].EventDate.Before(stored.EventDate)
	})
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = &stored
	s.userEntryIndex[stored.UserID] = list
}

func (s *FileStorage) GetEntry(ctx context.Context, userID, id string) (*internal.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *FileStorage) ListEntries(ctx context.Context, userID string) ([]internal.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.userEntryIndex[userID]
	entries := make([]internal.TimelineEntry, len(list))
	for i, e := range list {
		entries[i] = *e
	}
	return entries, nil
}

func (s *FileStorage) UpdateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entry.ID]
	if !ok || e.UserID != entry.UserID {
		return ErrNotFound
	}
	updated := *e
	updated.Title = entry.Title
	updated.Description = entry.Description
	updated.EventDate = entry.EventDate
	updated.EntryType = entry.EntryType
	updated.Category = entry.Category
	updated.ImageURL = entry.ImageURL
	updated.ExternalURL = entry.ExternalURL
	updated.UpdatedAt = entry.UpdatedAt

	// the user index is ordered by EventDate, so reinsert
	s.removeEntryLocked(e)
	if updated.HasSourceKey() {
		s.sourceIndex[sourceKey(updated.UserID, updated.SourceProvider, updated.ExternalID)] = updated.ID
	}
	s.insertLocked(&updated)
	*entry = updated
	s.markEntries()
	return nil
}

func (s *FileStorage) DeleteEntry(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	s.removeEntryLocked(e)
	s.markEntries()
	return nil
}

func (s *FileStorage) removeEntryLocked(e *internal.TimelineEntry) {
	delete(s.entries, e.ID)
	if e.HasSourceKey() {
		delete(s.sourceIndex, sourceKey(e.UserID, e.SourceProvider, e.ExternalID))
	}
	list := s.userEntryIndex[e.UserID]
	for i, cur := range list {
		if cur.ID == e.ID {
			s.userEntryIndex[e.UserID] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (s *FileStorage) PurgeUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.connections {
		if c.UserID == userID {
			delete(s.connections, id)
			delete(s.userConnIndex, connKey(c.UserID, c.Provider))
		}
	}
	for _, e := range s.userEntryIndex[userID] {
		delete(s.entries, e.ID)
		if e.HasSourceKey() {
			delete(s.sourceIndex, sourceKey(e.UserID, e.SourceProvider, e.ExternalID))
		}
	}
	delete(s.userEntryIndex, userID)
	s.markConnections()
	s.markEntries()
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
