package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/notes"
	"github.com/engineerhub/engineerhub/internal/server/repositories/reactions"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
	"github.com/engineerhub/engineerhub/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory stand-in for the notes and note_reactions tables.
type memDB struct {
	mu        sync.Mutex
	notes     map[int64]*models.Note
	reactions map[int64]*models.Reaction
	nextNote  int64
	nextReact int64
	epoch     time.Time

	createErr error
	listErr   error
	keysErr   error
}

func newMemDB() *memDB {
	return &memDB{
		notes:     map[int64]*models.Note{},
		reactions: map[int64]*models.Reaction{},
		epoch:     time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

// counts returns the number of reactions of each polarity on a note.
func (m *memDB) counts(noteID int64) (likes, dislikes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reactions {
		if r.NoteID != noteID {
			continue
		}
		if r.Polarity == models.Like {
			likes++
		} else {
			dislikes++
		}
	}
	return likes, dislikes
}

func (m *memDB) note(id int64) *models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		cp := *n
		return &cp
	}
	return nil
}

type memNotes struct{ *memDB }

var _ notes.Repository = memNotes{}

func (m memNotes) Create(_ context.Context, n *models.Note) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.notes {
		if existing.StorageKey == n.StorageKey {
			return nil, common.NewError(common.ErrConflict, "duplicate storage key")
		}
	}
	m.nextNote++
	n.ID = m.nextNote
	n.CreatedAt = m.epoch.Add(time.Duration(n.ID) * time.Minute)
	n.UpdatedAt = n.CreatedAt
	n.LikesCount, n.DislikesCount = 0, 0
	cp := *n
	m.notes[n.ID] = &cp
	return n, nil
}

func (m memNotes) GetByID(_ context.Context, id int64) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m memNotes) GetByIDForUpdate(ctx context.Context, id int64) (*models.Note, error) {
	return m.GetByID(ctx, id)
}

func (m memNotes) Update(_ context.Context, id int64, u models.NoteUpdate) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.CourseCode != nil {
		n.CourseCode = *u.CourseCode
	}
	if u.CourseName != nil {
		n.CourseName = u.CourseName
	}
	if u.Year != nil {
		n.Year = *u.Year
	}
	if u.InstructorName != nil {
		n.InstructorName = *u.InstructorName
	}
	if u.Description != nil {
		n.Description = u.Description
	}
	n.UpdatedAt = n.UpdatedAt.Add(time.Second)
	cp := *n
	return &cp, nil
}

func (m memNotes) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.notes, id)
	for rid, r := range m.reactions {
		if r.NoteID == id {
			delete(m.reactions, rid)
		}
	}
	return nil
}

func (m memNotes) List(_ context.Context, f models.NoteFilter) ([]*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	contains := func(s, sub string) bool { return strings.Contains(strings.ToLower(s), strings.ToLower(sub)) }
	out := []*models.Note{}
	for _, n := range m.notes {
		if f.CourseCode != "" && !contains(n.CourseCode, f.CourseCode) {
			continue
		}
		if f.Year != 0 && n.Year != f.Year {
			continue
		}
		if f.Search != "" {
			desc := ""
			if n.Description != nil {
				desc = *n.Description
			}
			if !contains(n.Title, f.Search) && !contains(desc, f.Search) && !contains(n.InstructorName, f.Search) {
				continue
			}
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m memNotes) ListStorageKeys(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	var keys []string
	for _, n := range m.notes {
		keys = append(keys, n.StorageKey)
	}
	return keys, nil
}

func (m memNotes) ExistsByStorageKey(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.StorageKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (m memNotes) AdjustCounters(_ context.Context, id int64, dl, dd int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return 0, 0, common.ErrNotFound
	}
	n.LikesCount = max(n.LikesCount+dl, 0)
	n.DislikesCount = max(n.DislikesCount+dd, 0)
	return n.LikesCount, n.DislikesCount, nil
}

type memReactions struct{ *memDB }

var _ reactions.Repository = memReactions{}

func (m memReactions) Find(_ context.Context, noteID, userID int64) (*models.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reactions {
		if r.NoteID == noteID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m memReactions) Create(_ context.Context, noteID, userID int64, p models.Polarity) (*models.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reactions {
		if r.NoteID == noteID && r.UserID == userID {
			return nil, common.ErrConflict
		}
	}
	m.nextReact++
	r := &models.Reaction{ID: m.nextReact, NoteID: noteID, UserID: userID, Polarity: p}
	m.reactions[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m memReactions) UpdatePolarity(_ context.Context, id int64, p models.Polarity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reactions[id]
	if !ok {
		return common.ErrNotFound
	}
	r.Polarity = p
	return nil
}

func (m memReactions) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reactions[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.reactions, id)
	return nil
}

func (m memReactions) ForUser(_ context.Context, userID int64) (map[int64]models.Polarity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]models.Polarity{}
	for _, r := range m.reactions {
		if r.UserID == userID {
			out[r.NoteID] = r.Polarity
		}
	}
	return out, nil
}

// fakeUsersRepo keeps users by name.
type fakeUsersRepo struct {
	users.Repository
	byName map[string]*models.User
	nextID int64
	err    error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byName {
		if existing.Name == u.Name || existing.Email == u.Email {
			return nil, common.NewError(common.ErrConflict, "user already exists")
		}
	}
	f.nextID++
	u.ID = f.nextID
	f.byName[u.Name] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByName(_ context.Context, name string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byName[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	mem   *memDB
	users *fakeUsersRepo
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository         { return m.users }
func (m *fakeRepoManager) Notes(dbx.DBTX) notes.Repository         { return memNotes{m.mem} }
func (m *fakeRepoManager) Reactions(dbx.DBTX) reactions.Repository { return memReactions{m.mem} }

type storedBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// fakeStore is an in-memory BlobStore.
type fakeStore struct {
	objects map[string]storedBlob

	putErr     error
	getErr     error
	deleteErr  error
	listErr    error
	statErr    error
	presignErr error

	deleted []string
}

var _ BlobStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string]storedBlob{}} }

func (s *fakeStore) Put(_ context.Context, key string, content []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = storedBlob{data: content, contentType: contentType, modified: time.Now()}
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return b.data, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]models.BlobObject, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.BlobObject
	for k, b := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, models.BlobObject{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	return out, nil
}

func (s *fakeStore) Stat(_ context.Context, key string) (*models.BlobObject, error) {
	if s.statErr != nil {
		return nil, s.statErr
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, common.NewError(common.ErrNotFound, "object %q", key)
	}
	return &models.BlobObject{Key: key, Size: int64(len(b.data)), ContentType: b.contentType, LastModified: b.modified}, nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://blob.test/get/" + key, nil
}

func (s *fakeStore) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://blob.test/put/" + key, nil
}

// fixture wires every service over the in-memory fakes. Transactions go
// through sqlmock, so each transactional call needs expectTx or expectRollback.
type fixture struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	mem   *memDB
	store *fakeStore
	users *fakeUsersRepo
	cfg   *config.Config

	notes     *NoteService
	reactions *ReactionService
	orphans   *OrphanService
	accounts  *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	f := &fixture{
		db:    db,
		mock:  mock,
		mem:   newMemDB(),
		store: newFakeStore(),
		users: &fakeUsersRepo{byName: map[string]*models.User{}},
		cfg:   cfg,
	}
	rm := &fakeRepoManager{mem: f.mem, users: f.users}
	log := logging.Nop()

	f.notes = NewNoteService(db, rm, f.store, cfg, log)
	f.reactions = NewReactionService(db, rm, log)
	f.orphans = NewOrphanService(db, rm, f.store, f.notes, cfg, log)
	f.accounts = NewUserService(db, rm, cfg, log)
	return f
}

func (f *fixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func (f *fixture) expectRollback() {
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
}

var (
	student  = models.Principal{UserID: 1, Name: "alice", Role: models.RoleStudent}
	graduate = models.Principal{UserID: 2, Name: "bob", Role: models.RoleGraduate}
	doctor   = models.Principal{UserID: 3, Name: "dr.x", Role: models.RoleDoctor}
)

func validMeta() models.NoteMeta {
	return models.NoteMeta{Title: "Calculus I", CourseCode: "MATH101", Year: 2024, InstructorName: "Dr. Smith"}
}

// seedNote uploads a small pdf as uploader and returns its id.
func (f *fixture) seedNote(t *testing.T, uploader models.Principal) int64 {
	t.Helper()
	v, err := f.notes.Upload(context.Background(), models.UploadInput{
		Meta:     validMeta(),
		FileName: "notes.pdf",
		Content:  []byte("%PDF-1.7"),
	}, uploader)
	require.NoError(t, err)
	return v.ID
}
