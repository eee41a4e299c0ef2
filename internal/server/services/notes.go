// Package services contains the server-side business logic: the note
// ledger, reaction counting, orphan reconciliation and user accounts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// NoteService owns notes and the files behind them.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       BlobStore
	log         logging.Logger

	keyPrefix   string
	downloadTTL time.Duration
	uploadTTL   time.Duration
}

func NewNoteService(db *sql.DB, rm repomanager.RepositoryManager, store BlobStore, cfg *config.Config, log logging.Logger) *NoteService {
	return &NoteService{
		db:          db,
		repomanager: rm,
		store:       store,
		log:         log.With("service", "notes"),
		keyPrefix:   cfg.OrphanPrefix,
		downloadTTL: cfg.DownloadURLValidityDuration,
		uploadTTL:   cfg.UploadURLValidityDuration,
	}
}

// nowFunc and newUUID are replaced in tests.
var (
	nowFunc = time.Now
	newUUID = uuid.NewString
)

// newStorageKey returns a fresh key of the form <prefix><uuid>_<unix-nanos>.<ext>.
func (s *NoteService) newStorageKey(ext string) string {
	return fmt.Sprintf("%s%s_%d.%s", s.keyPrefix, newUUID(), nowFunc().UnixNano(), ext)
}

func requireSharer(caller models.Principal, action string) error {
	if !caller.Role.CanShareNotes() {
		return common.NewError(common.ErrForbidden, "role %q may not %s notes", caller.Role, action)
	}
	return nil
}

func requireAllowedFile(name string) error {
	if !IsAllowedFile(name) {
		return common.NewError(common.ErrInvalidFileType, "%q: allowed extensions are pdf, doc, docx, png, jpg, jpeg, gif", name)
	}
	return nil
}

func requireSize(size int64) error {
	if size > common.MaxFileSize {
		return common.NewError(common.ErrPayloadTooLarge, "file is %d bytes, limit is %d", size, common.MaxFileSize)
	}
	return nil
}

func validateMeta(m models.NoteMeta) error {
	var missing []string
	if strings.TrimSpace(m.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(m.CourseCode) == "" {
		missing = append(missing, "course_code")
	}
	if m.Year <= 0 {
		missing = append(missing, "year")
	}
	if strings.TrimSpace(m.InstructorName) == "" {
		missing = append(missing, "doctor_name")
	}
	if len(missing) > 0 {
		return common.NewError(common.ErrInvalidArgument, "missing or invalid fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func validateUpdate(u models.NoteUpdate) error {
	blank := func(p *string) bool { return p != nil && strings.TrimSpace(*p) == "" }
	var bad []string
	if blank(u.Title) {
		bad = append(bad, "title")
	}
	if blank(u.CourseCode) {
		bad = append(bad, "course_code")
	}
	if u.Year != nil && *u.Year <= 0 {
		bad = append(bad, "year")
	}
	if blank(u.InstructorName) {
		bad = append(bad, "doctor_name")
	}
	if len(bad) > 0 {
		return common.NewError(common.ErrInvalidArgument, "invalid fields: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Upload creates a note. With Content set the bytes are stored under a new
// key first; with StorageKey set the object must already be in the store.
func (s *NoteService) Upload(ctx context.Context, in models.UploadInput, caller models.Principal) (*models.NoteView, error) {
	if err := requireSharer(caller, "upload"); err != nil {
		return nil, err
	}
	if err := validateMeta(in.Meta); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, common.NewError(common.ErrInvalidArgument, "file name is required")
	}

	hasContent, hasKey := in.Content != nil, in.StorageKey != ""
	switch {
	case hasContent && hasKey:
		return nil, common.NewError(common.ErrInvalidArgument, "supply either file content or a storage key, not both")
	case !hasContent && !hasKey:
		return nil, common.NewError(common.ErrInvalidArgument, "file content or storage key is required")
	case hasKey:
		return s.attach(ctx, in.StorageKey, in.FileName, in.Meta, caller)
	}

	size := int64(len(in.Content))
	if err := requireSize(size); err != nil {
		return nil, err
	}
	if err := requireAllowedFile(in.FileName); err != nil {
		return nil, err
	}

	key := s.newStorageKey(extension(in.FileName))
	if err := s.store.Put(ctx, key, in.Content, contentTypeFor(in.FileName, in.ContentType)); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	view, err := s.register(ctx, key, in.FileName, size, in.Meta, caller)
	if err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.log.Warn(ctx, "failed to clean up blob after note insert failure", "storage_key", key, "error", derr)
		}
		return nil, err
	}
	return view, nil
}

// attach registers an object that is already in the store.
// Size is checked before the extension, as on the direct upload path.
func (s *NoteService) attach(ctx context.Context, key, fileName string, meta models.NoteMeta, caller models.Principal) (*models.NoteView, error) {
	exists, err := s.repomanager.Notes(s.db).ExistsByStorageKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewError(common.ErrConflict, "storage key %q is already attached to a note", key)
	}
	obj, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := requireSize(obj.Size); err != nil {
		return nil, err
	}
	if err := requireAllowedFile(fileName); err != nil {
		return nil, err
	}
	return s.register(ctx, key, fileName, obj.Size, meta, caller)
}

// register persists the note row for a stored object.
func (s *NoteService) register(ctx context.Context, key, fileName string, size int64, meta models.NoteMeta, caller models.Principal) (*models.NoteView, error) {
	note, err := s.repomanager.Notes(s.db).Create(ctx, &models.Note{
		Title:          strings.TrimSpace(meta.Title),
		FileName:       fileName,
		StorageKey:     key,
		FileType:       Classify(fileName),
		FileSize:       size,
		CourseCode:     strings.TrimSpace(meta.CourseCode),
		CourseName:     meta.CourseName,
		Year:           meta.Year,
		InstructorName: strings.TrimSpace(meta.InstructorName),
		Description:    meta.Description,
		UploaderID:     caller.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "note created", "note_id", note.ID, "storage_key", key, "uploader_id", caller.UserID, "size", size)
	return s.view(ctx, note, nil), nil
}

// PresignUpload reserves a storage key and returns a URL the client can PUT
// the file to. The note is created by a later Upload with that key.
func (s *NoteService) PresignUpload(ctx context.Context, fileName, contentType string, caller models.Principal) (*models.PresignedUpload, error) {
	if err := requireSharer(caller, "upload"); err != nil {
		return nil, err
	}
	if err := requireAllowedFile(fileName); err != nil {
		return nil, err
	}
	key := s.newStorageKey(extension(fileName))
	url, err := s.store.PresignPut(ctx, key, contentTypeFor(fileName, contentType), s.uploadTTL)
	if err != nil {
		return nil, err
	}
	return &models.PresignedUpload{StorageKey: key, URL: url, ExpiresAt: nowFunc().Add(s.uploadTTL)}, nil
}

// Update applies the supplied fields of upd. Only the uploader may update.
func (s *NoteService) Update(ctx context.Context, noteID, callerID int64, upd models.NoteUpdate) (*models.NoteView, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}

	var note *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Notes(tx)
		current, err := repo.GetByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if current.UploaderID != callerID {
			return common.NewError(common.ErrForbidden, "only the uploader may update note %d", noteID)
		}
		if upd.IsEmpty() {
			note = current
			return nil
		}
		note, err = repo.Update(ctx, noteID, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, note, s.reactionOf(ctx, noteID, callerID)), nil
}

// Delete removes the note. The blob is deleted afterwards on a best-effort
// basis; a failure there is logged and does not fail the call.
func (s *NoteService) Delete(ctx context.Context, noteID, callerID int64) error {
	var key string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Notes(tx)
		note, err := repo.GetByIDForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if note.UploaderID != callerID {
			return common.NewError(common.ErrForbidden, "only the uploader may delete note %d", noteID)
		}
		key = note.StorageKey
		return repo.Delete(ctx, noteID)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "note deleted", "note_id", noteID, "storage_key", key)
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to delete blob of deleted note", "note_id", noteID, "storage_key", key, "error", err)
	}
	return nil
}

// List returns the notes matching filter, newest first, as seen by callerID.
func (s *NoteService) List(ctx context.Context, filter models.NoteFilter, callerID int64) ([]*models.NoteView, error) {
	notes, err := s.repomanager.Notes(s.db).List(ctx, filter)
	if err != nil {
		return nil, err
	}
	mine, err := s.repomanager.Reactions(s.db).ForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	views := make([]*models.NoteView, 0, len(notes))
	for _, n := range notes {
		var r *models.Polarity
		if p, ok := mine[n.ID]; ok {
			r = &p
		}
		views = append(views, s.view(ctx, n, r))
	}
	return views, nil
}

// Get returns one note as seen by callerID.
func (s *NoteService) Get(ctx context.Context, noteID, callerID int64) (*models.NoteView, error) {
	note, err := s.repomanager.Notes(s.db).GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, note, s.reactionOf(ctx, noteID, callerID)), nil
}

// Download returns the note together with its file bytes.
func (s *NoteService) Download(ctx context.Context, noteID int64) (*models.Note, []byte, error) {
	note, err := s.repomanager.Notes(s.db).GetByID(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, note.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return note, data, nil
}

// reactionOf returns the caller's polarity on the note, or nil. Lookup
// failures only cost the caller the indicator, so they are logged.
func (s *NoteService) reactionOf(ctx context.Context, noteID, callerID int64) *models.Polarity {
	r, err := s.repomanager.Reactions(s.db).Find(ctx, noteID, callerID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "failed to load caller reaction", "note_id", noteID, "user_id", callerID, "error", err)
		}
		return nil
	}
	return &r.Polarity
}

func (s *NoteService) view(ctx context.Context, n *models.Note, reaction *models.Polarity) *models.NoteView {
	url, err := s.store.PresignGet(ctx, n.StorageKey, s.downloadTTL)
	if err != nil {
		s.log.Warn(ctx, "failed to presign download url", "note_id", n.ID, "storage_key", n.StorageKey, "error", err)
		url = ""
	}
	return &models.NoteView{Note: *n, DownloadURL: url, UserReaction: reaction}
}
