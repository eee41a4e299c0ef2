package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
)

// OrphanService finds stored objects no note refers to and turns them into notes.
type OrphanService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       BlobStore
	notes       *NoteService
	prefix      string
	log         logging.Logger
}

func NewOrphanService(db *sql.DB, rm repomanager.RepositoryManager, store BlobStore, notes *NoteService, cfg *config.Config, log logging.Logger) *OrphanService {
	return &OrphanService{
		db:          db,
		repomanager: rm,
		store:       store,
		notes:       notes,
		prefix:      cfg.OrphanPrefix,
		log:         log.With("service", "orphans"),
	}
}

// ListOrphans returns the stored objects under the configured prefix that no
// note references, sorted by key. A blob store failure is reported in the
// report's Error field with an empty list; database failures are returned.
func (s *OrphanService) ListOrphans(ctx context.Context) (*models.OrphanReport, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		s.log.Warn(ctx, "failed to list blob store", "prefix", s.prefix, "error", err)
		return &models.OrphanReport{
			Orphans: []models.OrphanBlob{},
			Error:   "blob store listing failed: " + common.Detail(err),
		}, nil
	}

	keys, err := s.repomanager.Notes(s.db).ListStorageKeys(ctx)
	if err != nil {
		return nil, err
	}
	tracked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		tracked[k] = struct{}{}
	}

	orphans := []models.OrphanBlob{}
	for _, o := range objects {
		if strings.HasSuffix(o.Key, "/") {
			continue
		}
		if _, ok := tracked[o.Key]; ok {
			continue
		}
		orphan := models.OrphanBlob{StorageKey: o.Key, DisplayName: displayName(o.Key)}
		if !o.LastModified.IsZero() {
			t := o.LastModified
			orphan.CreatedAt = &t
		}
		size := o.Size
		orphan.Size = &size
		orphans = append(orphans, orphan)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].StorageKey < orphans[j].StorageKey })

	return &models.OrphanReport{Orphans: orphans}, nil
}

// Recover creates a note for an orphaned object. The file name defaults to
// the key's display name.
func (s *OrphanService) Recover(ctx context.Context, in models.RecoverInput, caller models.Principal) (*models.NoteView, error) {
	if err := requireSharer(caller, "recover"); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.StorageKey)
	if key == "" {
		return nil, common.NewError(common.ErrInvalidArgument, "storage key is required")
	}

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

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = displayName(key)
	}
	if err := requireAllowedFile(fileName); err != nil {
		return nil, err
	}
	if err := validateMeta(in.Meta); err != nil {
		return nil, err
	}
	if err := requireSize(obj.Size); err != nil {
		return nil, err
	}

	view, err := s.notes.register(ctx, key, fileName, obj.Size, in.Meta, caller)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "orphan recovered", "storage_key", key, "note_id", view.ID)
	return view, nil
}
