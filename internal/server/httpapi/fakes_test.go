package httpapi

import (
	"context"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/services"
)

var tokens = map[string]models.Principal{
	"student-token": {UserID: 1, Name: "alice", Role: models.RoleStudent},
	"doctor-token":  {UserID: 3, Name: "dr.x", Role: models.RoleDoctor},
}

type fakeUsers struct {
	register func(models.Registration) (*services.AuthResult, error)
	login    func(name, password string) (*services.AuthResult, error)
	me       func(id int64) (*models.User, error)
}

func (f *fakeUsers) Authenticate(token string) (models.Principal, error) {
	p, ok := tokens[token]
	if !ok {
		return models.Principal{}, common.ErrInvalidToken
	}
	return p, nil
}

func (f *fakeUsers) Register(_ context.Context, r models.Registration) (*services.AuthResult, error) {
	return f.register(r)
}

func (f *fakeUsers) Login(_ context.Context, name, password string) (*services.AuthResult, error) {
	return f.login(name, password)
}

func (f *fakeUsers) Me(_ context.Context, id int64) (*models.User, error) {
	return f.me(id)
}

type fakeNotes struct {
	NoteAPI

	upload   func(models.UploadInput, models.Principal) (*models.NoteView, error)
	presign  func(name, ct string) (*models.PresignedUpload, error)
	update   func(id, caller int64, u models.NoteUpdate) (*models.NoteView, error)
	del      func(id, caller int64) error
	list     func(f models.NoteFilter, caller int64) ([]*models.NoteView, error)
	get      func(id, caller int64) (*models.NoteView, error)
	download func(id int64) (*models.Note, []byte, error)
}

func (f *fakeNotes) Upload(_ context.Context, in models.UploadInput, p models.Principal) (*models.NoteView, error) {
	return f.upload(in, p)
}

func (f *fakeNotes) PresignUpload(_ context.Context, name, ct string, _ models.Principal) (*models.PresignedUpload, error) {
	return f.presign(name, ct)
}

func (f *fakeNotes) Update(_ context.Context, id, caller int64, u models.NoteUpdate) (*models.NoteView, error) {
	return f.update(id, caller, u)
}

func (f *fakeNotes) Delete(_ context.Context, id, caller int64) error { return f.del(id, caller) }

func (f *fakeNotes) List(_ context.Context, filter models.NoteFilter, caller int64) ([]*models.NoteView, error) {
	return f.list(filter, caller)
}

func (f *fakeNotes) Get(_ context.Context, id, caller int64) (*models.NoteView, error) {
	return f.get(id, caller)
}

func (f *fakeNotes) Download(_ context.Context, id int64) (*models.Note, []byte, error) {
	return f.download(id)
}

type fakeReactions struct {
	got models.Polarity
	err error
}

func (f *fakeReactions) React(_ context.Context, noteID, userID int64, p models.Polarity) (*models.ReactionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = p
	return &models.ReactionResult{Action: models.ReactionAdded, Likes: 1}, nil
}

type fakeOrphans struct {
	report     *models.OrphanReport
	recoverErr error
	recovered  models.RecoverInput
}

func (f *fakeOrphans) ListOrphans(context.Context) (*models.OrphanReport, error) {
	return f.report, nil
}

func (f *fakeOrphans) Recover(_ context.Context, in models.RecoverInput, p models.Principal) (*models.NoteView, error) {
	if f.recoverErr != nil {
		return nil, f.recoverErr
	}
	f.recovered = in
	return &models.NoteView{Note: models.Note{ID: 9, StorageKey: in.StorageKey, UploaderID: p.UserID}}, nil
}
