package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/auth"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken string
	User        *models.User
}

// UserService registers users and issues access tokens.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	validate                    *validator.Validate
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	log                         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		validate:                    newValidator(),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		log:                         log.With("service", "users"),
	}
}

// Register validates reg against the requirements of its role, stores the
// user with a bcrypt password hash and returns an access token.
func (s *UserService) Register(ctx context.Context, reg models.Registration) (*AuthResult, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)

	if err := s.validateStruct(reg); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(reg.Role)
	if err != nil {
		return nil, common.NewError(common.ErrInvalidArgument, "%v", err)
	}
	profile, err := models.BuildProfile(role, reg.ProfileColumns)
	if err != nil {
		return nil, common.NewError(common.ErrInvalidArgument, "%v", err)
	}
	if err := s.validateStruct(profile); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: hash,
		Profile:      profile,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID, "role", role)

	return s.issue(user)
}

// Login checks the password and returns an access token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, name, password string) (*AuthResult, error) {
	user, err := s.repomanager.Users(s.db).GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, common.NewError(common.ErrUnauthorized, "invalid credentials")
	}

	return s.issue(user)
}

// Me returns the user behind an authenticated principal.
func (s *UserService) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// Authenticate verifies an access token.
func (s *UserService) Authenticate(token string) (models.Principal, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

func (s *UserService) issue(u *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(models.Principal{UserID: u.ID, Name: u.Name, Role: u.Role()}, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{AccessToken: token, User: u}, nil
}

// validateStruct runs the validator and reports failures as ErrInvalidArgument
// naming each offending field.
func (s *UserService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.NewError(common.ErrInvalidArgument, "%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return common.NewError(common.ErrInvalidArgument, "%s", strings.Join(parts, "; "))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
