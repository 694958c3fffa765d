package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PictureDir is the sub-directory of the upload root holding profile pictures.
const PictureDir = "profile_pictures"

// UploadsPrefix is the URL path the upload root is served under.
const UploadsPrefix = "/uploads"

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	repo      repository.UserRepository
	uploadDir string
	log       *zap.Logger
}

// NewProfileService constructs a new ProfileService storing pictures below uploadDir.
func NewProfileService(repo repository.UserRepository, uploadDir string, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{repo: repo, uploadDir: uploadDir, log: log}
}

// UploadDir returns the upload root.
func (s *ProfileService) UploadDir() string { return s.uploadDir }

func (s *ProfileService) user(ctx context.Context, id int64) (repository.User, error) {
	u, err := s.repo.UserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return u, ErrUserNotFound
	}
	return u, err
}

// Me returns the profile of userID.
func (s *ProfileService) Me(ctx context.Context, userID int64) (models.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	return u.Public(), nil
}

// Update changes the non-empty fields of upd.
func (s *ProfileService) Update(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.User, error) {
	if upd.Email != "" {
		if err := models.Validator().Var(upd.Email, "email"); err != nil {
			return models.User{}, &InputError{Field: "Email", Msg: "invalid email address"}
		}
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if upd.DisplayName != "" {
		u.DisplayName = upd.DisplayName
	}
	if upd.Email != "" {
		u.Email = upd.Email
	}
	if upd.Bio != "" {
		u.Bio = upd.Bio
	}
	if upd.ContactNumber != "" {
		u.ContactNumber = upd.ContactNumber
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return models.User{}, err
	}
	return u.Public(), nil
}

// SetPicture stores a new profile picture and returns its public path,
// "/uploads/profile_pictures/<uuid>_<name>".
func (s *ProfileService) SetPicture(ctx context.Context, userID int64, filename string, r io.Reader) (string, error) {
	if !AllowedImage(filename) {
		return "", ErrInvalidFileType
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.uploadDir, PictureDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create picture dir: %w", err)
	}
	name := uuid.NewString() + "_" + filepath.Base(filename)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create picture: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write picture: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close picture: %w", err)
	}

	ref := path.Join(UploadsPrefix, PictureDir, name)
	u.ProfilePicture = &ref
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	s.log.Info("profile picture stored", zap.Int64("user_id", userID), zap.String("path", ref))
	return ref, nil
}
