package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/repository"
	"github.com/iliyamo/huertohogar/internal/utils"
)

// AccountService registers users, checks credentials and edits profiles.
type AccountService struct {
	users      *repository.UserRepo
	assets     *AssetStore
	bcryptCost int
	log        logrus.FieldLogger
}

func NewAccountService(users *repository.UserRepo, assets *AssetStore, bcryptCost int, log logrus.FieldLogger) *AccountService {
	return &AccountService{users: users, assets: assets, bcryptCost: bcryptCost, log: log.WithField("component", "account")}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register validates the form, stores the user with a bcrypt hash and
// returns the new id.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (uint64, error) {
	var v validator
	if blank(in.Name) {
		v.add(FieldName, "El nombre no puede estar vacío")
	}
	if !ValidEmail(in.Email) {
		v.add(FieldEmail, "Correo inválido")
	}
	if !validPassword(in.Password) {
		v.add(FieldPassword, "Debe tener al menos 8 caracteres")
	}
	if in.ConfirmPassword != in.Password {
		v.add(FieldConfirmPassword, "Las contraseñas no coinciden")
	}
	if err := v.err(); err != nil {
		return 0, err
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return 0, &ValidationError{Fields: map[string]string{FieldPassword: "La contraseña es demasiado larga"}}
	}
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.users.Create(ctx, in.Name, in.Email, hash)
	if errors.Is(err, repository.ErrEmailExists) {
		return 0, ErrDuplicateEmail
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", id).Info("user registered")
	return id, nil
}

// Login returns the id of the user whose stored hash matches password.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (uint64, error) {
	var v validator
	if !ValidEmail(email) {
		v.add(FieldEmail, "Correo inválido")
	}
	if blank(password) {
		v.add(FieldPassword, "La contraseña no puede estar vacía")
	}
	if err := v.err(); err != nil {
		return 0, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return 0, ErrInvalidCredentials
	}
	return u.ID, nil
}

// Profile returns the stored user.
func (s *AccountService) Profile(ctx context.Context, userID uint64) (model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ProfileInput is the profile form.  Image is nil when the picture is not
// being changed.
type ProfileInput struct {
	Name    string
	Address string
	Image   *ImageUpload
}

// UpdateProfile validates the form, imports a new picture if one was given
// and saves the profile.  The previous picture is deleted only after the
// row has been updated; the new copy is deleted if the update fails.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (model.User, error) {
	var v validator
	if blank(in.Name) {
		v.add(FieldName, "El nombre no puede estar vacío")
	}
	if blank(in.Address) {
		v.add(FieldAddress, "La dirección no puede estar vacía")
	}
	if err := v.err(); err != nil {
		return model.User{}, err
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	imageRef := current.ImageRef
	if in.Image != nil {
		if imageRef, err = s.assets.Import(*in.Image); err != nil {
			return model.User{}, err
		}
	}

	name, address := strings.TrimSpace(in.Name), strings.TrimSpace(in.Address)
	if err := s.users.UpdateProfile(ctx, userID, name, address, imageRef); err != nil {
		if imageRef != current.ImageRef {
			_ = s.assets.Remove(imageRef)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	if imageRef != current.ImageRef {
		if err := s.assets.Remove(current.ImageRef); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("old profile image not removed")
		}
	}

	current.Name, current.Address, current.ImageRef = name, address, imageRef
	return current, nil
}
