package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/tour-tracker/internal/model"
	"github.com/sakif/tour-tracker/internal/repository"
)

// ProfileService reads and replaces the editable profile of a user.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// ProfileInput is a full replacement. A nil field clears the stored value.
type ProfileInput struct {
	Handle   *string
	Country  *string
	Pronouns *string
	Bio      *string
}

// Get returns apperror.ErrNotFound when userID no longer resolves.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	p := user.Profile()
	return &p, nil
}

// Update writes all four fields, so omitted fields become null.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) (*model.Profile, error) {
	p := model.Profile{
		Handle:   trimPtr(in.Handle),
		Country:  trimPtr(in.Country),
		Pronouns: trimPtr(in.Pronouns),
		Bio:      trimPtr(in.Bio),
	}

	var v validator
	v.maxLenPtr("handle", p.Handle, MaxHandleLength)
	v.maxLenPtr("country", p.Country, MaxCountryLength)
	v.maxLenPtr("pronouns", p.Pronouns, MaxPronounsLength)
	v.maxLenPtr("bio", p.Bio, MaxBioLength)
	if err := v.err(); err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return updated, nil
}
