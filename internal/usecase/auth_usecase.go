package usecase

import (
	"context"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
)

type authUsecase struct {
	userRepo domain.UserRepository
}

func NewAuthUsecase(userRepo domain.UserRepository) domain.AuthUsecase {
	return &authUsecase{userRepo: userRepo}
}

// GetCurrentUser returns the profile document created at signup for the token subject.
func (u *authUsecase) GetCurrentUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	if id == "" {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	user, err := u.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "Profile not found")
	}
	return user, nil
}
