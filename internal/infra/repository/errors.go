package repository

import (
	"errors"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

// gormのエラーをrepositoryのエラーにそろえる
// TranslateError: true で開いたDBが前提
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repo.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repo.ErrConflict
	default:
		return err
	}
}
