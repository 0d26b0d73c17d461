package service

import (
	"errors"
	"fmt"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrNoUserContext is returned when a request reaches a service without authentication
	ErrNoUserContext = domain.Forbidden("no authenticated user")

	// ErrNoProfile is returned when the caller has no user profile in the org directory
	ErrNoProfile = domain.Forbidden("no user profile for the authenticated user")
)

// translateLookup maps a repository lookup error onto a domain error
func translateLookup(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound("%s %v not found", what, id)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
