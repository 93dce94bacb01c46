// Package service holds the business rules of the social graph, engagement,
// notification, feed and publishing flows.
package service

import (
	"context"
	"errors"

	"localpulse/internal/models"
)

// AdminCheck reports whether userID holds the admin role.
type AdminCheck func(ctx context.Context, userID uint) (bool, error)

func requireAdmin(ctx context.Context, isAdmin AdminCheck, userID uint) error {
	if isAdmin == nil {
		return models.NewForbiddenError("Admin access required")
	}
	ok, err := isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}

// requireOwnerOrAdmin allows the owner of a record, or an admin, to change it.
func requireOwnerOrAdmin(ctx context.Context, isAdmin AdminCheck, userID, ownerID uint, message string) error {
	if userID != 0 && userID == ownerID {
		return nil
	}
	if isAdmin != nil {
		ok, err := isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return models.NewForbiddenError(message)
}

var errNoObjectStore = errors.New("object storage is not configured")
