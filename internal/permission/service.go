package permission

import (
	"context"

	"rollbook/internal/auth"
)

// Checker decides whether a user may mark attendance for a class on a date.
type Checker struct {
	repo *Repository
}

// NewChecker creates a checker over the request repository.
func NewChecker(repo *Repository) *Checker {
	return &Checker{repo: repo}
}

// CanMark allows admins everywhere, teachers for their assigned class, and
// otherwise only with an approved request for exactly (grade, class, date).
func (c *Checker) CanMark(ctx context.Context, claims auth.Claims, grade int, class, date string) (bool, error) {
	if claims.Role == auth.RoleAdmin {
		return true, nil
	}
	if claims.Grade == grade && claims.Class == class {
		return true, nil
	}
	return c.repo.HasApproved(ctx, claims.UserID, grade, class, date)
}
