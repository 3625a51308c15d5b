package sqldb

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
)

type principalsRepo struct{ c conn }

func (r *principalsRepo) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	var p domain.Principal
	err := r.c.queryRow(ctx,
		`SELECT id, role, organization_id, active, superuser FROM principals WHERE id = ?`, id,
	).Scan(&p.ID, &p.Role, &p.OrganizationID, &p.Active, &p.Superuser)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return p, nil
}

func (r *principalsRepo) UpsertPrincipal(ctx context.Context, p domain.Principal) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO principals (id, role, organization_id, active, superuser)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			role = excluded.role,
			organization_id = excluded.organization_id,
			active = excluded.active,
			superuser = excluded.superuser`,
		p.ID, string(p.Role), p.OrganizationID, p.Active, p.Superuser)
	return err
}

func (r *principalsRepo) LockPrincipal(ctx context.Context, id string) error {
	if r.c.d.ForUpdate == "" {
		return nil
	}

	var got string
	err := r.c.queryRow(ctx, `SELECT id FROM principals WHERE id = ? `+r.c.d.ForUpdate, id).Scan(&got)
	// An unknown principal has no row to lock; quota counting proceeds.
	if err = mapNotFound(err); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
