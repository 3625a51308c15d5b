package sqldb

import (
	"context"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

type ipRulesRepo struct{ c conn }

func (r *ipRulesRepo) CreateIPRule(ctx context.Context, rule domain.IPRule) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO api_token_ip_rules (id, token_id, ip, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rule.ID, rule.TokenID, rule.IP, string(rule.Kind), millis(rule.CreatedAt))
	return err
}

func (r *ipRulesRepo) ListIPRulesByToken(ctx context.Context, tokenID string) ([]domain.IPRule, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, token_id, ip, kind, created_at FROM api_token_ip_rules
		WHERE token_id = ? ORDER BY created_at, id`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IPRule
	for rows.Next() {
		var (
			rule    domain.IPRule
			created int64
		)
		if err := rows.Scan(&rule.ID, &rule.TokenID, &rule.IP, &rule.Kind, &created); err != nil {
			return nil, err
		}
		rule.CreatedAt = fromMillis(created)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *ipRulesRepo) DeleteIPRule(ctx context.Context, tokenID, ruleID string) (bool, error) {
	return r.c.execAffected(ctx,
		`DELETE FROM api_token_ip_rules WHERE token_id = ? AND id = ?`, tokenID, ruleID)
}
