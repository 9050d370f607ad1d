package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const directiveColumns = "id, agent, action, params_json, reason, status, created_at, updated_at"

// DirectiveFilter narrows QueryDirectives.
type DirectiveFilter struct {
	Statuses []DirectiveStatus
	Limit    int
}

// InsertDirective stores an analyzer directive as PENDING.
func (s *Store) InsertDirective(ctx context.Context, directive *Directive) (*Directive, error) {
	items, err := s.InsertDirectives(ctx, []*Directive{directive})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// InsertDirectives stores a batch of directives as PENDING in one
// transaction. Every directive is validated first; on any failure no row is
// written.
func (s *Store) InsertDirectives(ctx context.Context, directives []*Directive) ([]*Directive, error) {
	if len(directives) == 0 {
		return nil, nil
	}
	now := s.timestamp()
	builders := make([]sq.InsertBuilder, 0, len(directives))
	for i, directive := range directives {
		if directive == nil {
			return nil, fmt.Errorf("directive %d is nil", i)
		}
		if strings.TrimSpace(directive.Agent) == "" || strings.TrimSpace(directive.Action) == "" {
			return nil, errors.New("directive agent and action are required")
		}
		params, err := encodeJSON(directive.Params, "{}")
		if err != nil {
			return nil, err
		}
		builders = append(builders, sq.Insert("directives").
			Columns("agent", "action", "params_json", "reason", "status", "created_at", "updated_at").
			Values(strings.TrimSpace(directive.Agent), strings.TrimSpace(directive.Action), params,
				nullableString(directive.Reason), DirectivePending, now, now))
	}

	var ids []int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		for _, builder := range builders {
			id, err := txInsert(ctx, tx, builder)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert directives: %w", err)
	}
	items, err := s.QueryDirectives(ctx, DirectiveFilter{}, ids...)
	if err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, fmt.Errorf("directives %v: %w", ids, ErrNotFound)
	}
	return items, nil
}

// QueryDirectives lists directives oldest first.
func (s *Store) QueryDirectives(ctx context.Context, filter DirectiveFilter, ids ...int64) ([]*Directive, error) {
	builder := sq.Select(directiveColumns).From("directives").OrderBy("created_at", "id")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": toStrings(filter.Statuses)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query directives: %w", err)
	}
	return collect(rows, scanDirective)
}

// SetDirectiveStatus resolves a PENDING directive.
func (s *Store) SetDirectiveStatus(ctx context.Context, id int64, status DirectiveStatus) error {
	if status != DirectiveAcknowledged && status != DirectiveDismissed {
		return fmt.Errorf("directive %d: status %q: %w", id, status, ErrInvalidTransition)
	}
	res, err := s.execBuilder(ctx, sq.Update("directives").
		Set("status", status).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []string{string(DirectivePending), string(status)}}))
	if err != nil {
		return fmt.Errorf("set directive status: %w", err)
	}
	return s.checkAffected(ctx, res, "directives", id)
}

func scanDirective(row scanner) (*Directive, error) {
	var (
		directive  Directive
		params     sql.NullString
		reason     sql.NullString
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&directive.ID, &directive.Agent, &directive.Action, &params, &reason,
		&status, &createdRaw, &updatedRaw); err != nil {
		return nil, fmt.Errorf("scan directive: %w", err)
	}
	directive.Reason = reason.String
	directive.Status = DirectiveStatus(status)
	directive.CreatedAt = parseTime(createdRaw)
	directive.UpdatedAt = parseTime(updatedRaw)
	if err := decodeJSON(params, &directive.Params); err != nil {
		return nil, err
	}
	if directive.Params == nil {
		directive.Params = map[string]any{}
	}
	return &directive, nil
}
