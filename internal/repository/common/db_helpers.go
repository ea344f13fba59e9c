package common

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetByID - универсальная функция для получения сущности по ID
func GetByID[T any](ctx context.Context, db *sqlx.DB, table string, id interface{}) (*T, error) {
	return GetByField[T](ctx, db, table, "id", id)
}

// GetByField - универсальная функция для получения сущности по любому полю
func GetByField[T any](ctx context.Context, db *sqlx.DB, table, field string, value interface{}) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, field)

	if err := db.GetContext(ctx, &entity, query, value); err != nil {
		return nil, fmt.Errorf("get by %s from %s: %w", field, table, Classify(err))
	}

	return &entity, nil
}

// ExecConditional выполняет условный UPDATE/DELETE.
// Ноль затронутых строк означает, что условие не выполнилось.
func ExecConditional(ctx context.Context, db *sqlx.DB, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return Classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Classify(err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}
