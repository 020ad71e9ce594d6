package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CategoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewCategoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		pool:   pool,
		logger: logger,
	}
}

// Create добавляет категорию
func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (code, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		category.Code, category.Name, category.IsActive,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert category",
			zap.String("code", category.Code),
			zap.Error(err))
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// GetByID получает категорию по ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	return r.getOne(ctx, `SELECT id, code, name, is_active, created_at FROM categories WHERE id = $1`, id)
}

// GetByCode получает активную категорию по строковому коду
func (r *CategoryRepository) GetByCode(ctx context.Context, code string) (*model.Category, error) {
	return r.getOne(ctx, `SELECT id, code, name, is_active, created_at FROM categories WHERE code = $1 AND is_active`, code)
}

// List возвращает активные категории
func (r *CategoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, is_active, created_at
		FROM categories
		WHERE is_active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, arg any) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Code, &c.Name, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}
