package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"storefront/apperr"
	"storefront/models"
)

var ErrProductNotFound = apperr.NotFound("Product not found")

type ProductService struct {
	db *sql.DB
}

func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db}
}

const productColumns = `id, name, COALESCE(description, ''), price, stock, COALESCE(image, ''), COALESCE(category, '')`

// ListProducts returns every product that is in stock, newest first.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock > 0 ORDER BY id DESC`,
	)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch products", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Category); err != nil {
			return nil, apperr.Internal("Failed to fetch products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("Failed to fetch products", err)
	}

	log.Debug().Int("count", len(products)).Msg("listed products")
	return products, nil
}

// GetProduct returns one product regardless of stock.
func (s *ProductService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch product", err)
	}
	return &p, nil
}
