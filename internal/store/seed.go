package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seedProduct struct {
	name, description, price, image string
	stock                           int
}

var sampleCatalog = []seedProduct{
	{"Vela Lavanda Relaxante", "Perfeita para relaxar após um dia longo.", "29.90", "lavanda.jpg", 10},
	{"Vela Baunilha Doce", "Aroma doce e acolhedor de baunilha.", "24.90", "baunilha.jpg", 15},
	{"Vela Canela & Maçã", "Mistura quente e acolhedora.", "27.90", "canela-maca.jpg", 8},
	{"Vela Eucalipto Refrescante", "Refresca e purifica o ambiente.", "25.90", "eucalipto.jpg", 12},
	{"Vela Jasmim Floral", "Aroma suave e elegante de jasmim.", "28.90", "jasmim.jpg", 9},
	{"Vela Rosas Vermelhas", "Romântica e clássica.", "32.90", "rosas.jpg", 6},
	{"Vela Oceano Fresco", "Sinta a brisa do mar dentro de casa.", "26.90", "oceano.jpg", 11},
	{"Vela Capim-Limão", "Cítrica e energizante.", "23.90", "capim-limao.jpg", 14},
	{"Vela Café Torrado", "Cheirinho de café fresco.", "27.50", "cafe.jpg", 7},
	{"Vela Pinho Natural", "Aroma de floresta natural.", "26.00", "pinho.jpg", 10},
}

// SeedProducts inserts the sample catalog when the products table is
// empty. It returns the number of rows inserted.
func (s *Store) SeedProducts(ctx context.Context, imageBaseURL string) (int, error) {
	n, err := s.CountProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, sp := range sampleCatalog {
		p := models.Product{
			ID:          uuid.New(),
			Name:        sp.name,
			Description: sp.description,
			Price:       decimal.RequireFromString(sp.price),
			Image:       imageBaseURL + sp.image,
			Stock:       sp.stock,
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO products (id, name, description, price, image, stock) VALUES ($1, $2, $3, $4, $5, $6)",
			p.ID, p.Name, p.Description, p.Price, p.Image, p.Stock); err != nil {
			return 0, fmt.Errorf("failed to seed %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(sampleCatalog), nil
}
