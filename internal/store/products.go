package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/catalog"
)

const productColumns = `id, supplier_id, name, slug, description, tags, created_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Name, &p.Slug, &p.Description, &p.Tags, &p.CreatedAt)
	return p, mapNoRows(err)
}

// GetProductBySlug loads a product with its variants.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	p, err := scanProduct(s.Pool.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, err
	}
	p.Variants, err = s.listVariants(ctx, p.ID)
	return p, err
}

// GetVariant loads one variant.
func (s *Store) GetVariant(ctx context.Context, id uuid.UUID) (catalog.Variant, error) {
	var v catalog.Variant
	err := s.Pool.QueryRow(ctx, `
		SELECT id, product_id, sku, name, unit, price, on_hand
		FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Unit, &v.Price, &v.OnHand)
	return v, mapNoRows(err)
}

// ListProductsByVariants loads the products carrying any of the variants,
// with all their variants attached.
func (s *Store) ListProductsByVariants(ctx context.Context, variantIDs []uuid.UUID) ([]catalog.Product, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT p.id, p.supplier_id, p.name, p.slug, p.description, p.tags, p.created_at
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE v.id = ANY($1)
		ORDER BY p.name, p.id`, variantIDs)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return s.attachVariants(ctx, products)
}

// ListProductsByDistribution loads the products linked to the distributor by
// a direct product distribution.
func (s *Store) ListProductsByDistribution(ctx context.Context, distributorID uuid.UUID) ([]catalog.Product, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT p.id, p.supplier_id, p.name, p.slug, p.description, p.tags, p.created_at
		FROM products p
		JOIN product_distributions pd ON pd.product_id = p.id
		WHERE pd.distributor_id = $1
		ORDER BY p.name, p.id`, distributorID)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return s.attachVariants(ctx, products)
}

func (s *Store) listVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, sku, name, unit, price, on_hand
		FROM product_variants WHERE product_id = $1
		ORDER BY name, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Variant
	for rows.Next() {
		var v catalog.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Unit, &v.Price, &v.OnHand); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) attachVariants(ctx context.Context, products []catalog.Product) ([]catalog.Product, error) {
	for i := range products {
		variants, err := s.listVariants(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variants = variants
	}
	return products, nil
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
