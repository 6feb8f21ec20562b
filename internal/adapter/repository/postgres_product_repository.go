package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

const productColumns = `id,farmer_id,name,description,price,quantity,unit,category,image_url,status,created_at,updated_at`

type postgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) repository.ProductRepository {
	return &postgresProductRepository{db: db}
}

func (r *postgresProductRepository) Create(ctx context.Context, p *entity.Product) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.FarmerID, p.Name, p.Description, p.Price, p.Quantity, p.Unit, p.Category, p.ImageURL, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("Product already exists")
		}
		return errors.Internal("Failed to create product", err)
	}
	return nil
}

func (r *postgresProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Product", err)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get product", err)
	}
	return p, nil
}

func (r *postgresProductRepository) Update(ctx context.Context, p *entity.Product) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products
		SET name=$2,description=$3,price=$4,quantity=$5,unit=$6,category=$7,image_url=$8,status=$9,updated_at=$10
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Quantity, p.Unit, p.Category, p.ImageURL, string(p.Status), p.UpdatedAt)
	if err != nil {
		return errors.Internal("Failed to update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Product", nil)
	}
	return nil
}

func (r *postgresProductRepository) List(ctx context.Context, filter repository.ProductFilter, limit, offset int) ([]*entity.Product, int64, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.FarmerID != "" {
		add("farmer_id = $%d", filter.FarmerID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("name ILIKE $%d", "%"+search+"%")
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count products", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+productColumns+` FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list products", err)
	}
	defer rows.Close()

	products := []*entity.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, errors.Internal("Failed to parse product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate products", err)
	}
	return products, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.FarmerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Unit, &p.Category,
		&p.ImageURL, (*string)(&p.Status), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
