package repository

import (
	"context"
	"database/sql"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

const orderColumns = `id,buyer_id,product_id,farmer_id,quantity,unit_price,total_price,delivery_address,notes,status,payment_status,payment_reference,created_at,updated_at`

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) repository.OrderRepository {
	return &postgresOrderRepository{db: db}
}

func (r *postgresOrderRepository) CreateWithReservation(ctx context.Context, o *entity.Order, event *entity.OutboxEvent) (*entity.Order, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		// The WHERE clause is the stock check; no rows means not enough left.
		res, err := tx.ExecContext(ctx, `UPDATE products
			SET quantity = quantity - $1,
				status = CASE WHEN quantity - $1 = 0 THEN 'sold' ELSE status END,
				updated_at = $2
			WHERE id = $3 AND quantity >= $1`,
			o.Quantity, o.CreatedAt, o.ProductID)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			var available int
			err := tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id=$1`, o.ProductID).Scan(&available)
			if err == sql.ErrNoRows {
				return errors.NotFound("Product", err)
			}
			if err != nil {
				return err
			}
			return errors.InsufficientStock(o.Quantity, available)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			o.ID, o.BuyerID, o.ProductID, o.FarmerID, o.Quantity, o.UnitPrice, o.TotalPrice, o.DeliveryAddress, o.Notes,
			string(o.Status), string(o.PaymentStatus), o.PaymentReference, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.Conflict("Order already exists")
			}
			return err
		}
		return insertOutbox(ctx, tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to create order", err)
	}

	created := *o
	return &created, nil
}

func (r *postgresOrderRepository) Transition(ctx context.Context, id string, from, to entity.OrderStatus, restock bool, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	var updated *entity.Order
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx, `UPDATE orders SET status=$1, updated_at=$2
			WHERE id=$3 AND status=$4 RETURNING `+orderColumns,
			string(to), at, id, string(from)))
		if err == sql.ErrNoRows {
			return r.staleOrMissing(ctx, tx, id)
		}
		if err != nil {
			return err
		}

		if restock {
			_, err := tx.ExecContext(ctx, `UPDATE products
				SET quantity = quantity + $1,
					status = CASE WHEN status = 'sold' THEN 'active' ELSE status END,
					updated_at = $2
				WHERE id = $3`, o.Quantity, at, o.ProductID)
			if err != nil {
				return err
			}
		}

		updated = o
		return insertOutbox(ctx, tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to update order status", err)
	}
	return updated, nil
}

func (r *postgresOrderRepository) CompletePayment(ctx context.Context, id, reference string, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	var updated *entity.Order
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx, `UPDATE orders
			SET payment_status=$1, payment_reference=$2, updated_at=$3,
				status = CASE WHEN status = $4 THEN $5 ELSE status END
			WHERE id=$6 AND payment_status=$7 RETURNING `+orderColumns,
			string(entity.PaymentCompleted), reference, at,
			string(entity.OrderPending), string(entity.OrderConfirmed),
			id, string(entity.PaymentPending)))
		if err == sql.ErrNoRows {
			var current string
			err := tx.QueryRowContext(ctx, `SELECT payment_status FROM orders WHERE id=$1`, id).Scan(&current)
			if err == sql.ErrNoRows {
				return errors.NotFound("Order", err)
			}
			if err != nil {
				return err
			}
			return errors.Conflict("Payment is already " + current)
		}
		if err != nil {
			return err
		}

		updated = o
		return insertOutbox(ctx, tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to record payment", err)
	}
	return updated, nil
}

func (r *postgresOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Order", err)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get order", err)
	}
	return o, nil
}

func (r *postgresOrderRepository) ListByBuyer(ctx context.Context, buyerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(ctx, "buyer_id", buyerID, status, limit, offset)
}

func (r *postgresOrderRepository) ListByFarmer(ctx context.Context, farmerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(ctx, "farmer_id", farmerID, status, limit, offset)
}

// column is one of two constants above, never user input.
func (r *postgresOrderRepository) list(ctx context.Context, column, userID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	cond := ` WHERE ` + column + `=$1 AND ($2 = '' OR status = $2)`

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`+cond, userID, string(status)).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count orders", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+cond+
		` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, userID, string(status), limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list orders", err)
	}
	defer rows.Close()

	orders := []*entity.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, errors.Internal("Failed to parse order row", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate orders", err)
	}
	return orders, total, nil
}

// staleOrMissing explains why a compare-and-set matched nothing.
func (r *postgresOrderRepository) staleOrMissing(ctx context.Context, tx *sql.Tx, id string) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.NotFound("Order", err)
	}
	if err != nil {
		return err
	}
	return errors.Conflict("Order status changed to " + current + " concurrently")
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.ProductID, &o.FarmerID, &o.Quantity, &o.UnitPrice, &o.TotalPrice,
		&o.DeliveryAddress, &o.Notes, (*string)(&o.Status), (*string)(&o.PaymentStatus), &o.PaymentReference,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
