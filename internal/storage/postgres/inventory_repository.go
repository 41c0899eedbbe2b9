package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
// Мутации счётчиков выполняются одним условным UPDATE: проверка и изменение
// атомарны на стороне базы, гонка двух резервов невозможна.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Create(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory (
			product_id, current_stock, reserved_stock,
			out_of_stock_threshold, low_stock_threshold, overstock_threshold,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		record.ProductID, record.CurrentStock, record.ReservedStock,
		record.OutOfStockThreshold, record.LowStockThreshold, record.OverstockThreshold,
		record.Version, record.CreatedAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert inventory record: %w", err)
	}

	return nil
}

func (r *inventoryRepository) Get(productID string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := scanInventory(r.db.QueryRowContext(ctx, `
		SELECT product_id, current_stock, reserved_stock,
		       out_of_stock_threshold, low_stock_threshold, overstock_threshold,
		       version, created_at, updated_at
		FROM inventory
		WHERE product_id = $1
	`, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory record: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) Reserve(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, domain.ErrInsufficientStock, `
		UPDATE inventory
		SET reserved_stock = reserved_stock + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND current_stock - reserved_stock >= $2
		RETURNING product_id, current_stock, reserved_stock,
		          out_of_stock_threshold, low_stock_threshold, overstock_threshold,
		          version, created_at, updated_at
	`, productID, qty)
}

func (r *inventoryRepository) Release(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, domain.ErrStockInvariant, `
		UPDATE inventory
		SET reserved_stock = GREATEST(reserved_stock - $2, 0),
		    version = version + 1,
		    updated_at = NOW()
		WHERE product_id = $1
		RETURNING product_id, current_stock, reserved_stock,
		          out_of_stock_threshold, low_stock_threshold, overstock_threshold,
		          version, created_at, updated_at
	`, productID, qty)
}

func (r *inventoryRepository) Commit(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, domain.ErrStockInvariant, `
		UPDATE inventory
		SET current_stock = current_stock - $2,
		    reserved_stock = reserved_stock - $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND reserved_stock >= $2
		  AND current_stock >= $2
		RETURNING product_id, current_stock, reserved_stock,
		          out_of_stock_threshold, low_stock_threshold, overstock_threshold,
		          version, created_at, updated_at
	`, productID, qty)
}

func (r *inventoryRepository) Adjust(productID string, delta int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, domain.ErrStockInvariant, `
		UPDATE inventory
		SET current_stock = current_stock + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND current_stock + $2 >= reserved_stock
		RETURNING product_id, current_stock, reserved_stock,
		          out_of_stock_threshold, low_stock_threshold, overstock_threshold,
		          version, created_at, updated_at
	`, productID, delta)
}

// mutate выполняет условный UPDATE и различает «товара нет» и «условие не выполнено».
func (r *inventoryRepository) mutate(productID string, conditionErr error, query string, args ...any) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := scanInventory(r.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryRecord{}, fmt.Errorf("mutate inventory record: %w", err)
	}

	if _, getErr := r.Get(productID); getErr != nil {
		return domain.InventoryRecord{}, getErr
	}
	return domain.InventoryRecord{}, conditionErr
}

func scanInventory(row rowScanner) (domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	err := row.Scan(
		&record.ProductID, &record.CurrentStock, &record.ReservedStock,
		&record.OutOfStockThreshold, &record.LowStockThreshold, &record.OverstockThreshold,
		&record.Version, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	// Статус и алерты — производные, база хранит только счётчики и пороги.
	record.Recompute()
	return record, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
