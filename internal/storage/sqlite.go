package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "embed"

	_ "modernc.org/sqlite"

	"github.com/fossawork/fossawork/internal/calculator"
)

//go:embed schema.sql
var schema string

// SQLiteStore persists portal data in a local SQLite database. Fuel grades
// are stored as a JSON array column; the schema is deliberately flat.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveWorkOrders replaces the stored work order set in one transaction.
func (s *SQLiteStore) SaveWorkOrders(ctx context.Context, orders []calculator.WorkOrder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM work_orders`); err != nil {
		return fmt.Errorf("clear work orders: %w", err)
	}
	for _, wo := range orders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO work_orders (
				job_id, store_number, customer_name, service_code, scheduled_date,
				service_name, address, store_name, is_multi_day, day_number, instructions
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wo.JobID, wo.StoreNumber, wo.CustomerName, wo.ServiceCode, wo.ScheduledDate,
			wo.ServiceName, wo.Address, wo.StoreName, boolToInt(wo.IsMultiDay), wo.DayNumber, wo.Instructions)
		if err != nil {
			return fmt.Errorf("insert work order %s: %w", wo.JobID, err)
		}
	}
	return tx.Commit()
}

// WorkOrders returns all stored work orders ordered by job id.
func (s *SQLiteStore) WorkOrders(ctx context.Context) ([]calculator.WorkOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, store_number, customer_name, service_code, scheduled_date,
		       service_name, address, store_name, is_multi_day, day_number, instructions
		FROM work_orders ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("query work orders: %w", err)
	}
	defer rows.Close()

	var orders []calculator.WorkOrder
	for rows.Next() {
		var wo calculator.WorkOrder
		var multiDay int
		if err := rows.Scan(
			&wo.JobID, &wo.StoreNumber, &wo.CustomerName, &wo.ServiceCode, &wo.ScheduledDate,
			&wo.ServiceName, &wo.Address, &wo.StoreName, &multiDay, &wo.DayNumber, &wo.Instructions,
		); err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		wo.IsMultiDay = multiDay != 0
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}

// SaveDispensers replaces the dispensers recorded for one store.
func (s *SQLiteStore) SaveDispensers(ctx context.Context, storeNumber string, dispensers []calculator.Dispenser) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispensers WHERE store_number = ?`, storeNumber); err != nil {
		return fmt.Errorf("clear dispensers for store %s: %w", storeNumber, err)
	}
	for _, d := range dispensers {
		grades, err := json.Marshal(d.FuelGrades)
		if err != nil {
			return fmt.Errorf("marshal fuel grades: %w", err)
		}
		meterType := d.MeterType
		if meterType == "" {
			meterType = "Electronic"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dispensers (store_number, dispenser_number, fuel_grades, meter_type)
			VALUES (?, ?, ?, ?)`,
			storeNumber, d.DispenserNumber, string(grades), meterType)
		if err != nil {
			return fmt.Errorf("insert dispenser %s/%s: %w", storeNumber, d.DispenserNumber, err)
		}
	}
	return tx.Commit()
}

// Dispensers returns all stored dispensers ordered by store and dispenser
// number.
func (s *SQLiteStore) Dispensers(ctx context.Context) ([]calculator.Dispenser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_number, dispenser_number, fuel_grades, meter_type
		FROM dispensers ORDER BY store_number, dispenser_number`)
	if err != nil {
		return nil, fmt.Errorf("query dispensers: %w", err)
	}
	defer rows.Close()

	var dispensers []calculator.Dispenser
	for rows.Next() {
		var d calculator.Dispenser
		var grades string
		if err := rows.Scan(&d.StoreNumber, &d.DispenserNumber, &grades, &d.MeterType); err != nil {
			return nil, fmt.Errorf("scan dispenser: %w", err)
		}
		if err := json.Unmarshal([]byte(grades), &d.FuelGrades); err != nil {
			return nil, fmt.Errorf("unmarshal fuel grades for %s/%s: %w", d.StoreNumber, d.DispenserNumber, err)
		}
		dispensers = append(dispensers, d)
	}
	return dispensers, rows.Err()
}

// SetOverride upserts a manual quantity correction for a job/part pair.
func (s *SQLiteStore) SetOverride(ctx context.Context, jobID, partNumber string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_overrides (job_id, part_number, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT (job_id, part_number) DO UPDATE SET quantity = excluded.quantity`,
		jobID, partNumber, quantity)
	if err != nil {
		return fmt.Errorf("set override %s-%s: %w", jobID, partNumber, err)
	}
	return nil
}

// Overrides returns all recorded overrides keyed "{jobId}-{partNumber}".
func (s *SQLiteStore) Overrides(ctx context.Context) (calculator.Overrides, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id, part_number, quantity FROM filter_overrides`)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	out := make(calculator.Overrides)
	for rows.Next() {
		var jobID, partNumber string
		var quantity int
		if err := rows.Scan(&jobID, &partNumber, &quantity); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out[jobID+"-"+partNumber] = quantity
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
