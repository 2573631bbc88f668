package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

var _ port.Store = (*MySQLAdapter)(nil)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id         VARCHAR(36)    NOT NULL PRIMARY KEY,
		name       VARCHAR(255)   NOT NULL,
		price      DECIMAL(15, 4) NOT NULL,
		quantity   INT            NOT NULL,
		created_at DATETIME(6)    NOT NULL,
		updated_at DATETIME(6)    NOT NULL,
		CHECK (quantity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id            VARCHAR(36)    NOT NULL PRIMARY KEY,
		customer_name VARCHAR(255)   NOT NULL,
		date          DATETIME(6)    NOT NULL,
		total_amount  DECIMAL(15, 4) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bill_items (
		bill_id  VARCHAR(36) NOT NULL,
		position INT         NOT NULL,
		item_id  VARCHAR(36) NOT NULL,
		quantity INT         NOT NULL,
		PRIMARY KEY (bill_id, position),
		FOREIGN KEY (bill_id) REFERENCES bills (id) ON DELETE CASCADE
	)`,
}

type itemRow struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int             `db:"quantity"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type billRow struct {
	ID           string          `db:"id"`
	CustomerName string          `db:"customer_name"`
	Date         time.Time       `db:"date"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
}

type billItemRow struct {
	BillID   string `db:"bill_id"`
	Position int    `db:"position"`
	ItemID   string `db:"item_id"`
	Quantity int    `db:"quantity"`
}

type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL connects with parseTime forced on, since the adapter scans DATETIME into time.Time.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*sqlx.DB, error) {
	dsnCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC

	db, err := sqlx.ConnectContext(ctx, "mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, item domain.InventoryItem) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO inventory_items (id, name, price, quantity, created_at, updated_at)
		VALUES (:id, :name, :price, :quantity, :created_at, :updated_at)`,
		toItemRow(item),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var row itemRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM inventory_items WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	item := row.toDomain()
	return &item, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	var rows []itemRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM inventory_items ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, item domain.InventoryItem) error {
	result, err := m.db.NamedExecContext(ctx, `
		UPDATE inventory_items
		SET name = :name, price = :price, quantity = :quantity, updated_at = :updated_at
		WHERE id = :id`,
		toItemRow(item),
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return m.requireRow(ctx, result, "inventory_items", item.ID, domain.ErrItemNotFound)
}

// PatchItem sets only the provided columns so a concurrent stock deduction
// is never overwritten by a name or price edit.
func (m *MySQLAdapter) PatchItem(ctx context.Context, id string, patch domain.InventoryPatch, updatedAt time.Time) (*domain.InventoryItem, error) {
	sets := []string{"updated_at = ?"}
	args := []any{updatedAt}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *patch.Quantity)
	}
	args = append(args, id)

	result, err := m.db.ExecContext(ctx,
		`UPDATE inventory_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("patch item: %w", err)
	}
	if err := m.requireRow(ctx, result, "inventory_items", id, domain.ErrItemNotFound); err != nil {
		return nil, err
	}

	item, err := m.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (m *MySQLAdapter) DeleteItem(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MySQLAdapter) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - ?, updated_at = UTC_TIMESTAMP(6)
		WHERE id = ? AND quantity >= ?`,
		quantity, id, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) IncrementStock(ctx context.Context, id string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + ?, updated_at = UTC_TIMESTAMP(6)
		WHERE id = ?`,
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (m *MySQLAdapter) CreateBill(ctx context.Context, bill domain.Bill) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO bills (id, customer_name, date, total_amount)
		VALUES (:id, :customer_name, :date, :total_amount)`,
		billRow{ID: bill.ID, CustomerName: bill.CustomerName, Date: bill.Date, TotalAmount: bill.TotalAmount},
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}

	if err := insertBillItems(ctx, tx, bill.ID, bill.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	var row billRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, customer_name, date, total_amount FROM bills WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query bill: %w", err)
	}

	lines, err := m.billItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	bill := row.toDomain(lines[id])
	return &bill, nil
}

func (m *MySQLAdapter) ListBills(ctx context.Context) ([]domain.Bill, error) {
	var rows []billRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, customer_name, date, total_amount FROM bills ORDER BY date, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Bill{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	lines, err := m.billItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	bills := make([]domain.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, row.toDomain(lines[row.ID]))
	}
	return bills, nil
}

func (m *MySQLAdapter) UpdateBill(ctx context.Context, id string, update domain.BillUpdate) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM bills WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		return fmt.Errorf("lock bill: %w", err)
	}
	if exists == 0 {
		return domain.ErrBillNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bills SET customer_name = ? WHERE id = ?`, update.CustomerName, id); err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = ?`, id); err != nil {
		return fmt.Errorf("clear bill items: %w", err)
	}
	if err := insertBillItems(ctx, tx, id, update.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) DeleteBill(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBillNotFound
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) Close() error {
	return m.db.Close()
}

func (m *MySQLAdapter) billItems(ctx context.Context, billIDs []string) (map[string][]domain.LineItem, error) {
	query, args, err := sqlx.In(`
		SELECT bill_id, position, item_id, quantity
		FROM bill_items WHERE bill_id IN (?) ORDER BY bill_id, position`, billIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("build bill items query: %w", err)
	}

	var rows []billItemRow
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query bill items: %w", err)
	}

	lines := make(map[string][]domain.LineItem, len(billIDs))
	for _, row := range rows {
		lines[row.BillID] = append(lines[row.BillID], domain.LineItem{ItemID: row.ItemID, Quantity: row.Quantity})
	}
	return lines, nil
}

// requireRow tells "no such row" apart from "row unchanged": MySQL reports
// zero affected rows for an UPDATE that writes identical values.
func (m *MySQLAdapter) requireRow(ctx context.Context, result sql.Result, table, id string, notFound error) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var count int
	if err := m.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func insertBillItems(ctx context.Context, tx *sqlx.Tx, billID string, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]billItemRow, len(items))
	for i, li := range items {
		rows[i] = billItemRow{BillID: billID, Position: i, ItemID: li.ItemID, Quantity: li.Quantity}
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO bill_items (bill_id, position, item_id, quantity)
		VALUES (:bill_id, :position, :item_id, :quantity)`,
		rows,
	)
	if err != nil {
		return fmt.Errorf("insert bill items: %w", err)
	}
	return nil
}

func toItemRow(item domain.InventoryItem) itemRow {
	return itemRow{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func (r itemRow) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:        r.ID,
		Name:      r.Name,
		Price:     r.Price,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r billRow) toDomain(items []domain.LineItem) domain.Bill {
	if items == nil {
		items = []domain.LineItem{}
	}
	return domain.Bill{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Date:         r.Date,
		TotalAmount:  r.TotalAmount,
		Items:        items,
	}
}
