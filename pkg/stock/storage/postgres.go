// Package storage provides the PostgreSQL persistence layer
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/tanaoroshiGo/pkg/stock"
)

const itemColumns = `id, name, category, model, color, sku, stock_quantity, reserved_quantity, low_stock_threshold, location, unit_price, notes, archived_at, created_at, updated_at`

const movementColumns = `id, inventory_id, case_id, movement_type, quantity_change, previous_quantity, new_quantity, reason, recorded_by, created_at`

const reservationColumns = `id, inventory_id, case_id, quantity, status, reason, created_by, created_at, closed_at`

const stockTakeItemColumns = `stock_take_id, inventory_id, system_quantity, physical_quantity, difference, notes, updated_at`

// PostgreSQLStore implements the stock.Store interface using PostgreSQL
// PostgreSQLを使用したstock.Storeインターフェースの実装
type PostgreSQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// インターフェースを実装することを明示
var _ stock.Store = (*PostgreSQLStore)(nil)

// NewPostgreSQLStore creates a new PostgreSQL store instance
// 新しいPostgreSQLストアインスタンスを作成
func NewPostgreSQLStore(dsn string, logger *zap.Logger) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgreSQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// WithinTx runs fn inside a single transaction. Any error from fn rolls the
// whole transaction back; row locks taken by fn are held until here.
// fnを単一トランザクション内で実行する。fnのエラーで全体をロールバック。
// fnが取得した行ロックはここまで保持される。
func (s *PostgreSQLStore) WithinTx(ctx context.Context, fn func(tx stock.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stock.NewStorageError("begin_tx", "トランザクション開始に失敗しました", err)
	}

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("ロールバックに失敗しました",
				zap.Error(rbErr),
			)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return stock.NewStorageError("commit_tx", "コミットに失敗しました", err)
	}

	return nil
}

// GetItem retrieves an item by ID
// IDで商品を取得
func (s *PostgreSQLStore) GetItem(ctx context.Context, itemID string) (*stock.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE id = $1`
	return scanItem(s.db.QueryRowContext(ctx, query, itemID))
}

// ListItems retrieves items matching the filter, ordered by name
// フィルタに一致する商品を商品名順で取得
func (s *PostgreSQLStore) ListItems(ctx context.Context, filter stock.ItemFilter) ([]stock.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE 1=1`
	args := []interface{}{}

	if !filter.IncludeArchived {
		query += ` AND archived_at IS NULL`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		query += fmt.Sprintf(` AND location = $%d`, len(args))
	}
	if filter.LowStockOnly {
		query += ` AND stock_quantity <= low_stock_threshold`
	}

	query += ` ORDER BY name, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stock.NewStorageError("list_items", "商品一覧取得に失敗しました", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// SearchItems performs a best-effort substring search over descriptive fields
// 記述的フィールドに対するベストエフォートの部分一致検索
func (s *PostgreSQLStore) SearchItems(ctx context.Context, query string) ([]stock.Item, error) {
	pattern := "%" + query + "%"
	sqlQuery := `
		SELECT ` + itemColumns + `
		FROM inventory
		WHERE archived_at IS NULL
		  AND (name ILIKE $1 OR category ILIKE $1 OR notes ILIKE $1
		       OR model ILIKE $1 OR color ILIKE $1 OR sku ILIKE $1)
		ORDER BY name, id
		LIMIT 50`

	rows, err := s.db.QueryContext(ctx, sqlQuery, pattern)
	if err != nil {
		return nil, stock.NewStorageError("search_items", "商品検索に失敗しました", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListMovementsByItem retrieves an item's full ledger in creation order
// 商品の台帳全体を作成順で取得
func (s *PostgreSQLStore) ListMovementsByItem(ctx context.Context, itemID string) ([]stock.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE inventory_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, stock.NewStorageError("list_movements_by_item", "移動履歴取得に失敗しました", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

// ListMovementsByCase retrieves all ledger entries referencing a case
// 案件を参照する全台帳エントリを取得
func (s *PostgreSQLStore) ListMovementsByCase(ctx context.Context, caseID string) ([]stock.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE case_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, stock.NewStorageError("list_movements_by_case", "案件別移動履歴取得に失敗しました", err)
	}
	defer rows.Close()

	return collectMovements(rows)
}

// GetReservation retrieves a reservation by ID
// IDで予約を取得
func (s *PostgreSQLStore) GetReservation(ctx context.Context, reservationID string) (*stock.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(s.db.QueryRowContext(ctx, query, reservationID))
}

// GetStockTake retrieves a stock take session by ID
// IDで棚卸セッションを取得
func (s *PostgreSQLStore) GetStockTake(ctx context.Context, stockTakeID string) (*stock.StockTake, error) {
	query := `SELECT id, taken_by, status, created_at, completed_at FROM stock_takes WHERE id = $1`
	return scanStockTake(s.db.QueryRowContext(ctx, query, stockTakeID))
}

// ListStockTakes retrieves all sessions, newest first
// 全棚卸セッションを新しい順で取得
func (s *PostgreSQLStore) ListStockTakes(ctx context.Context) ([]stock.StockTake, error) {
	query := `SELECT id, taken_by, status, created_at, completed_at FROM stock_takes ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, stock.NewStorageError("list_stock_takes", "棚卸セッション一覧取得に失敗しました", err)
	}
	defer rows.Close()

	var stockTakes []stock.StockTake
	for rows.Next() {
		st := stock.StockTake{}
		if err := rows.Scan(&st.ID, &st.TakenBy, &st.Status, &st.CreatedAt, &st.CompletedAt); err != nil {
			return nil, stock.NewStorageError("list_stock_takes", "棚卸セッション読み取りに失敗しました", err)
		}
		stockTakes = append(stockTakes, st)
	}

	return stockTakes, rows.Err()
}

// ListStockTakeItems retrieves every line of a session
// セッションの全明細を取得
func (s *PostgreSQLStore) ListStockTakeItems(ctx context.Context, stockTakeID string) ([]stock.StockTakeItem, error) {
	query := `
		SELECT ` + stockTakeItemColumns + `
		FROM stock_take_items
		WHERE stock_take_id = $1
		ORDER BY inventory_id`

	rows, err := s.db.QueryContext(ctx, query, stockTakeID)
	if err != nil {
		return nil, stock.NewStorageError("list_stock_take_items", "棚卸明細取得に失敗しました", err)
	}
	defer rows.Close()

	return collectStockTakeItems(rows)
}

// CreateItem inserts a new catalog item
// 新しい商品を登録
func (s *PostgreSQLStore) CreateItem(ctx context.Context, item *stock.Item) error {
	query := `
		INSERT INTO inventory (id, name, category, model, color, sku, stock_quantity, reserved_quantity, low_stock_threshold, location, unit_price, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Name,
		item.Category,
		item.Model,
		item.Color,
		item.SKU,
		item.StockQuantity,
		item.ReservedQuantity,
		item.LowStockThreshold,
		item.Location,
		item.UnitPrice,
		item.Notes,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return stock.ErrDuplicateItem
		}
		return stock.NewStorageError("create_item", "商品登録に失敗しました", err)
	}

	return nil
}

// ArchiveItem soft-deletes an item. Archiving an already archived item is a no-op.
// 商品を論理削除する。アーカイブ済み商品への再実行は何もしない。
func (s *PostgreSQLStore) ArchiveItem(ctx context.Context, itemID string) error {
	query := `UPDATE inventory SET archived_at = $2, updated_at = $2 WHERE id = $1 AND archived_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, itemID, time.Now())
	if err != nil {
		return stock.NewStorageError("archive_item", "商品アーカイブに失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return stock.NewStorageError("archive_item", "更新行数の取得に失敗しました", err)
	}
	if rowsAffected == 0 {
		// 存在しないのか、アーカイブ済みなのかを区別する
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity
// データベース接続を確認
func (s *PostgreSQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool
// データベース接続プールをクローズ
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

// pgTx implements stock.Tx on top of a single *sql.Tx
// 単一の*sql.Tx上でstock.Txを実装
type pgTx struct {
	tx *sql.Tx
}

var _ stock.Tx = (*pgTx)(nil)

// GetItemForUpdate locks the item row exclusively until commit or rollback
// 商品行をコミットまたはロールバックまで排他ロックして取得
func (t *pgTx) GetItemForUpdate(ctx context.Context, itemID string) (*stock.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE id = $1 FOR UPDATE`
	return scanItem(t.tx.QueryRowContext(ctx, query, itemID))
}

// ApplyDelta mutates quantities with the invariants re-checked in the UPDATE
// itself: on-hand and reserved stay non-negative and reserved never exceeds
// on-hand. Zero rows affected with an existing item means an invariant would
// break.
// UPDATE文自体で不変条件を再チェックしながら数量を更新する:
// 実在庫・予約済みは非負を維持し、予約済みは実在庫を超えない。
// 商品が存在するのに更新行数が0の場合は不変条件違反。
func (t *pgTx) ApplyDelta(ctx context.Context, itemID string, quantityDelta, reservedDelta int64) (*stock.Item, error) {
	query := `
		UPDATE inventory
		SET stock_quantity = stock_quantity + $2,
		    reserved_quantity = reserved_quantity + $3,
		    updated_at = $4
		WHERE id = $1
		  AND stock_quantity + $2 >= 0
		  AND reserved_quantity + $3 >= 0
		  AND stock_quantity + $2 >= reserved_quantity + $3
		RETURNING ` + itemColumns

	item, err := scanItem(t.tx.QueryRowContext(ctx, query, itemID, quantityDelta, reservedDelta, time.Now()))
	if err == stock.ErrItemNotFound {
		// 行が存在するのにガード条件で弾かれたのかを確認
		var exists bool
		checkErr := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM inventory WHERE id = $1)`, itemID).Scan(&exists)
		if checkErr != nil {
			return nil, stock.NewStorageError("apply_delta", "商品存在確認に失敗しました", checkErr)
		}
		if exists {
			return nil, stock.ErrNegativeQuantity
		}
		return nil, stock.ErrItemNotFound
	}
	return item, err
}

// AppendMovement inserts one immutable ledger entry
// 不変の台帳エントリを1件追記
func (t *pgTx) AppendMovement(ctx context.Context, m *stock.Movement) error {
	query := `
		INSERT INTO stock_movements (id, inventory_id, case_id, movement_type, quantity_change, previous_quantity, new_quantity, reason, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := t.tx.ExecContext(ctx, query,
		m.ID,
		m.InventoryID,
		m.CaseID,
		m.Type,
		m.QuantityChange,
		m.PreviousQuantity,
		m.NewQuantity,
		m.Reason,
		m.RecordedBy,
		m.CreatedAt,
	)
	if err != nil {
		return stock.NewStorageError("append_movement", "台帳追記に失敗しました", err)
	}

	return nil
}

// CreateReservation inserts a new reservation row
// 新しい予約行を作成
func (t *pgTx) CreateReservation(ctx context.Context, r *stock.Reservation) error {
	query := `
		INSERT INTO reservations (id, inventory_id, case_id, quantity, status, reason, created_by, created_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.tx.ExecContext(ctx, query,
		r.ID,
		r.InventoryID,
		r.CaseID,
		r.Quantity,
		r.Status,
		r.Reason,
		r.CreatedBy,
		r.CreatedAt,
		r.ClosedAt,
	)
	if err != nil {
		return stock.NewStorageError("create_reservation", "予約作成に失敗しました", err)
	}

	return nil
}

// GetReservationForUpdate locks a reservation row exclusively
// 予約行を排他ロックして取得
func (t *pgTx) GetReservationForUpdate(ctx context.Context, reservationID string) (*stock.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return scanReservation(t.tx.QueryRowContext(ctx, query, reservationID))
}

// CloseReservation moves a reservation to a terminal status
// 予約を終端状態へ遷移させる
func (t *pgTx) CloseReservation(ctx context.Context, reservationID string, status stock.ReservationStatus, caseID *string, closedAt time.Time) error {
	query := `
		UPDATE reservations
		SET status = $2, case_id = COALESCE($3, case_id), closed_at = $4
		WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, reservationID, status, caseID, closedAt)
	if err != nil {
		return stock.NewStorageError("close_reservation", "予約更新に失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return stock.NewStorageError("close_reservation", "更新行数の取得に失敗しました", err)
	}
	if rowsAffected == 0 {
		return stock.ErrReservationNotFound
	}

	return nil
}

// LockOpenStockTakes locks every in-progress session row and returns the IDs.
// Concurrent session starts serialize on these locks.
// 実施中の全セッション行をロックしてIDを返す。
// 同時のセッション開始はこのロックで直列化される。
func (t *pgTx) LockOpenStockTakes(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM stock_takes WHERE status = $1 ORDER BY created_at, id FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, stock.StockTakeStatusInProgress)
	if err != nil {
		return nil, stock.NewStorageError("lock_open_stock_takes", "実施中セッション取得に失敗しました", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, stock.NewStorageError("lock_open_stock_takes", "セッションID読み取りに失敗しました", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CreateStockTake inserts a new session row
// 新しいセッション行を作成
func (t *pgTx) CreateStockTake(ctx context.Context, st *stock.StockTake) error {
	query := `
		INSERT INTO stock_takes (id, taken_by, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := t.tx.ExecContext(ctx, query, st.ID, st.TakenBy, st.Status, st.CreatedAt, st.CompletedAt)
	if err != nil {
		return stock.NewStorageError("create_stock_take", "棚卸セッション作成に失敗しました", err)
	}

	return nil
}

// SnapshotItems freezes every non-archived item's current on-hand quantity
// into the session's lines and returns how many were captured
// 全有効商品の現在実在庫をセッション明細へ凍結し、件数を返す
func (t *pgTx) SnapshotItems(ctx context.Context, stockTakeID string, at time.Time) (int, error) {
	query := `
		INSERT INTO stock_take_items (stock_take_id, inventory_id, system_quantity, notes)
		SELECT $1, id, stock_quantity, ''
		FROM inventory
		WHERE archived_at IS NULL`

	result, err := t.tx.ExecContext(ctx, query, stockTakeID)
	if err != nil {
		return 0, stock.NewStorageError("snapshot_items", "スナップショット作成に失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, stock.NewStorageError("snapshot_items", "作成行数の取得に失敗しました", err)
	}

	return int(rowsAffected), nil
}

// GetStockTakeForUpdate locks a session row exclusively
// セッション行を排他ロックして取得
func (t *pgTx) GetStockTakeForUpdate(ctx context.Context, stockTakeID string) (*stock.StockTake, error) {
	query := `SELECT id, taken_by, status, created_at, completed_at FROM stock_takes WHERE id = $1 FOR UPDATE`
	return scanStockTake(t.tx.QueryRowContext(ctx, query, stockTakeID))
}

// SetPhysicalCount records a physical count on one snapshotted line.
// The difference column is derived in the same statement. Lines exist only
// for items snapshotted at session start, so unknown items fail here.
// スナップショット済みの1明細に実地数量を記録する。差異列は同一文で導出。
// 明細はセッション開始時にスナップショットした商品にのみ存在するため、
// 対象外の商品はここで失敗する。
func (t *pgTx) SetPhysicalCount(ctx context.Context, stockTakeID, inventoryID string, physical int64, notes string, at time.Time) (*stock.StockTakeItem, error) {
	query := `
		UPDATE stock_take_items
		SET physical_quantity = $3,
		    difference = $3 - system_quantity,
		    notes = $4,
		    updated_at = $5
		WHERE stock_take_id = $1 AND inventory_id = $2
		RETURNING ` + stockTakeItemColumns

	item := &stock.StockTakeItem{}
	err := t.tx.QueryRowContext(ctx, query, stockTakeID, inventoryID, physical, notes, at).Scan(
		&item.StockTakeID,
		&item.InventoryID,
		&item.SystemQuantity,
		&item.PhysicalQuantity,
		&item.Difference,
		&item.Notes,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, stock.ErrStockTakeItemNotFound
		}
		return nil, stock.NewStorageError("set_physical_count", "実地数量記録に失敗しました", err)
	}

	return item, nil
}

// ListCountedItems retrieves the lines that have a physical count entered
// 実地数量が入力済みの明細を取得
func (t *pgTx) ListCountedItems(ctx context.Context, stockTakeID string) ([]stock.StockTakeItem, error) {
	query := `
		SELECT ` + stockTakeItemColumns + `
		FROM stock_take_items
		WHERE stock_take_id = $1 AND physical_quantity IS NOT NULL
		ORDER BY inventory_id`

	rows, err := t.tx.QueryContext(ctx, query, stockTakeID)
	if err != nil {
		return nil, stock.NewStorageError("list_counted_items", "カウント済み明細取得に失敗しました", err)
	}
	defer rows.Close()

	return collectStockTakeItems(rows)
}

// SetStockTakeStatus moves a session to a new status
// セッションを新しい状態へ遷移させる
func (t *pgTx) SetStockTakeStatus(ctx context.Context, stockTakeID string, status stock.StockTakeStatus, completedAt *time.Time) error {
	query := `UPDATE stock_takes SET status = $2, completed_at = $3 WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, stockTakeID, status, completedAt)
	if err != nil {
		return stock.NewStorageError("set_stock_take_status", "セッション状態更新に失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return stock.NewStorageError("set_stock_take_status", "更新行数の取得に失敗しました", err)
	}
	if rowsAffected == 0 {
		return stock.ErrStockTakeNotFound
	}

	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
// *sql.Rowと*sql.Rowsの共通インターフェース
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*stock.Item, error) {
	item := &stock.Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&item.Model,
		&item.Color,
		&item.SKU,
		&item.StockQuantity,
		&item.ReservedQuantity,
		&item.LowStockThreshold,
		&item.Location,
		&item.UnitPrice,
		&item.Notes,
		&item.ArchivedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, stock.ErrItemNotFound
		}
		return nil, stock.NewStorageError("scan_item", "商品読み取りに失敗しました", err)
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]stock.Item, error) {
	var items []stock.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanMovement(row rowScanner) (*stock.Movement, error) {
	m := &stock.Movement{}
	err := row.Scan(
		&m.ID,
		&m.InventoryID,
		&m.CaseID,
		&m.Type,
		&m.QuantityChange,
		&m.PreviousQuantity,
		&m.NewQuantity,
		&m.Reason,
		&m.RecordedBy,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, stock.NewStorageError("scan_movement", "台帳エントリ読み取りに失敗しました", err)
	}
	return m, nil
}

func collectMovements(rows *sql.Rows) ([]stock.Movement, error) {
	var movements []stock.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}

func scanReservation(row rowScanner) (*stock.Reservation, error) {
	r := &stock.Reservation{}
	err := row.Scan(
		&r.ID,
		&r.InventoryID,
		&r.CaseID,
		&r.Quantity,
		&r.Status,
		&r.Reason,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.ClosedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, stock.ErrReservationNotFound
		}
		return nil, stock.NewStorageError("scan_reservation", "予約読み取りに失敗しました", err)
	}
	return r, nil
}

func scanStockTake(row rowScanner) (*stock.StockTake, error) {
	st := &stock.StockTake{}
	err := row.Scan(
		&st.ID,
		&st.TakenBy,
		&st.Status,
		&st.CreatedAt,
		&st.CompletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, stock.ErrStockTakeNotFound
		}
		return nil, stock.NewStorageError("scan_stock_take", "棚卸セッション読み取りに失敗しました", err)
	}
	return st, nil
}

func collectStockTakeItems(rows *sql.Rows) ([]stock.StockTakeItem, error) {
	var items []stock.StockTakeItem
	for rows.Next() {
		item := stock.StockTakeItem{}
		if err := rows.Scan(
			&item.StockTakeID,
			&item.InventoryID,
			&item.SystemQuantity,
			&item.PhysicalQuantity,
			&item.Difference,
			&item.Notes,
			&item.UpdatedAt,
		); err != nil {
			return nil, stock.NewStorageError("scan_stock_take_item", "棚卸明細読み取りに失敗しました", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
