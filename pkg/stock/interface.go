package stock

import (
	"context"
	"time"
)

// Controller defines the item-level mutation and read API
// 商品単位の変更・照会APIを定義
type Controller interface {
	// 予約フロー - Reservation flow
	Reserve(ctx context.Context, itemID string, quantity int64, reason string) (*Reservation, error)
	Release(ctx context.Context, reservationID, reason string) (*Reservation, error)
	Commit(ctx context.Context, reservationID, caseID, reason string) (*Reservation, error)

	// 手動調整 - Manual adjustment
	AdjustManual(ctx context.Context, itemID string, delta int64, reason string, caseID *string) (*Item, error)

	// 照会 - Read-only queries
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	SearchItems(ctx context.Context, query string) ([]Item, error)
	GetReservation(ctx context.Context, reservationID string) (*Reservation, error)
	ListMovementsByItem(ctx context.Context, itemID string) ([]Movement, error)
	ListMovementsByCase(ctx context.Context, caseID string) ([]Movement, error)
}

// StockTakeController defines the reconciliation session API
// 棚卸セッションAPIを定義
type StockTakeController interface {
	Start(ctx context.Context, takenBy string) (*StockTake, error)
	UpdateItem(ctx context.Context, stockTakeID, inventoryID string, physical int64, notes string) (*StockTakeItem, error)
	Cancel(ctx context.Context, stockTakeID string) (*StockTake, error)
	Complete(ctx context.Context, stockTakeID string) (int, error)

	Get(ctx context.Context, stockTakeID string) (*StockTake, error)
	List(ctx context.Context) ([]StockTake, error)
	ListItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error)
}

// Store defines the interface for the data persistence layer.
// Mutations go through WithinTx; everything else is lock-free reads.
// データ永続化層のインターフェースを定義。
// 変更操作はWithinTx経由、それ以外はロックを取らない読み取り。
type Store interface {
	// WithinTx runs fn inside a single database transaction.
	// fn returning an error rolls everything back.
	// fnを単一のデータベーストランザクション内で実行する。
	// fnがエラーを返した場合はすべてロールバックされる。
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Item reads
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	SearchItems(ctx context.Context, query string) ([]Item, error)

	// Ledger reads（作成順・昇順）
	ListMovementsByItem(ctx context.Context, itemID string) ([]Movement, error)
	ListMovementsByCase(ctx context.Context, caseID string) ([]Movement, error)

	// Reservation / stock take reads
	GetReservation(ctx context.Context, reservationID string) (*Reservation, error)
	GetStockTake(ctx context.Context, stockTakeID string) (*StockTake, error)
	ListStockTakes(ctx context.Context) ([]StockTake, error)
	ListStockTakeItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error)

	// Catalog minimum（カタログ管理本体はコア外。シード・テスト用）
	CreateItem(ctx context.Context, item *Item) error
	ArchiveItem(ctx context.Context, itemID string) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional write surface. Row locks taken here live until
// the enclosing WithinTx commits or rolls back.
// トランザクション内の書き込み面。ここで取得した行ロックは
// WithinTxのコミットまたはロールバックまで保持される。
type Tx interface {
	// GetItemForUpdate locks the item row exclusively (SELECT ... FOR UPDATE)
	// 商品行を排他ロックして取得（SELECT ... FOR UPDATE）
	GetItemForUpdate(ctx context.Context, itemID string) (*Item, error)

	// ApplyDelta mutates on-hand/reserved quantities; fails with
	// ErrNegativeQuantity when any invariant would break
	// 実在庫・予約済み数量を更新。不変条件が破れる場合はErrNegativeQuantity
	ApplyDelta(ctx context.Context, itemID string, quantityDelta, reservedDelta int64) (*Item, error)

	// AppendMovement appends one immutable ledger entry (the only ledger write)
	// 台帳エントリを1件追記（台帳への唯一の書き込み）
	AppendMovement(ctx context.Context, m *Movement) error

	// Reservation lifecycle
	CreateReservation(ctx context.Context, r *Reservation) error
	GetReservationForUpdate(ctx context.Context, reservationID string) (*Reservation, error)
	CloseReservation(ctx context.Context, reservationID string, status ReservationStatus, caseID *string, closedAt time.Time) error

	// Stock take lifecycle
	LockOpenStockTakes(ctx context.Context) ([]string, error)
	CreateStockTake(ctx context.Context, st *StockTake) error
	SnapshotItems(ctx context.Context, stockTakeID string, at time.Time) (int, error)
	GetStockTakeForUpdate(ctx context.Context, stockTakeID string) (*StockTake, error)
	SetPhysicalCount(ctx context.Context, stockTakeID, inventoryID string, physical int64, notes string, at time.Time) (*StockTakeItem, error)
	ListCountedItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error)
	SetStockTakeStatus(ctx context.Context, stockTakeID string, status StockTakeStatus, completedAt *time.Time) error
}
