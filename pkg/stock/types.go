// Package stock provides ledger-backed stock control functionality
package stock

import (
	"time"

	"github.com/google/uuid"
)

// Item represents a stockable inventory item
// 在庫管理対象の商品を表現
type Item struct {
	ID                string     `json:"id" db:"id"`                                   // 商品ID
	Name              string     `json:"name" db:"name"`                               // 商品名
	Category          string     `json:"category" db:"category"`                       // カテゴリ
	Model             *string    `json:"model" db:"model"`                             // 型番（任意）
	Color             *string    `json:"color" db:"color"`                             // 色（任意）
	SKU               *string    `json:"sku" db:"sku"`                                 // SKU（任意）
	StockQuantity     int64      `json:"stock_quantity" db:"stock_quantity"`           // 実在庫数量
	ReservedQuantity  int64      `json:"reserved_quantity" db:"reserved_quantity"`     // 予約済み数量
	LowStockThreshold int64      `json:"low_stock_threshold" db:"low_stock_threshold"` // 低在庫閾値
	Location          string     `json:"location" db:"location"`                       // 保管場所
	UnitPrice         float64    `json:"unit_price" db:"unit_price"`                   // 単価
	Notes             string     `json:"notes" db:"notes"`                             // メモ
	ArchivedAt        *time.Time `json:"archived_at" db:"archived_at"`                 // アーカイブ日時（論理削除）
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`                   // 作成日時
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`                   // 更新日時
}

// AvailableQuantity returns the sellable quantity (on-hand minus reserved)
// 販売可能数量を返す（実在庫 - 予約済み）
func (i *Item) AvailableQuantity() int64 {
	return i.StockQuantity - i.ReservedQuantity
}

// IsLowStock reports whether on-hand quantity is at or below the threshold
// 実在庫が閾値以下かどうかを判定
func (i *Item) IsLowStock() bool {
	return i.StockQuantity <= i.LowStockThreshold
}

// IsArchived reports whether the item has been soft-deleted
// 商品が論理削除済みかどうかを判定
func (i *Item) IsArchived() bool {
	return i.ArchivedAt != nil
}

// MovementType defines the type of a ledger entry
// 台帳エントリのタイプを定義
type MovementType string

const (
	MovementTypeAdjustment  MovementType = "adjustment"  // 手動調整
	MovementTypeReservation MovementType = "reservation" // 予約
	MovementTypeRelease     MovementType = "release"     // 予約解除
	MovementTypeSale        MovementType = "sale"        // 売上（予約確定）
	MovementTypeStockTake   MovementType = "stock_take"  // 棚卸補正
)

// Movement is an immutable, append-only stock ledger entry
// 更新・削除されない追記専用の在庫台帳エントリ
type Movement struct {
	ID               string       `json:"id" db:"id"`                               // 移動ID
	InventoryID      string       `json:"inventory_id" db:"inventory_id"`           // 商品ID
	CaseID           *string      `json:"case_id" db:"case_id"`                     // 案件参照（任意）
	Type             MovementType `json:"movement_type" db:"movement_type"`         // 移動タイプ
	QuantityChange   int64        `json:"quantity_change" db:"quantity_change"`     // 実在庫の増減
	PreviousQuantity int64        `json:"previous_quantity" db:"previous_quantity"` // 変更前数量
	NewQuantity      int64        `json:"new_quantity" db:"new_quantity"`           // 変更後数量
	Reason           string       `json:"reason" db:"reason"`                       // 理由
	RecordedBy       string       `json:"recorded_by" db:"recorded_by"`             // 記録者
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`               // 作成日時
}

// IsConsistent reports whether new = previous + change holds for this entry
// new = previous + change が成立しているかを判定
func (m *Movement) IsConsistent() bool {
	return m.NewQuantity == m.PreviousQuantity+m.QuantityChange
}

// ReservationStatus defines the lifecycle state of a reservation
// 予約のライフサイクル状態を定義
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"    // 保留中
	ReservationStatusReleased  ReservationStatus = "released"  // 解除済み
	ReservationStatusCommitted ReservationStatus = "committed" // 確定済み
)

// Reservation represents a temporary hold of stock against a pending case
// 進行中の案件に対する一時的な在庫の確保を表現
type Reservation struct {
	ID          string            `json:"id" db:"id"`                     // 予約ID
	InventoryID string            `json:"inventory_id" db:"inventory_id"` // 商品ID
	CaseID      *string           `json:"case_id" db:"case_id"`           // 案件参照（確定時に設定）
	Quantity    int64             `json:"quantity" db:"quantity"`         // 確保数量
	Status      ReservationStatus `json:"status" db:"status"`             // 状態
	Reason      string            `json:"reason" db:"reason"`             // 理由
	CreatedBy   string            `json:"created_by" db:"created_by"`     // 作成者
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`     // 作成日時
	ClosedAt    *time.Time        `json:"closed_at" db:"closed_at"`       // 終了日時（解除または確定）
}

// StockTakeStatus defines the state of a reconciliation session
// 棚卸セッションの状態を定義
type StockTakeStatus string

const (
	StockTakeStatusInProgress StockTakeStatus = "in_progress" // 実施中
	StockTakeStatusCompleted  StockTakeStatus = "completed"   // 完了（終端）
	StockTakeStatusCancelled  StockTakeStatus = "cancelled"   // 中止（終端）
)

// StockTake represents a reconciliation session comparing system and physical counts
// システム数量と実地棚卸数量を照合する棚卸セッションを表現
type StockTake struct {
	ID          string          `json:"id" db:"id"`                     // 棚卸ID
	TakenBy     string          `json:"taken_by" db:"taken_by"`         // 実施者
	Status      StockTakeStatus `json:"status" db:"status"`             // 状態
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`     // 開始日時
	CompletedAt *time.Time      `json:"completed_at" db:"completed_at"` // 完了日時
}

// IsTerminal reports whether the session can no longer change
// セッションが終端状態かどうかを判定
func (st *StockTake) IsTerminal() bool {
	return st.Status == StockTakeStatusCompleted || st.Status == StockTakeStatusCancelled
}

// StockTakeItem is one counted line of a stock take, snapshotted at session start
// 棚卸の1明細。システム数量はセッション開始時点でスナップショットされ凍結される
type StockTakeItem struct {
	StockTakeID      string     `json:"stock_take_id" db:"stock_take_id"`         // 棚卸ID
	InventoryID      string     `json:"inventory_id" db:"inventory_id"`           // 商品ID
	SystemQuantity   int64      `json:"system_quantity" db:"system_quantity"`     // スナップショット時のシステム数量
	PhysicalQuantity *int64     `json:"physical_quantity" db:"physical_quantity"` // 実地数量（未カウントはnull）
	Difference       *int64     `json:"difference" db:"difference"`               // 差異（実地 - システム）
	Notes            string     `json:"notes" db:"notes"`                         // メモ
	UpdatedAt        *time.Time `json:"updated_at" db:"updated_at"`               // 最終カウント日時
}

// IsCounted reports whether a physical count has been entered
// 実地数量が入力済みかどうかを判定
func (sti *StockTakeItem) IsCounted() bool {
	return sti.PhysicalQuantity != nil
}

// ItemFilter narrows item listing queries
// 商品一覧クエリの絞り込み条件
type ItemFilter struct {
	Category        string `json:"category"`         // カテゴリで絞り込み（空は全件）
	Location        string `json:"location"`         // 保管場所で絞り込み（空は全件）
	LowStockOnly    bool   `json:"low_stock_only"`   // 低在庫のみ
	IncludeArchived bool   `json:"include_archived"` // アーカイブ済みを含める
	Offset          int    `json:"offset"`           // オフセット
	Limit           int    `json:"limit"`            // 取得上限
}

// NewMovementID generates a new movement ID
// 新しい移動IDを生成
func NewMovementID() string {
	return uuid.New().String()
}

// NewReservationID generates a new reservation ID
// 新しい予約IDを生成
func NewReservationID() string {
	return uuid.New().String()
}

// NewStockTakeID generates a new stock take session ID
// 新しい棚卸セッションIDを生成
func NewStockTakeID() string {
	return uuid.New().String()
}
