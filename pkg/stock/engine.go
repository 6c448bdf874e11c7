package stock

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine implements the Controller interface on top of a transactional Store.
// Every mutation runs as one transaction: lock the item row, validate the
// invariant, append exactly one ledger entry, apply the quantity delta.
// トランザクショナルなStoreの上でControllerインターフェースを実装。
// すべての変更操作は単一トランザクションとして実行される:
// 商品行をロック → 不変条件を検証 → 台帳エントリを1件追記 → 数量を更新。
type Engine struct {
	store   Store       // ストレージ層
	logger  *zap.Logger // ログ
	metrics *Metrics    // メトリクス（nil可）
	config  *Config     // 設定
}

// インターフェースを実装することを明示
var _ Controller = (*Engine)(nil)

// Config holds configuration for the stock engines
// 在庫エンジンの設定を保持
type Config struct {
	MaxOpenStockTakes int `yaml:"max_open_stock_takes"` // 同時実施可能な棚卸セッション数
	DefaultListLimit  int `yaml:"default_list_limit"`   // 一覧取得のデフォルト上限
}

// DefaultConfig returns the default engine configuration
// デフォルトのエンジン設定を返す
func DefaultConfig() *Config {
	return &Config{
		MaxOpenStockTakes: 2,
		DefaultListLimit:  100,
	}
}

// NewEngine creates a new stock engine
// 新しい在庫エンジンを作成
func NewEngine(store Store, logger *zap.Logger, metrics *Metrics, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{
		store:   store,
		logger:  logger,
		metrics: metrics,
		config:  config,
	}
}

// Reserve places a hold of quantity units against an item. The on-hand count
// is untouched; only reserved_quantity grows. A zero quantity succeeds as a
// no-op hold without a ledger entry (safe for idempotent retries).
// 商品に対してquantity個の確保を行う。実在庫は変更せず、予約済み数量のみ
// 増加する。数量0は台帳追記なしで成功する（リトライに対して安全）。
func (e *Engine) Reserve(ctx context.Context, itemID string, quantity int64, reason string) (*Reservation, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}

	now := time.Now()
	reservation := &Reservation{
		ID:          NewReservationID(),
		InventoryID: itemID,
		Quantity:    quantity,
		Status:      ReservationStatusActive,
		Reason:      reason,
		CreatedBy:   e.actorFromContext(ctx),
		CreatedAt:   now,
	}

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		if quantity == 0 {
			// 空の確保。後続のRelease/Commitを一様に扱うため行だけ作成する
			return tx.CreateReservation(ctx, reservation)
		}

		// 販売可能数量チェック
		if item.AvailableQuantity() < quantity {
			e.metrics.recordFailure("reserve")
			return ErrInsufficientStock
		}

		updated, err := tx.ApplyDelta(ctx, itemID, 0, quantity)
		if err != nil {
			return err
		}

		if err := tx.CreateReservation(ctx, reservation); err != nil {
			return err
		}

		// 予約は実在庫を動かさないため quantity_change = 0 で記録する
		return tx.AppendMovement(ctx, &Movement{
			ID:               NewMovementID(),
			InventoryID:      itemID,
			Type:             MovementTypeReservation,
			QuantityChange:   0,
			PreviousQuantity: updated.StockQuantity,
			NewQuantity:      updated.StockQuantity,
			Reason:           reason,
			RecordedBy:       reservation.CreatedBy,
			CreatedAt:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	if quantity > 0 {
		e.metrics.recordMovement(MovementTypeReservation)
	}

	e.logger.Info("在庫予約完了",
		zap.String("reservation_id", reservation.ID),
		zap.String("item_id", itemID),
		zap.Int64("quantity", quantity),
		zap.String("reason", reason),
	)

	return reservation, nil
}

// Release abandons an active reservation and returns the held units to the
// available pool. A second release of the same reservation fails with
// ErrAlreadyReleased so reserved_quantity can never drift negative.
// 有効な予約を放棄し、確保分を販売可能数量へ戻す。同一予約の二重解除は
// ErrAlreadyReleasedで失敗し、予約済み数量が負へ漂うことを防ぐ。
func (e *Engine) Release(ctx context.Context, reservationID, reason string) (*Reservation, error) {
	if err := ValidateRef("reservation_id", reservationID); err != nil {
		return nil, err
	}
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}

	now := time.Now()
	var result *Reservation

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		reservation, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}

		switch reservation.Status {
		case ReservationStatusReleased:
			e.metrics.recordFailure("release")
			return ErrAlreadyReleased
		case ReservationStatusCommitted:
			e.metrics.recordFailure("release")
			return ErrInvalidReservationState
		}

		if reservation.Quantity > 0 {
			item, err := tx.GetItemForUpdate(ctx, reservation.InventoryID)
			if err != nil {
				return err
			}

			if _, err := tx.ApplyDelta(ctx, reservation.InventoryID, 0, -reservation.Quantity); err != nil {
				return err
			}

			if err := tx.AppendMovement(ctx, &Movement{
				ID:               NewMovementID(),
				InventoryID:      reservation.InventoryID,
				Type:             MovementTypeRelease,
				QuantityChange:   0,
				PreviousQuantity: item.StockQuantity,
				NewQuantity:      item.StockQuantity,
				Reason:           reason,
				RecordedBy:       e.actorFromContext(ctx),
				CreatedAt:        now,
			}); err != nil {
				return err
			}
		}

		if err := tx.CloseReservation(ctx, reservationID, ReservationStatusReleased, nil, now); err != nil {
			return err
		}

		closed := *reservation
		closed.Status = ReservationStatusReleased
		closed.ClosedAt = &now
		result = &closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Quantity > 0 {
		e.metrics.recordMovement(MovementTypeRelease)
	}

	e.logger.Info("予約解除完了",
		zap.String("reservation_id", reservationID),
		zap.String("item_id", result.InventoryID),
		zap.Int64("quantity", result.Quantity),
		zap.String("reason", reason),
	)

	return result, nil
}

// Commit converts an active reservation into a permanent deduction: reserved
// and on-hand both decrease by the held amount and one sale entry referencing
// the case is appended. This is the only path that consumes stock.
// 有効な予約を恒久的な引き落としへ変換する。予約済みと実在庫の両方が
// 確保数量分だけ減少し、案件を参照するsaleエントリが1件追記される。
// 在庫を消費する唯一の経路。
func (e *Engine) Commit(ctx context.Context, reservationID, caseID, reason string) (*Reservation, error) {
	if err := ValidateRef("reservation_id", reservationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(caseID) == "" {
		return nil, NewValidationError("case_id", "案件参照が空です", caseID)
	}
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}

	now := time.Now()
	var result *Reservation

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		reservation, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}

		if reservation.Status != ReservationStatusActive {
			e.metrics.recordFailure("commit")
			return ErrInvalidReservationState
		}

		if reservation.Quantity > 0 {
			item, err := tx.GetItemForUpdate(ctx, reservation.InventoryID)
			if err != nil {
				return err
			}

			updated, err := tx.ApplyDelta(ctx, reservation.InventoryID, -reservation.Quantity, -reservation.Quantity)
			if err != nil {
				return err
			}

			if err := tx.AppendMovement(ctx, &Movement{
				ID:               NewMovementID(),
				InventoryID:      reservation.InventoryID,
				CaseID:           &caseID,
				Type:             MovementTypeSale,
				QuantityChange:   -reservation.Quantity,
				PreviousQuantity: item.StockQuantity,
				NewQuantity:      updated.StockQuantity,
				Reason:           reason,
				RecordedBy:       e.actorFromContext(ctx),
				CreatedAt:        now,
			}); err != nil {
				return err
			}
		}

		if err := tx.CloseReservation(ctx, reservationID, ReservationStatusCommitted, &caseID, now); err != nil {
			return err
		}

		closed := *reservation
		closed.Status = ReservationStatusCommitted
		closed.CaseID = &caseID
		closed.ClosedAt = &now
		result = &closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Quantity > 0 {
		e.metrics.recordMovement(MovementTypeSale)
	}

	e.logger.Info("予約確定完了",
		zap.String("reservation_id", reservationID),
		zap.String("item_id", result.InventoryID),
		zap.String("case_id", caseID),
		zap.Int64("quantity", result.Quantity),
	)

	return result, nil
}

// AdjustManual applies a direct on-hand correction outside the reserve/commit
// flow (write-off, opening balance, case-linked deduction without a hold).
// A zero delta succeeds without writing anything.
// 予約フロー外での実在庫の直接補正（破損償却、期首残高、確保なしの
// 案件紐付け引き落とし）。調整量0は何も書き込まずに成功する。
func (e *Engine) AdjustManual(ctx context.Context, itemID string, delta int64, reason string, caseID *string) (*Item, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	if err := ValidateDelta(delta); err != nil {
		return nil, err
	}
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}
	if caseID != nil {
		if err := ValidateCaseID(*caseID); err != nil {
			return nil, err
		}
	}

	if delta == 0 {
		return e.GetItem(ctx, itemID)
	}

	now := time.Now()
	var result *Item

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		// 実在庫と販売可能数量の両方が0以上を維持すること
		if item.StockQuantity+delta < 0 || item.StockQuantity+delta < item.ReservedQuantity {
			e.metrics.recordFailure("adjust")
			return ErrNegativeQuantity
		}

		updated, err := tx.ApplyDelta(ctx, itemID, delta, 0)
		if err != nil {
			return err
		}

		if err := tx.AppendMovement(ctx, &Movement{
			ID:               NewMovementID(),
			InventoryID:      itemID,
			CaseID:           caseID,
			Type:             MovementTypeAdjustment,
			QuantityChange:   delta,
			PreviousQuantity: item.StockQuantity,
			NewQuantity:      updated.StockQuantity,
			Reason:           reason,
			RecordedBy:       e.actorFromContext(ctx),
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.recordMovement(MovementTypeAdjustment)

	e.logger.Info("手動調整完了",
		zap.String("item_id", itemID),
		zap.Int64("delta", delta),
		zap.Int64("new_quantity", result.StockQuantity),
		zap.String("reason", reason),
	)

	return result, nil
}

// GetItem retrieves a single item
// 商品を1件取得
func (e *Engine) GetItem(ctx context.Context, itemID string) (*Item, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	return e.store.GetItem(ctx, itemID)
}

// ListItems lists items matching the filter
// 条件に一致する商品一覧を取得
func (e *Engine) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	if filter.Limit <= 0 {
		filter.Limit = e.config.DefaultListLimit
	}
	return e.store.ListItems(ctx, filter)
}

// SearchItems resolves items by a free-text query. Best effort only:
// results are candidates for a human to pick from, never an input to a
// mutation.
// フリーテキストで商品を検索する。ベストエフォートの解決であり、
// 結果は人が選ぶための候補に過ぎず、変更操作の入力には決してならない。
func (e *Engine) SearchItems(ctx context.Context, query string) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewValidationError("query", "検索クエリが空です", query)
	}
	return e.store.SearchItems(ctx, query)
}

// GetReservation retrieves a reservation by ID
// IDで予約を取得
func (e *Engine) GetReservation(ctx context.Context, reservationID string) (*Reservation, error) {
	if err := ValidateRef("reservation_id", reservationID); err != nil {
		return nil, err
	}
	return e.store.GetReservation(ctx, reservationID)
}

// ListMovementsByItem returns the full ledger for an item in creation order
// 商品の台帳全件を作成順で取得
func (e *Engine) ListMovementsByItem(ctx context.Context, itemID string) ([]Movement, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	if _, err := e.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return e.store.ListMovementsByItem(ctx, itemID)
}

// ListMovementsByCase returns all ledger entries referencing a case
// 案件を参照する台帳エントリ全件を取得
func (e *Engine) ListMovementsByCase(ctx context.Context, caseID string) ([]Movement, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(caseID) == "" {
		return nil, NewValidationError("case_id", "案件参照が空です", caseID)
	}
	return e.store.ListMovementsByCase(ctx, caseID)
}

// actorFromContext extracts the acting user ID from context
// コンテキストから実行者IDを取得
func (e *Engine) actorFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value("user_id").(string); ok {
		return userID
	}
	return "system"
}
