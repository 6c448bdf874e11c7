package stock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StockTakeEngine manages reconciliation sessions: snapshot system
// quantities, collect physical counts, apply corrective deltas.
// 棚卸エンジン。システム数量のスナップショット、実地数量の収集、
// 補正差分の適用を管理する。
type StockTakeEngine struct {
	store   Store       // ストレージ層
	logger  *zap.Logger // ログ
	metrics *Metrics    // メトリクス（nil可）
	config  *Config     // 設定
}

// インターフェースを実装することを明示
var _ StockTakeController = (*StockTakeEngine)(nil)

// NewStockTakeEngine creates a new stock take engine
// 新しい棚卸エンジンを作成
func NewStockTakeEngine(store Store, logger *zap.Logger, metrics *Metrics, config *Config) *StockTakeEngine {
	if config == nil {
		config = DefaultConfig()
	}

	return &StockTakeEngine{
		store:   store,
		logger:  logger,
		metrics: metrics,
		config:  config,
	}
}

// Start opens a new reconciliation session and snapshots every non-archived
// item's system quantity in the same transaction. At most
// Config.MaxOpenStockTakes sessions may be in progress system-wide.
// 新しい棚卸セッションを開始し、同一トランザクション内で全有効商品の
// システム数量をスナップショットする。実施中セッション数は
// Config.MaxOpenStockTakesが上限。
func (e *StockTakeEngine) Start(ctx context.Context, takenBy string) (*StockTake, error) {
	if err := ValidateActor("taken_by", takenBy); err != nil {
		return nil, err
	}

	now := time.Now()
	stockTake := &StockTake{
		ID:        NewStockTakeID(),
		TakenBy:   takenBy,
		Status:    StockTakeStatusInProgress,
		CreatedAt: now,
	}

	var snapshotted int
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		// 実施中セッションの行をロックしてから数える。
		// 同時開始が上限チェックをすり抜けることを防ぐ
		open, err := tx.LockOpenStockTakes(ctx)
		if err != nil {
			return err
		}
		if len(open) >= e.config.MaxOpenStockTakes {
			e.metrics.recordFailure("stock_take_start")
			return ErrSessionLimitExceeded
		}

		if err := tx.CreateStockTake(ctx, stockTake); err != nil {
			return err
		}

		snapshotted, err = tx.SnapshotItems(ctx, stockTake.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.metrics.recordStockTake("started")

	e.logger.Info("棚卸セッション開始",
		zap.String("stock_take_id", stockTake.ID),
		zap.String("taken_by", takenBy),
		zap.Int("snapshotted_items", snapshotted),
	)

	return stockTake, nil
}

// UpdateItem records a physical count for one line of an in-progress session.
// Recounting overwrites the previous value: last write wins, no per-revision
// history.
// 実施中セッションの1明細に実地数量を記録する。再カウントは前回値を
// 上書きする（最終書き込みが有効、カウント改訂の履歴は持たない）。
func (e *StockTakeEngine) UpdateItem(ctx context.Context, stockTakeID, inventoryID string, physical int64, notes string) (*StockTakeItem, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return nil, err
	}
	if err := ValidateItemID(inventoryID); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(physical); err != nil {
		return nil, err
	}
	if err := ValidateNotes(notes); err != nil {
		return nil, err
	}

	now := time.Now()
	var result *StockTakeItem

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		stockTake, err := tx.GetStockTakeForUpdate(ctx, stockTakeID)
		if err != nil {
			return err
		}
		if stockTake.Status != StockTakeStatusInProgress {
			e.metrics.recordFailure("stock_take_update")
			return ErrInvalidTransition
		}

		result, err = tx.SetPhysicalCount(ctx, stockTakeID, inventoryID, physical, notes, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("棚卸カウント記録完了",
		zap.String("stock_take_id", stockTakeID),
		zap.String("item_id", inventoryID),
		zap.Int64("physical_quantity", physical),
		zap.Int64p("difference", result.Difference),
	)

	return result, nil
}

// Cancel discards an in-progress session without touching any inventory
// quantity. Rows are retained for audit but become inert.
// 実施中セッションを在庫数量に一切触れずに破棄する。
// 行は監査用に保持されるが以後は不活性。
func (e *StockTakeEngine) Cancel(ctx context.Context, stockTakeID string) (*StockTake, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return nil, err
	}

	var result *StockTake
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		stockTake, err := tx.GetStockTakeForUpdate(ctx, stockTakeID)
		if err != nil {
			return err
		}
		if stockTake.Status != StockTakeStatusInProgress {
			e.metrics.recordFailure("stock_take_cancel")
			return ErrInvalidTransition
		}

		if err := tx.SetStockTakeStatus(ctx, stockTakeID, StockTakeStatusCancelled, nil); err != nil {
			return err
		}

		cancelled := *stockTake
		cancelled.Status = StockTakeStatusCancelled
		result = &cancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.recordStockTake("cancelled")

	e.logger.Info("棚卸セッション中止",
		zap.String("stock_take_id", stockTakeID),
	)

	return result, nil
}

// Complete applies every counted, non-zero difference to the live item
// quantity as a stock_take ledger entry, then closes the session. The delta
// is applied relative to the CURRENT on-hand count (each item re-locked), not
// as an absolute overwrite, so consumption ledgered during the session
// survives. The whole completion is one transaction: the session row is
// locked first, so completing twice or racing a count update is serialized,
// and a failure on any line rolls back every line.
// カウント済みかつ差異が0でない全明細について、差分をstock_takeの
// 台帳エントリとして現在の実在庫へ適用し、セッションを完了させる。
// 差分は絶対値の上書きではなく「現在」の実在庫に対する相対適用
// （商品行を再ロック）であり、セッション中に台帳へ記録された消費は
// 保存される。完了処理全体が単一トランザクション: 最初にセッション行を
// ロックするため、二重完了やカウント更新との競合は直列化され、
// 1明細の失敗は全明細をロールバックする。
func (e *StockTakeEngine) Complete(ctx context.Context, stockTakeID string) (int, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return 0, err
	}

	now := time.Now()
	applied := 0

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		stockTake, err := tx.GetStockTakeForUpdate(ctx, stockTakeID)
		if err != nil {
			return err
		}
		if stockTake.Status != StockTakeStatusInProgress {
			e.metrics.recordFailure("stock_take_complete")
			return ErrInvalidTransition
		}

		// 実地数量が入力済みで差異が0でない明細のみ。未カウントは対象外
		counted, err := tx.ListCountedItems(ctx, stockTakeID)
		if err != nil {
			return err
		}

		for _, line := range counted {
			if line.Difference == nil || *line.Difference == 0 {
				continue
			}
			delta := *line.Difference

			item, err := tx.GetItemForUpdate(ctx, line.InventoryID)
			if err != nil {
				return err
			}

			// スナップショット後の消費で現在数量が減っている場合、
			// 補正が数量を負にするなら完了全体を失敗させる（切り詰めない）
			if item.StockQuantity+delta < 0 || item.StockQuantity+delta < item.ReservedQuantity {
				e.metrics.recordFailure("stock_take_complete")
				return ErrNegativeQuantity
			}

			updated, err := tx.ApplyDelta(ctx, line.InventoryID, delta, 0)
			if err != nil {
				return err
			}

			if err := tx.AppendMovement(ctx, &Movement{
				ID:               NewMovementID(),
				InventoryID:      line.InventoryID,
				Type:             MovementTypeStockTake,
				QuantityChange:   delta,
				PreviousQuantity: item.StockQuantity,
				NewQuantity:      updated.StockQuantity,
				Reason:           fmt.Sprintf("棚卸補正 (セッション %s)", stockTakeID),
				RecordedBy:       stockTake.TakenBy,
				CreatedAt:        now,
			}); err != nil {
				return err
			}

			applied++
		}

		return tx.SetStockTakeStatus(ctx, stockTakeID, StockTakeStatusCompleted, &now)
	})
	if err != nil {
		return 0, err
	}

	for i := 0; i < applied; i++ {
		e.metrics.recordMovement(MovementTypeStockTake)
	}
	e.metrics.recordStockTake("completed")

	e.logger.Info("棚卸セッション完了",
		zap.String("stock_take_id", stockTakeID),
		zap.Int("corrected_items", applied),
	)

	return applied, nil
}

// Get retrieves a session by ID
// IDで棚卸セッションを取得
func (e *StockTakeEngine) Get(ctx context.Context, stockTakeID string) (*StockTake, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return nil, err
	}
	return e.store.GetStockTake(ctx, stockTakeID)
}

// List retrieves all sessions, newest first
// 全棚卸セッションを新しい順で取得
func (e *StockTakeEngine) List(ctx context.Context) ([]StockTake, error) {
	return e.store.ListStockTakes(ctx)
}

// ListItems retrieves all lines of a session
// セッションの全明細を取得
func (e *StockTakeEngine) ListItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return nil, err
	}
	if _, err := e.store.GetStockTake(ctx, stockTakeID); err != nil {
		return nil, err
	}
	return e.store.ListStockTakeItems(ctx, stockTakeID)
}
