package stock

import (
	"context"

	"go.uber.org/zap"
)

// ItemValue is one line of a stock value report
// 在庫評価レポートの1明細
type ItemValue struct {
	InventoryID   string  `json:"inventory_id"`
	Name          string  `json:"name"`
	StockQuantity int64   `json:"stock_quantity"`
	UnitPrice     float64 `json:"unit_price"`
	TotalValue    float64 `json:"total_value"`
}

// ValueReport aggregates the monetary value of on-hand stock
// 実在庫の金額評価を集計
type ValueReport struct {
	Items      []ItemValue `json:"items"`
	TotalValue float64     `json:"total_value"`
}

// VarianceLine is one counted line of a stock take variance report
// 棚卸差異レポートのカウント済み1明細
type VarianceLine struct {
	InventoryID      string `json:"inventory_id"`
	SystemQuantity   int64  `json:"system_quantity"`
	PhysicalQuantity int64  `json:"physical_quantity"`
	Difference       int64  `json:"difference"`
	Notes            string `json:"notes,omitempty"`
}

// VarianceReport summarizes the outcome of a stock take session
// 棚卸セッションの結果サマリー
type VarianceReport struct {
	StockTakeID   string          `json:"stock_take_id"`
	Status        StockTakeStatus `json:"status"`
	TotalItems    int             `json:"total_items"`
	CountedItems  int             `json:"counted_items"`
	VarianceItems int             `json:"variance_items"`
	TotalShortage int64           `json:"total_shortage"`
	TotalOverage  int64           `json:"total_overage"`
	Lines         []VarianceLine  `json:"lines"`
}

// Reporter produces read-only reports over items and stock take sessions
// 商品・棚卸セッションに対する読み取り専用レポートを生成
type Reporter struct {
	store  Store
	logger *zap.Logger
}

// NewReporter creates a new reporter
// 新しいレポーターを作成
func NewReporter(store Store, logger *zap.Logger) *Reporter {
	return &Reporter{
		store:  store,
		logger: logger,
	}
}

// LowStockItems retrieves non-archived items whose on-hand quantity is at
// or below their low stock threshold
// 実在庫が下限しきい値以下の有効商品を取得
func (r *Reporter) LowStockItems(ctx context.Context) ([]Item, error) {
	items, err := r.store.ListItems(ctx, ItemFilter{LowStockOnly: true})
	if err != nil {
		return nil, NewStorageError("list_items", "低在庫商品取得に失敗しました", err)
	}

	r.logger.Info("低在庫レポート生成完了",
		zap.Int("count", len(items)),
	)

	return items, nil
}

// StockValue values every non-archived item at quantity times unit price
// 全有効商品を「数量 × 単価」で評価
func (r *Reporter) StockValue(ctx context.Context, filter ItemFilter) (*ValueReport, error) {
	items, err := r.store.ListItems(ctx, filter)
	if err != nil {
		return nil, NewStorageError("list_items", "商品一覧取得に失敗しました", err)
	}

	report := &ValueReport{
		Items: make([]ItemValue, 0, len(items)),
	}

	for _, item := range items {
		if item.StockQuantity <= 0 {
			continue
		}
		value := float64(item.StockQuantity) * item.UnitPrice
		report.Items = append(report.Items, ItemValue{
			InventoryID:   item.ID,
			Name:          item.Name,
			StockQuantity: item.StockQuantity,
			UnitPrice:     item.UnitPrice,
			TotalValue:    value,
		})
		report.TotalValue += value
	}

	r.logger.Info("在庫評価レポート生成完了",
		zap.Int("item_count", len(report.Items)),
		zap.Float64("total_value", report.TotalValue),
	)

	return report, nil
}

// StockTakeVariance summarizes counted lines and their differences for one
// session. Works for in-progress and terminal sessions alike.
// 1セッションのカウント済み明細と差異を集計する。実施中・終了済みの
// どちらのセッションにも使用可能。
func (r *Reporter) StockTakeVariance(ctx context.Context, stockTakeID string) (*VarianceReport, error) {
	if err := ValidateRef("stock_take_id", stockTakeID); err != nil {
		return nil, err
	}

	stockTake, err := r.store.GetStockTake(ctx, stockTakeID)
	if err != nil {
		return nil, err
	}

	lines, err := r.store.ListStockTakeItems(ctx, stockTakeID)
	if err != nil {
		return nil, NewStorageError("list_stock_take_items", "棚卸明細取得に失敗しました", err)
	}

	report := &VarianceReport{
		StockTakeID: stockTakeID,
		Status:      stockTake.Status,
		TotalItems:  len(lines),
	}

	for _, line := range lines {
		if !line.IsCounted() {
			continue
		}
		report.CountedItems++

		diff := *line.PhysicalQuantity - line.SystemQuantity
		if diff == 0 {
			continue
		}
		report.VarianceItems++
		if diff < 0 {
			report.TotalShortage += -diff
		} else {
			report.TotalOverage += diff
		}
		report.Lines = append(report.Lines, VarianceLine{
			InventoryID:      line.InventoryID,
			SystemQuantity:   line.SystemQuantity,
			PhysicalQuantity: *line.PhysicalQuantity,
			Difference:       diff,
			Notes:            line.Notes,
		})
	}

	return report, nil
}
