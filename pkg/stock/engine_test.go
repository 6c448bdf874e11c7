package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewEngine(store, zap.NewNop(), nil, DefaultConfig()), store
}

func seedItem(t *testing.T, store *memStore, id string, stockQty, reservedQty int64) {
	t.Helper()
	now := time.Now()
	store.items[id] = &Item{
		ID:                id,
		Name:              "テスト商品 " + id,
		Category:          "棺",
		StockQuantity:     stockQty,
		ReservedQuantity:  reservedQty,
		LowStockThreshold: 2,
		Location:          "本館倉庫",
		UnitPrice:         10000,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("予約成功で予約済み数量のみ増加する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 3, "仮見積もり")
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusActive, reservation.Status)
		assert.Equal(t, int64(3), reservation.Quantity)

		item := store.items["casket-01"]
		assert.Equal(t, int64(10), item.StockQuantity)
		assert.Equal(t, int64(3), item.ReservedQuantity)
		assert.Equal(t, int64(7), item.AvailableQuantity())

		// 台帳には quantity_change=0 のreservationエントリが1件
		require.Len(t, store.movements, 1)
		assert.Equal(t, MovementTypeReservation, store.movements[0].Type)
		assert.Equal(t, int64(0), store.movements[0].QuantityChange)
	})

	t.Run("販売可能数量を超える予約は拒否される", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 8)

		_, err := engine.Reserve(ctx, "casket-01", 3, "仮見積もり")
		assert.ErrorIs(t, err, ErrInsufficientStock)

		// 状態は一切変化しない
		item := store.items["casket-01"]
		assert.Equal(t, int64(10), item.StockQuantity)
		assert.Equal(t, int64(8), item.ReservedQuantity)
		assert.Empty(t, store.movements)
	})

	t.Run("数量0の予約は台帳追記なしで成功する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 0, "空の確保")
		require.NoError(t, err)
		assert.Equal(t, int64(0), reservation.Quantity)
		assert.Empty(t, store.movements)
		assert.Contains(t, store.reservations, reservation.ID)
	})

	t.Run("存在しない商品の予約は失敗する", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.Reserve(ctx, "unknown", 1, "仮見積もり")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("負の数量はバリデーションで拒否される", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		_, err := engine.Reserve(ctx, "casket-01", -1, "仮見積もり")
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("解除で確保分が販売可能数量へ戻る", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		released, err := engine.Release(ctx, reservation.ID, "見送り")
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusReleased, released.Status)
		assert.NotNil(t, released.ClosedAt)

		item := store.items["casket-01"]
		assert.Equal(t, int64(10), item.StockQuantity)
		assert.Equal(t, int64(0), item.ReservedQuantity)

		// reservation + release の2エントリ、どちらも実在庫は不変
		require.Len(t, store.movements, 2)
		assert.Equal(t, MovementTypeRelease, store.movements[1].Type)
		assert.Equal(t, int64(0), store.movements[1].QuantityChange)
	})

	t.Run("二重解除はErrAlreadyReleased", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		_, err = engine.Release(ctx, reservation.ID, "見送り")
		require.NoError(t, err)

		_, err = engine.Release(ctx, reservation.ID, "見送り")
		assert.ErrorIs(t, err, ErrAlreadyReleased)

		// 予約済み数量が二重に戻らないこと
		assert.Equal(t, int64(0), store.items["casket-01"].ReservedQuantity)
	})

	t.Run("確定済み予約の解除はErrInvalidReservationState", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		_, err = engine.Commit(ctx, reservation.ID, "CASE-57", "葬儀施行")
		require.NoError(t, err)

		_, err = engine.Release(ctx, reservation.ID, "誤操作")
		assert.ErrorIs(t, err, ErrInvalidReservationState)
	})

	t.Run("存在しない予約の解除はErrReservationNotFound", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.Release(ctx, NewReservationID(), "見送り")
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("確定で実在庫と予約済みの両方が減少する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		committed, err := engine.Commit(ctx, reservation.ID, "CASE-57", "葬儀施行")
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusCommitted, committed.Status)
		require.NotNil(t, committed.CaseID)
		assert.Equal(t, "CASE-57", *committed.CaseID)

		item := store.items["casket-01"]
		assert.Equal(t, int64(6), item.StockQuantity)
		assert.Equal(t, int64(0), item.ReservedQuantity)

		// saleエントリが案件を参照し、実在庫の減少を記録する
		require.Len(t, store.movements, 2)
		sale := store.movements[1]
		assert.Equal(t, MovementTypeSale, sale.Type)
		assert.Equal(t, int64(-4), sale.QuantityChange)
		require.NotNil(t, sale.CaseID)
		assert.Equal(t, "CASE-57", *sale.CaseID)
	})

	t.Run("案件参照なしの確定は拒否される", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		_, err = engine.Commit(ctx, reservation.ID, "  ", "葬儀施行")
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("解除済み予約の確定はErrInvalidReservationState", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 4, "仮見積もり")
		require.NoError(t, err)

		_, err = engine.Release(ctx, reservation.ID, "見送り")
		require.NoError(t, err)

		_, err = engine.Commit(ctx, reservation.ID, "CASE-57", "葬儀施行")
		assert.ErrorIs(t, err, ErrInvalidReservationState)
	})

	t.Run("数量0の予約の確定は台帳追記なしで成功する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		reservation, err := engine.Reserve(ctx, "casket-01", 0, "空の確保")
		require.NoError(t, err)

		committed, err := engine.Commit(ctx, reservation.ID, "CASE-57", "葬儀施行")
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusCommitted, committed.Status)
		assert.Empty(t, store.movements)
		assert.Equal(t, int64(10), store.items["casket-01"].StockQuantity)
	})
}

func TestAdjustManual(t *testing.T) {
	ctx := context.Background()

	t.Run("正の調整で実在庫が増加する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		item, err := engine.AdjustManual(ctx, "casket-01", 5, "定期入荷", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(15), item.StockQuantity)

		require.Len(t, store.movements, 1)
		assert.Equal(t, MovementTypeAdjustment, store.movements[0].Type)
		assert.Equal(t, int64(5), store.movements[0].QuantityChange)
		assert.Equal(t, int64(10), store.movements[0].PreviousQuantity)
		assert.Equal(t, int64(15), store.movements[0].NewQuantity)
	})

	t.Run("実在庫を負にする調整はErrNegativeQuantity", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 3, 0)

		_, err := engine.AdjustManual(ctx, "casket-01", -4, "破損償却", nil)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
		assert.Equal(t, int64(3), store.items["casket-01"].StockQuantity)
		assert.Empty(t, store.movements)
	})

	t.Run("実在庫を予約済み数量未満にする調整は拒否される", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 8)

		_, err := engine.AdjustManual(ctx, "casket-01", -5, "破損償却", nil)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("調整量0は何も書き込まずに成功する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		item, err := engine.AdjustManual(ctx, "casket-01", 0, "確認のみ", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(10), item.StockQuantity)
		assert.Empty(t, store.movements)
	})

	t.Run("案件参照付きの調整はsale以外でも案件から辿れる", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-01", 10, 0)

		caseID := "CASE-57"
		_, err := engine.AdjustManual(ctx, "casket-01", -1, "施行時追加消費", &caseID)
		require.NoError(t, err)

		movements, err := engine.ListMovementsByCase(ctx, caseID)
		require.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, MovementTypeAdjustment, movements[0].Type)
	})
}

// 予約→確定と手動調整が混ざる案件の、案件別台帳の通し確認
func TestCaseLedgerScenario(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	seedItem(t, store, "casket-oak", 5, 0)
	seedItem(t, store, "urn-white", 20, 0)

	// 棺を2台予約して案件57で確定
	reservation, err := engine.Reserve(ctx, "casket-oak", 2, "仮見積もり")
	require.NoError(t, err)
	_, err = engine.Commit(ctx, reservation.ID, "57", "葬儀施行")
	require.NoError(t, err)

	// 骨壺は確保なしで直接1個を案件に紐付けて消費
	caseID := "57"
	_, err = engine.AdjustManual(ctx, "urn-white", -1, "施行時追加消費", &caseID)
	require.NoError(t, err)

	movements, err := engine.ListMovementsByCase(ctx, "57")
	require.NoError(t, err)
	require.Len(t, movements, 2)

	// 両商品の数量が正しく減っている
	assert.Equal(t, int64(3), store.items["casket-oak"].StockQuantity)
	assert.Equal(t, int64(19), store.items["urn-white"].StockQuantity)
}

func TestEngineReads(t *testing.T) {
	ctx := context.Background()

	t.Run("存在しない商品の台帳照会はErrItemNotFound", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.ListMovementsByItem(ctx, "unknown")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("空の検索クエリは拒否される", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.SearchItems(ctx, "   ")
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("検索は名前とカテゴリに部分一致する", func(t *testing.T) {
		engine, store := newTestEngine(t)
		seedItem(t, store, "casket-oak", 5, 0)
		seedItem(t, store, "urn-white", 20, 0)
		store.items["urn-white"].Name = "骨壺 7寸"
		store.items["urn-white"].Category = "骨壺"

		items, err := engine.SearchItems(ctx, "骨壺")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "urn-white", items[0].ID)
	})
}
