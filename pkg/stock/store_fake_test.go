package stock

import (
	"context"
	"sort"
	"strings"
	"time"
)

// memStore はテスト用のインメモリStore実装。
// WithinTxは開始時に全状態を複製し、fnがエラーを返した場合に巻き戻すことで
// 実際のトランザクションと同じロールバック挙動を再現する。
type memStore struct {
	items          map[string]*Item
	movements      []Movement
	reservations   map[string]*Reservation
	stockTakes     map[string]*StockTake
	stockTakeItems map[string]map[string]*StockTakeItem // stockTakeID -> inventoryID
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		items:          make(map[string]*Item),
		reservations:   make(map[string]*Reservation),
		stockTakes:     make(map[string]*StockTake),
		stockTakeItems: make(map[string]map[string]*StockTakeItem),
	}
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	for id, item := range s.items {
		copied := *item
		snap.items[id] = &copied
	}
	snap.movements = append([]Movement(nil), s.movements...)
	for id, r := range s.reservations {
		copied := *r
		snap.reservations[id] = &copied
	}
	for id, st := range s.stockTakes {
		copied := *st
		snap.stockTakes[id] = &copied
	}
	for stID, lines := range s.stockTakeItems {
		snap.stockTakeItems[stID] = make(map[string]*StockTakeItem)
		for itemID, line := range lines {
			copied := *line
			snap.stockTakeItems[stID][itemID] = &copied
		}
	}
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.items = snap.items
	s.movements = snap.movements
	s.reservations = snap.reservations
	s.stockTakes = snap.stockTakes
	s.stockTakeItems = snap.stockTakeItems
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	snap := s.snapshot()
	if err := fn(&memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) GetItem(ctx context.Context, itemID string) (*Item, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *memStore) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var items []Item
	for _, item := range s.items {
		if !filter.IncludeArchived && item.IsArchived() {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Location != "" && item.Location != filter.Location {
			continue
		}
		if filter.LowStockOnly && !item.IsLowStock() {
			continue
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if filter.Offset > 0 && filter.Offset < len(items) {
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *memStore) SearchItems(ctx context.Context, query string) ([]Item, error) {
	q := strings.ToLower(query)
	var items []Item
	for _, item := range s.items {
		if item.IsArchived() {
			continue
		}
		if strings.Contains(strings.ToLower(item.Name), q) ||
			strings.Contains(strings.ToLower(item.Category), q) ||
			strings.Contains(strings.ToLower(item.Notes), q) {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *memStore) ListMovementsByItem(ctx context.Context, itemID string) ([]Movement, error) {
	var movements []Movement
	for _, m := range s.movements {
		if m.InventoryID == itemID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *memStore) ListMovementsByCase(ctx context.Context, caseID string) ([]Movement, error) {
	var movements []Movement
	for _, m := range s.movements {
		if m.CaseID != nil && *m.CaseID == caseID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *memStore) GetReservation(ctx context.Context, reservationID string) (*Reservation, error) {
	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *memStore) GetStockTake(ctx context.Context, stockTakeID string) (*StockTake, error) {
	st, ok := s.stockTakes[stockTakeID]
	if !ok {
		return nil, ErrStockTakeNotFound
	}
	copied := *st
	return &copied, nil
}

func (s *memStore) ListStockTakes(ctx context.Context) ([]StockTake, error) {
	var stockTakes []StockTake
	for _, st := range s.stockTakes {
		stockTakes = append(stockTakes, *st)
	}
	sort.Slice(stockTakes, func(i, j int) bool {
		return stockTakes[i].CreatedAt.After(stockTakes[j].CreatedAt)
	})
	return stockTakes, nil
}

func (s *memStore) ListStockTakeItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error) {
	var lines []StockTakeItem
	for _, line := range s.stockTakeItems[stockTakeID] {
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].InventoryID < lines[j].InventoryID })
	return lines, nil
}

func (s *memStore) CreateItem(ctx context.Context, item *Item) error {
	if _, ok := s.items[item.ID]; ok {
		return ErrDuplicateItem
	}
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *memStore) ArchiveItem(ctx context.Context, itemID string) error {
	item, ok := s.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if item.ArchivedAt == nil {
		now := time.Now()
		item.ArchivedAt = &now
	}
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close() error                   { return nil }

// memTx はmemStoreに直接書き込むTx実装。
// ロールバックはWithinTxのスナップショット復元で行う。
type memTx struct {
	s *memStore
}

var _ Tx = (*memTx)(nil)

func (t *memTx) GetItemForUpdate(ctx context.Context, itemID string) (*Item, error) {
	return t.s.GetItem(ctx, itemID)
}

func (t *memTx) ApplyDelta(ctx context.Context, itemID string, quantityDelta, reservedDelta int64) (*Item, error) {
	item, ok := t.s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	newStock := item.StockQuantity + quantityDelta
	newReserved := item.ReservedQuantity + reservedDelta
	if newStock < 0 || newReserved < 0 || newStock < newReserved {
		return nil, ErrNegativeQuantity
	}
	item.StockQuantity = newStock
	item.ReservedQuantity = newReserved
	item.UpdatedAt = time.Now()
	copied := *item
	return &copied, nil
}

func (t *memTx) AppendMovement(ctx context.Context, m *Movement) error {
	t.s.movements = append(t.s.movements, *m)
	return nil
}

func (t *memTx) CreateReservation(ctx context.Context, r *Reservation) error {
	copied := *r
	t.s.reservations[r.ID] = &copied
	return nil
}

func (t *memTx) GetReservationForUpdate(ctx context.Context, reservationID string) (*Reservation, error) {
	return t.s.GetReservation(ctx, reservationID)
}

func (t *memTx) CloseReservation(ctx context.Context, reservationID string, status ReservationStatus, caseID *string, closedAt time.Time) error {
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	r.Status = status
	if caseID != nil {
		r.CaseID = caseID
	}
	r.ClosedAt = &closedAt
	return nil
}

func (t *memTx) LockOpenStockTakes(ctx context.Context) ([]string, error) {
	var ids []string
	for id, st := range t.s.stockTakes {
		if st.Status == StockTakeStatusInProgress {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) CreateStockTake(ctx context.Context, st *StockTake) error {
	copied := *st
	t.s.stockTakes[st.ID] = &copied
	t.s.stockTakeItems[st.ID] = make(map[string]*StockTakeItem)
	return nil
}

func (t *memTx) SnapshotItems(ctx context.Context, stockTakeID string, at time.Time) (int, error) {
	count := 0
	for id, item := range t.s.items {
		if item.IsArchived() {
			continue
		}
		t.s.stockTakeItems[stockTakeID][id] = &StockTakeItem{
			StockTakeID:    stockTakeID,
			InventoryID:    id,
			SystemQuantity: item.StockQuantity,
		}
		count++
	}
	return count, nil
}

func (t *memTx) GetStockTakeForUpdate(ctx context.Context, stockTakeID string) (*StockTake, error) {
	return t.s.GetStockTake(ctx, stockTakeID)
}

func (t *memTx) SetPhysicalCount(ctx context.Context, stockTakeID, inventoryID string, physical int64, notes string, at time.Time) (*StockTakeItem, error) {
	line, ok := t.s.stockTakeItems[stockTakeID][inventoryID]
	if !ok {
		return nil, ErrStockTakeItemNotFound
	}
	diff := physical - line.SystemQuantity
	line.PhysicalQuantity = &physical
	line.Difference = &diff
	line.Notes = notes
	line.UpdatedAt = &at
	copied := *line
	return &copied, nil
}

func (t *memTx) ListCountedItems(ctx context.Context, stockTakeID string) ([]StockTakeItem, error) {
	var lines []StockTakeItem
	for _, line := range t.s.stockTakeItems[stockTakeID] {
		if line.IsCounted() {
			lines = append(lines, *line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].InventoryID < lines[j].InventoryID })
	return lines, nil
}

func (t *memTx) SetStockTakeStatus(ctx context.Context, stockTakeID string, status StockTakeStatus, completedAt *time.Time) error {
	st, ok := t.s.stockTakes[stockTakeID]
	if !ok {
		return ErrStockTakeNotFound
	}
	st.Status = status
	st.CompletedAt = completedAt
	return nil
}
