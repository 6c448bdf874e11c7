package stock

import (
	"errors"
	"fmt"
)

// Common stock control errors
// 共通の在庫制御エラー定義

var (
	// ErrItemNotFound is returned when an item doesn't exist
	// 商品が存在しない場合のエラー
	ErrItemNotFound = errors.New("商品が見つかりません")

	// ErrReservationNotFound is returned when a reservation doesn't exist
	// 予約が存在しない場合のエラー
	ErrReservationNotFound = errors.New("予約が見つかりません")

	// ErrStockTakeNotFound is returned when a stock take session doesn't exist
	// 棚卸セッションが存在しない場合のエラー
	ErrStockTakeNotFound = errors.New("棚卸セッションが見つかりません")

	// ErrStockTakeItemNotFound is returned when an item is not part of the snapshot
	// 商品が棚卸スナップショットに含まれない場合のエラー
	ErrStockTakeItemNotFound = errors.New("棚卸明細が見つかりません")

	// ErrInsufficientStock is returned when a reserve exceeds the available quantity
	// 予約数量が販売可能数量を超える場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrNegativeQuantity is returned when an operation would drive on-hand or reserved below zero
	// 実在庫または予約済み数量が負になる操作のエラー
	ErrNegativeQuantity = errors.New("数量を負にする操作は許可されていません")

	// ErrAlreadyReleased is returned on a double release of the same reservation
	// 同一予約の二重解除のエラー
	ErrAlreadyReleased = errors.New("予約は既に解除されています")

	// ErrInvalidReservationState is returned when a reservation is not in the required state
	// 予約が要求された状態にない場合のエラー
	ErrInvalidReservationState = errors.New("予約の状態が不正です")

	// ErrSessionLimitExceeded is returned when the in-progress stock take cap is reached
	// 実施中の棚卸セッション数が上限に達している場合のエラー
	ErrSessionLimitExceeded = errors.New("実施中の棚卸セッション数が上限に達しています")

	// ErrInvalidTransition is returned when mutating a stock take that is not in progress
	// 終端状態の棚卸セッションを変更しようとした場合のエラー
	ErrInvalidTransition = errors.New("棚卸セッションの状態遷移が不正です")

	// ErrDuplicateItem is returned when trying to create an item that already exists
	// 既に存在する商品を作成しようとした場合のエラー
	ErrDuplicateItem = errors.New("商品は既に存在します")

	// ErrLedgerInconsistent is returned when replaying the ledger does not reproduce the live quantity
	// 台帳の再生結果が現在数量と一致しない場合のエラー
	ErrLedgerInconsistent = errors.New("台帳の再生結果が現在数量と一致しません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsDomainError reports whether err is one of the typed business failures
// (as opposed to a storage or validation failure)
// errが業務上の失敗（ストレージ・バリデーション以外）かどうかを判定
func IsDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrStockTakeNotFound),
		errors.Is(err, ErrStockTakeItemNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrNegativeQuantity),
		errors.Is(err, ErrAlreadyReleased),
		errors.Is(err, ErrInvalidReservationState),
		errors.Is(err, ErrSessionLimitExceeded),
		errors.Is(err, ErrInvalidTransition):
		return true
	}
	return false
}
