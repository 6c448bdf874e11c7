package stock

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var itemIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateItemID 商品IDの形式をバリデーション
func ValidateItemID(itemID string) error {
	if itemID == "" {
		return NewValidationError("item_id", "商品IDが空です", itemID)
	}
	if len(itemID) > 255 {
		return NewValidationError("item_id", "商品IDが長すぎます", itemID)
	}
	// 英数字、ハイフン、アンダースコアのみ許可
	if !itemIDPattern.MatchString(itemID) {
		return NewValidationError("item_id", "商品IDに無効な文字が含まれています", itemID)
	}
	return nil
}

// ValidateRef 予約ID・棚卸IDなどUUID参照をバリデーション
func ValidateRef(field, ref string) error {
	if ref == "" {
		return NewValidationError(field, "参照IDが空です", ref)
	}
	if _, err := uuid.Parse(ref); err != nil {
		return NewValidationError(field, "参照IDの形式が不正です", ref)
	}
	return nil
}

// ValidateQuantity 数量をバリデーション（予約・実地数量は0以上）
func ValidateQuantity(quantity int64) error {
	if quantity < 0 {
		return NewValidationError("quantity", "負の数量は許可されていません", fmt.Sprintf("%d", quantity))
	}
	if quantity > 999999999 {
		return NewValidationError("quantity", "数量が有効範囲を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}

// ValidateDelta 調整量をバリデーション（符号付き）
func ValidateDelta(delta int64) error {
	if delta < -999999999 || delta > 999999999 {
		return NewValidationError("delta", "調整量が有効範囲を超えています", fmt.Sprintf("%d", delta))
	}
	return nil
}

// ValidateReason 理由をバリデーション
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "理由が空です", reason)
	}
	if len(reason) > 500 {
		return NewValidationError("reason", "理由が長すぎます", reason)
	}
	return nil
}

// ValidateActor 実行者識別子をバリデーション（内容は不透明な参照として扱う）
func ValidateActor(field, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return NewValidationError(field, "実行者が空です", actor)
	}
	if len(actor) > 255 {
		return NewValidationError(field, "実行者が長すぎます", actor)
	}
	return nil
}

// ValidateCaseID 案件参照をバリデーション（任意・不透明な参照）
func ValidateCaseID(caseID string) error {
	if caseID == "" {
		return nil // 案件参照は任意
	}
	if len(caseID) > 255 {
		return NewValidationError("case_id", "案件参照が長すぎます", caseID)
	}
	return nil
}

// ValidateNotes メモをバリデーション
func ValidateNotes(notes string) error {
	if notes == "" {
		return nil // メモは任意
	}
	if len(notes) > 2000 {
		return NewValidationError("notes", "メモが長すぎます", notes)
	}
	return nil
}

// ValidateItemName 商品名をバリデーション
func ValidateItemName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "商品名が空です", name)
	}
	if len(name) > 500 {
		return NewValidationError("name", "商品名が長すぎます", name)
	}
	return nil
}

// ValidateUnitPrice 単価をバリデーション
func ValidateUnitPrice(unitPrice float64) error {
	if unitPrice < 0 {
		return NewValidationError("unit_price", "単価は0以上である必要があります", fmt.Sprintf("%.2f", unitPrice))
	}
	if unitPrice > 99999999.99 {
		return NewValidationError("unit_price", "単価が有効範囲を超えています", fmt.Sprintf("%.2f", unitPrice))
	}
	return nil
}
