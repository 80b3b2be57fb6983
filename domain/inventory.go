package domain

// InventoryEntry is the daily reconciliation row, unique per
// (seller_id, product_id, date). Resubmitting a day overwrites the five
// numeric fields in place.
type InventoryEntry struct {
	ID             int64  `db:"id" json:"id"`
	SellerID       int64  `db:"seller_id" json:"seller_id"`
	ProductID      int64  `db:"product_id" json:"product_id"`
	Date           string `db:"date" json:"date"`
	OpeningBalance int64  `db:"opening_balance" json:"opening_balance"`
	Receipt        int64  `db:"receipt" json:"receipt"`
	Transfer       int64  `db:"transfer" json:"transfer"`
	WriteOff       int64  `db:"write_off" json:"write_off"`
	ClosingBalance int64  `db:"closing_balance" json:"closing_balance"`
}
