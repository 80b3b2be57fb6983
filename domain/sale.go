package domain

type Sale struct {
	ID        int64  `db:"id" json:"id"`
	SellerID  int64  `db:"seller_id" json:"seller_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Quantity  int64  `db:"quantity" json:"quantity"`
	SaleTime  string `db:"sale_time" json:"sale_time"`
}
