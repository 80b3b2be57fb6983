package domain

const (
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

type Seller struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Password string `db:"password" json:"-"`
	Role     string `db:"role" json:"role"`
}

// Identity is the authenticated view of a seller bound to a session.
type Identity struct {
	ID   int64  `db:"seller_id" json:"id"`
	Name string `db:"name" json:"name"`
	Role string `db:"role" json:"role"`
}
