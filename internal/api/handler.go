package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"posdesk/m/domain"
	"posdesk/m/internal/report"
	"posdesk/m/internal/session"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

const dateLayout = "2006-01-02"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	sessions *session.Store
	log      *logrus.Logger
	cookie   string
	loc      *time.Location
	static   string
}

// Options carries the deployment knobs the handlers need.
type Options struct {
	CookieName string
	Location   *time.Location
	StaticDir  string
}

// New constructs a Handler.
func New(db *sqlx.DB, sessions *session.Store, log *logrus.Logger, opts Options) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	cookie := opts.CookieName
	if cookie == "" {
		cookie = "posdesk_session"
	}
	return &Handler{db: db, sessions: sessions, log: log, cookie: cookie, loc: loc, static: opts.StaticDir}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // Change "*" to a list of allowed domains (e.g., ["http://localhost:3000"])
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.sessionMiddleware)

	r.Post("/api/login", h.login)
	r.Post("/api/logout", h.logout)

	r.Get("/api/products", h.listProducts)
	r.Post("/api/products", h.upsertProduct)
	r.Delete("/api/products/{id}", h.deleteProduct)

	r.Post("/api/sales", h.recordSale)
	r.Get("/api/sales", h.querySales)
	r.Get("/api/sales-export.xlsx", h.exportSales)

	r.Get("/api/inventory-fill", h.inventoryFill)
	r.Post("/api/inventory", h.submitInventory)
	r.Get("/api/inventory-all.xlsx", h.exportInventory)

	if h.static != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.static)))
	}

	return r
}

// Authentication helpers

// CanAccess reports whether an identity may use an endpoint gated on role.
// An empty role admits any authenticated identity; otherwise the session
// role must match exactly. Flat two-tier model, no hierarchy.
func CanAccess(id *domain.Identity, role string) bool {
	if id == nil {
		return false
	}
	return role == "" || id.Role == role
}

func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(h.cookie); err == nil && cookie.Value != "" {
			id, err := h.sessions.Get(cookie.Value)
			if err != nil {
				h.log.WithFields(logrus.Fields{"module": "api", "op": "session.get"}).Error(err.Error())
			} else if id != nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxIdentity, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromContext(r *http.Request) *domain.Identity {
	id, _ := r.Context().Value(ctxIdentity).(*domain.Identity)
	return id
}

// authorize resolves the request's identity and enforces the role gate,
// writing the 401 itself. A nil return means the response is already sent.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, role string) *domain.Identity {
	id := identityFromContext(r)
	if !CanAccess(id, role) {
		respondError(w, http.StatusUnauthorized, "not enough permissions")
		return nil
	}
	return id
}

// Auth handlers

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var seller domain.Seller
	err := h.db.Get(&seller, `SELECT id, name, password, role FROM sellers WHERE name = ?`, req.Name)
	if errors.Is(err, sql.ErrNoRows) {
		// Same message as a wrong password; callers cannot probe names.
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.storeError(w, "login", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(seller.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	identity := domain.Identity{ID: seller.ID, Name: seller.Name, Role: seller.Role}
	token, err := h.sessions.Create(identity)
	if err != nil {
		h.storeError(w, "login", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(session.TTL.Seconds()),
	})
	respondJSON(w, http.StatusOK, identity)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie); err == nil && cookie.Value != "" {
		if err := h.sessions.Destroy(cookie.Value); err != nil {
			h.log.WithFields(logrus.Fields{"module": "api", "op": "logout"}).Error(err.Error())
		}
	}
	http.SetCookie(w, &http.Cookie{Name: h.cookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Product handlers

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, "") == nil {
		return
	}
	products := []domain.Product{}
	if err := h.db.Select(&products, `SELECT id, name, price FROM products ORDER BY name`); err != nil {
		h.storeError(w, "listProducts", err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

type productRequest struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, domain.RoleAdmin) == nil {
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.ID > 0 {
		_, err := h.db.Exec(`UPDATE products SET name = ?, price = ? WHERE id = ?`, req.Name, req.Price, req.ID)
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "product name already exists")
			return
		}
		if err != nil {
			h.storeError(w, "upsertProduct", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	res, err := h.db.Exec(`INSERT INTO products (name, price) VALUES (?, ?)`, req.Name, req.Price)
	if isUniqueViolation(err) {
		respondError(w, http.StatusConflict, "product name already exists")
		return
	}
	if err != nil {
		h.storeError(w, "upsertProduct", err)
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		h.storeError(w, "upsertProduct", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, domain.RoleAdmin) == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	// Historical sales and inventory keep their product references; a
	// referenced product cannot be deleted.
	var referenced bool
	err = h.db.Get(&referenced,
		`SELECT EXISTS(SELECT 1 FROM sales WHERE product_id = ?) OR EXISTS(SELECT 1 FROM inventory WHERE product_id = ?)`,
		id, id)
	if err != nil {
		h.storeError(w, "deleteProduct", err)
		return
	}
	if referenced {
		respondError(w, http.StatusConflict, "product is referenced by sales or inventory history")
		return
	}

	if _, err := h.db.Exec(`DELETE FROM products WHERE id = ?`, id); err != nil {
		h.storeError(w, "deleteProduct", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Sales handlers

type saleItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type saleRequest struct {
	Items []saleItemRequest `json:"items"`
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, "")
	if id == nil {
		return
	}
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "no items in sale")
		return
	}
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			respondError(w, http.StatusBadRequest, "every item needs a product_id and a positive quantity")
			return
		}
	}

	// One timestamp for the whole checkout.
	saleTime := time.Now().UTC().Format(time.RFC3339)

	tx, err := h.db.Beginx()
	if err != nil {
		h.storeError(w, "recordSale", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO sales (seller_id, product_id, quantity, sale_time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		h.storeError(w, "recordSale", err)
		return
	}
	defer stmt.Close()

	for _, item := range req.Items {
		if _, err := stmt.Exec(id.ID, item.ProductID, item.Quantity, saleTime); err != nil {
			h.storeError(w, "recordSale", err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.storeError(w, "recordSale", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type saleReportRow struct {
	Point    string `db:"point" json:"point"`
	Product  string `db:"product" json:"product"`
	Quantity int64  `db:"quantity" json:"quantity"`
	Price    int64  `db:"price" json:"price"`
	Sum      int64  `db:"sum" json:"sum"`
	SaleTime string `db:"sale_time" json:"time"`
}

var errInvalidDate = errors.New("date must be in YYYY-MM-DD format")

func (h *Handler) querySales(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, domain.RoleAdmin) == nil {
		return
	}
	rows, err := h.salesRows(r.URL.Query().Get("seller_id"), r.URL.Query().Get("date"), true)
	if errors.Is(err, errInvalidDate) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.storeError(w, "querySales", err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// salesRows runs the joined sales query shared by the admin listing and the
// spreadsheet export. Sale times come back rendered in the display zone.
func (h *Handler) salesRows(sellerID, date string, newestFirst bool) ([]saleReportRow, error) {
	query := `SELECT s.name AS point, p.name AS product, sa.quantity, p.price,
	       (p.price * sa.quantity) AS sum, sa.sale_time
	FROM sales sa
	JOIN sellers s ON s.id = sa.seller_id
	JOIN products p ON p.id = sa.product_id`

	var (
		cond []string
		args []any
	)
	if sellerID != "" {
		cond = append(cond, "sa.seller_id = ?")
		args = append(args, sellerID)
	}
	if date != "" {
		start, end, err := h.dayBounds(date)
		if err != nil {
			return nil, err
		}
		cond = append(cond, "sa.sale_time >= ?", "sa.sale_time < ?")
		args = append(args, start, end)
	}
	if len(cond) > 0 {
		query += " WHERE " + strings.Join(cond, " AND ")
	}
	if newestFirst {
		query += " ORDER BY sa.sale_time DESC"
	} else {
		query += " ORDER BY sa.sale_time"
	}

	rows := []saleReportRow{}
	if err := h.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].SaleTime = h.displayTime(rows[i].SaleTime)
	}
	return rows, nil
}

// dayBounds converts a calendar date in the display zone into the UTC
// half-open interval [start, end) that sale_time values fall into.
func (h *Handler) dayBounds(date string) (string, string, error) {
	day, err := time.ParseInLocation(dateLayout, date, h.loc)
	if err != nil {
		return "", "", errInvalidDate
	}
	start := day.UTC().Format(time.RFC3339)
	end := day.AddDate(0, 0, 1).UTC().Format(time.RFC3339)
	return start, end, nil
}

func (h *Handler) displayTime(stored string) string {
	t, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		return stored
	}
	return t.In(h.loc).Format("2006-01-02 15:04:05")
}

var salesColumns = []report.Column{
	{Header: "Seller", Key: "seller", Width: 20},
	{Header: "Product", Key: "product", Width: 25},
	{Header: "Quantity", Key: "quantity", Width: 10},
	{Header: "Price", Key: "price", Width: 10},
	{Header: "Sum", Key: "sum", Width: 12},
	{Header: "Time", Key: "time", Width: 20},
}

func (h *Handler) exportSales(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, domain.RoleAdmin) == nil {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}
	rows, err := h.salesRows("", date, false)
	if errors.Is(err, errInvalidDate) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.storeError(w, "exportSales", err)
		return
	}

	data := make([]map[string]any, len(rows))
	for i, row := range rows {
		data[i] = map[string]any{
			"seller":   row.Point,
			"product":  row.Product,
			"quantity": row.Quantity,
			"price":    row.Price,
			"sum":      row.Sum,
			"time":     row.SaleTime,
		}
	}

	f, err := report.Build("Sales", salesColumns, data, &report.Totals{SumKey: "sum", LabelKey: "time"})
	if err != nil {
		h.storeError(w, "exportSales", err)
		return
	}
	defer f.Close()
	h.streamWorkbook(w, f, "sales-"+date+".xlsx", "exportSales")
}

// Inventory handlers

type inventoryFillRow struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	OpeningBalance *int64 `db:"opening_balance" json:"opening_balance"`
	Receipt        *int64 `db:"receipt" json:"receipt"`
	Transfer       *int64 `db:"transfer" json:"transfer"`
	WriteOff       *int64 `db:"write_off" json:"write_off"`
	ClosingBalance *int64 `db:"closing_balance" json:"closing_balance"`
}

func (h *Handler) inventoryFill(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, "")
	if id == nil {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	// Every catalog product appears; null fields mean "not yet entered"
	// for that day, as opposed to an entered zero.
	rows := []inventoryFillRow{}
	err := h.db.Select(&rows, `
	SELECT p.id, p.name,
	       i.opening_balance, i.receipt, i.transfer, i.write_off, i.closing_balance
	FROM products p
	LEFT JOIN inventory i
	  ON i.product_id = p.id AND i.seller_id = ? AND i.date = ?
	ORDER BY p.name`, id.ID, date)
	if err != nil {
		h.storeError(w, "inventoryFill", err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type inventoryRowRequest struct {
	ProductID int64  `json:"product_id"`
	Opening   *int64 `json:"opening"`
	Receipt   *int64 `json:"receipt"`
	Transfer  *int64 `json:"transfer"`
	WriteOff  *int64 `json:"write_off"`
	Closing   *int64 `json:"closing"`
}

type inventoryRequest struct {
	Date string                `json:"date"`
	Rows []inventoryRowRequest `json:"rows"`
}

func (h *Handler) submitInventory(w http.ResponseWriter, r *http.Request) {
	id := h.authorize(w, r, "")
	if id == nil {
		return
	}
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Date == "" || req.Rows == nil {
		respondError(w, http.StatusBadRequest, "date and rows are required")
		return
	}
	for _, row := range req.Rows {
		if row.ProductID <= 0 {
			respondError(w, http.StatusBadRequest, "every row needs a product_id")
			return
		}
	}

	tx, err := h.db.Beginx()
	if err != nil {
		h.storeError(w, "submitInventory", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`
	INSERT INTO inventory (seller_id, product_id, date, opening_balance, receipt, transfer, write_off, closing_balance)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(seller_id, product_id, date)
	DO UPDATE SET
	  opening_balance = excluded.opening_balance,
	  receipt = excluded.receipt,
	  transfer = excluded.transfer,
	  write_off = excluded.write_off,
	  closing_balance = excluded.closing_balance`)
	if err != nil {
		h.storeError(w, "submitInventory", err)
		return
	}
	defer stmt.Close()

	for _, row := range req.Rows {
		_, err := stmt.Exec(id.ID, row.ProductID, req.Date,
			zeroIfNil(row.Opening), zeroIfNil(row.Receipt), zeroIfNil(row.Transfer),
			zeroIfNil(row.WriteOff), zeroIfNil(row.Closing))
		if err != nil {
			h.storeError(w, "submitInventory", err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.storeError(w, "submitInventory", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type inventoryReportRow struct {
	Seller         string `db:"seller"`
	Product        string `db:"product"`
	OpeningBalance int64  `db:"opening_balance"`
	Receipt        int64  `db:"receipt"`
	Transfer       int64  `db:"transfer"`
	WriteOff       int64  `db:"write_off"`
	ClosingBalance int64  `db:"closing_balance"`
}

var inventoryColumns = []report.Column{
	{Header: "Seller", Key: "seller", Width: 20},
	{Header: "Product", Key: "product", Width: 25},
	{Header: "Opening balance", Key: "opening_balance", Width: 12},
	{Header: "Receipt", Key: "receipt", Width: 10},
	{Header: "Transfer", Key: "transfer", Width: 12},
	{Header: "Write-off", Key: "write_off", Width: 10},
	{Header: "Closing balance", Key: "closing_balance", Width: 12},
}

func (h *Handler) exportInventory(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, domain.RoleAdmin) == nil {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	rows := []inventoryReportRow{}
	err := h.db.Select(&rows, `
	SELECT s.name AS seller, p.name AS product,
	       i.opening_balance, i.receipt, i.transfer, i.write_off, i.closing_balance
	FROM inventory i
	JOIN sellers s ON s.id = i.seller_id
	JOIN products p ON p.id = i.product_id
	WHERE i.date = ?
	ORDER BY s.name, p.name`, date)
	if err != nil {
		h.storeError(w, "exportInventory", err)
		return
	}

	data := make([]map[string]any, len(rows))
	for i, row := range rows {
		data[i] = map[string]any{
			"seller":          row.Seller,
			"product":         row.Product,
			"opening_balance": row.OpeningBalance,
			"receipt":         row.Receipt,
			"transfer":        row.Transfer,
			"write_off":       row.WriteOff,
			"closing_balance": row.ClosingBalance,
		}
	}

	f, err := report.Build("Inventory", inventoryColumns, data, nil)
	if err != nil {
		h.storeError(w, "exportInventory", err)
		return
	}
	defer f.Close()
	h.streamWorkbook(w, f, "inventory-"+date+".xlsx", "exportInventory")
}

// Helpers

func (h *Handler) streamWorkbook(w http.ResponseWriter, f *excelize.File, filename, op string) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		// Headers are gone by now; all we can do is log the broken stream.
		h.log.WithFields(logrus.Fields{"module": "api", "op": op}).Error(err.Error())
	}
}

func zeroIfNil(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	h.log.WithFields(logrus.Fields{"module": "api", "op": op}).Error(err.Error())
	respondError(w, http.StatusInternalServerError, "store error")
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
