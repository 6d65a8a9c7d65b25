package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"storefront/apperr"
	"storefront/database"
	"storefront/models"
)

var (
	ErrEmptyOrder      = apperr.Validation("Order must contain at least one item")
	ErrInvalidQuantity = apperr.Validation("Quantity must be at least 1")
	ErrOrderNotFound   = apperr.NotFound("Order not found")
)

// EventPublisher receives order lifecycle events once they are committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type OrderService struct {
	db     *sql.DB
	events EventPublisher
	now    func() time.Time
}

// NewOrderService builds the order workflow. events may be nil, in which case
// nothing is published.
func NewOrderService(db *sql.DB, events EventPublisher) *OrderService {
	return &OrderService{db: db, events: events, now: time.Now}
}

func productUnavailable(productID int) *apperr.Error {
	return apperr.Validation(fmt.Sprintf("Product %d not found", productID))
}

func insufficientStock(productID int) *apperr.Error {
	return apperr.Conflict(fmt.Sprintf("Product %d not available in requested quantity", productID)).
		WithStatus(http.StatusBadRequest)
}

// PlaceOrder creates a pending order for userID. Stock for every line is
// taken in the same transaction as the order rows, so either the whole order
// goes through or nothing changes.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int, lines []models.OrderLine) (*models.PlacedOrder, error) {
	if userID <= 0 {
		return nil, ErrMissingFields
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, ErrMissingFields
		}
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	var (
		orderID int
		total   decimal.Decimal
		items   []models.OrderItem
	)
	placedAt := s.now().UTC()

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("look up user %d: %w", userID, err)
		}

		items = make([]models.OrderItem, 0, len(lines))
		total = decimal.Zero
		for _, line := range lines {
			var price decimal.Decimal
			err := tx.QueryRowContext(ctx, `SELECT price FROM products WHERE id = ?`, line.ProductID).Scan(&price)
			if errors.Is(err, sql.ErrNoRows) {
				return productUnavailable(line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("read product %d: %w", line.ProductID, err)
			}

			// Check and decrement in one statement.
			res, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
				line.Quantity, line.ProductID, line.Quantity,
			)
			if err != nil {
				return fmt.Errorf("reserve stock for product %d: %w", line.ProductID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reserve stock for product %d: %w", line.ProductID, err)
			}
			if n == 0 {
				return insufficientStock(line.ProductID)
			}

			subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(subtotal)
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     price,
				Subtotal:  subtotal,
			})
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO orders (user_id, total_price, status, order_date) VALUES (?, ?, ?, ?)`,
			userID, total, models.OrderStatusPending, placedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID = int(id)

		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_at_time) VALUES (?, ?, ?, ?)`,
				orderID, item.ProductID, item.Quantity, item.Price,
			); err != nil {
				return fmt.Errorf("insert item for product %d: %w", item.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			log.Warn().Int("user_id", userID).Str("reason", appErr.Message).Msg("order rejected")
			return nil, appErr
		}
		return nil, apperr.Internal("Failed to place order", err)
	}

	log.Info().Int("order_id", orderID).Int("user_id", userID).Str("total", total.StringFixed(2)).Msg("order placed")

	s.publish(ctx, models.OrderEvent{
		OrderID:  orderID,
		UserID:   userID,
		Type:     models.EventOrderCreated,
		Status:   models.OrderStatusPending,
		Total:    total,
		Items:    items,
		Occurred: placedAt,
	})
	return &models.PlacedOrder{OrderID: orderID, TotalPrice: total}, nil
}

// CancelOrder moves a pending order owned by userID to cancelled and puts its
// stock back.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int) error {
	var (
		total decimal.Decimal
		items []models.OrderItem
	)

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status, total_price FROM orders WHERE id = ? AND user_id = ?`, orderID, userID,
		).Scan(&status, &total)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("load order %d: %w", orderID, err)
		}
		if status != models.OrderStatusPending {
			return cannotCancel(status)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
			models.OrderStatusCancelled, orderID, models.OrderStatusPending,
		)
		if err != nil {
			return fmt.Errorf("cancel order %d: %w", orderID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cancel order %d: %w", orderID, err)
		}
		if n == 0 {
			// Another request cancelled it after our read.
			return cannotCancel(models.OrderStatusCancelled)
		}

		items, err = queryItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock + ? WHERE id = ?`, item.Quantity, item.ProductID,
			); err != nil {
				return fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			log.Warn().Int("order_id", orderID).Int("user_id", userID).Str("reason", appErr.Message).Msg("cancellation rejected")
			return appErr
		}
		return apperr.Internal("Failed to cancel order", err)
	}

	log.Info().Int("order_id", orderID).Int("user_id", userID).Msg("order cancelled")

	s.publish(ctx, models.OrderEvent{
		OrderID:  orderID,
		UserID:   userID,
		Type:     models.EventOrderCancelled,
		Status:   models.OrderStatusCancelled,
		Total:    total,
		Items:    items,
		Occurred: s.now().UTC(),
	})
	return nil
}

func cannotCancel(status string) *apperr.Error {
	return apperr.Validation("Cannot cancel order with status: " + status)
}

// ListOrders returns the user's orders, newest first, each with its items.
func (s *OrderService) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, total_price, status, order_date
		FROM orders
		WHERE user_id = ?
		ORDER BY order_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch orders", err)
	}

	orders := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, apperr.Internal("Failed to fetch orders", err)
		}
		orders = append(orders, o)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, apperr.Internal("Failed to fetch orders", err)
	}

	for i := range orders {
		orders[i].Items, err = queryItems(ctx, s.db, orders[i].ID)
		if err != nil {
			return nil, apperr.Internal("Failed to fetch orders", err)
		}
	}
	return orders, nil
}

// GetOrder returns one of the user's orders with its items.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_price, status, order_date
		FROM orders
		WHERE id = ? AND user_id = ?
	`, orderID, userID).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch order", err)
	}

	o.Items, err = queryItems(ctx, s.db, o.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch order", err)
	}
	return &o, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryItems(ctx context.Context, q querier, orderID int) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, price_at_time
		FROM order_items
		WHERE order_id = ?
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan item of order %d: %w", orderID, err)
		}
		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items of order %d: %w", orderID, err)
	}
	return items, nil
}

func (s *OrderService) publish(ctx context.Context, event models.OrderEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		log.Error().Err(err).Int("order_id", event.OrderID).Str("type", event.Type).Msg("failed to publish order event")
	}
}
