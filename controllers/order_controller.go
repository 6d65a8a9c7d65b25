package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// PlaceOrder takes the user from the body. When the request is also
// authenticated the body may omit it, and must not name another user.
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "create")

	var req models.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := req.UserID
	if tokenUser, ok := middlewares.UserID(c); ok {
		if userID != 0 && userID != tokenUser {
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot place an order for another user"})
			return
		}
		userID = tokenUser
	}
	if userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	placed, err := oc.orders.PlaceOrder(c.Request.Context(), userID, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Order placed successfully",
		"order_id":    placed.OrderID,
		"total_price": placed.TotalPrice,
	})
}

func (oc *OrderController) GetUserOrders(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "list")

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := oc.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetOrderDetails(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "details")

	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id", "Invalid order ID")
	if !ok {
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "cancel")

	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id", "Invalid order ID")
	if !ok {
		return
	}

	if err := oc.orders.CancelOrder(c.Request.Context(), userID, orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully"})
}
