package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/backoffice/internal/order/domain"
)

type listOrdersQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Page   string `form:"page"`
	Limit  string `form:"limit"`
}

func (q listOrdersQuery) toRequest() (orderdomain.ListRequest, error) {
	page, err := parsePagination(q.Page, q.Limit)
	if err != nil {
		return orderdomain.ListRequest{}, err
	}
	return orderdomain.ListRequest{
		Status: strings.TrimSpace(q.Status),
		Search: strings.TrimSpace(q.Search),
		Page:   page.Page,
		Limit:  page.Limit,
	}, nil
}

func (s *Server) PlaceOrder(c *gin.Context) {
	var req orderdomain.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Place(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("order_id", resp.ID)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListMyOrders(c *gin.Context) {
	req, ok := bindListOrders(c)
	if !ok {
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAllOrders(c *gin.Context) {
	req, ok := bindListOrders(c)
	if !ok {
		return
	}

	resp, err := s.orderSvc.ListAll(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func bindListOrders(c *gin.Context) (orderdomain.ListRequest, bool) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return orderdomain.ListRequest{}, false
	}
	req, err := query.toRequest()
	if err != nil {
		AbortWithError(c, err)
		return orderdomain.ListRequest{}, false
	}
	return req, true
}

// GetOrder returns an order the caller owns; admins may read any order.
func (s *Server) GetOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)

	resp, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	var req orderdomain.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)

	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
