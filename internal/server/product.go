package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
)

const (
	featuredProductsLimit = 8
	saleProductsLimit     = 8
	lowStockProductsLimit = 50
)

type listProductsQuery struct {
	Category string `form:"category"`
	Search   string `form:"search"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
	Featured string `form:"featured"`
	OnSale   string `form:"on_sale"`
	SortBy   string `form:"sort_by"`
	OrderBy  string `form:"order_by"`
	Page     string `form:"page"`
	Limit    string `form:"limit"`
}

func (q listProductsQuery) toRequest(includeInactive bool) (productdomain.ListRequest, error) {
	minPrice, err := parseOptionalDecimal(q.MinPrice)
	if err != nil {
		return productdomain.ListRequest{}, newValidationError("min_price", "invalid_min_price", "invalid min price")
	}
	maxPrice, err := parseOptionalDecimal(q.MaxPrice)
	if err != nil {
		return productdomain.ListRequest{}, newValidationError("max_price", "invalid_max_price", "invalid max price")
	}
	featured, err := parseOptionalBool(q.Featured)
	if err != nil {
		return productdomain.ListRequest{}, newValidationError("featured", "invalid_featured", "invalid featured")
	}
	onSale, err := parseOptionalBool(q.OnSale)
	if err != nil {
		return productdomain.ListRequest{}, newValidationError("on_sale", "invalid_on_sale", "invalid on sale")
	}
	page, err := parsePagination(q.Page, q.Limit)
	if err != nil {
		return productdomain.ListRequest{}, err
	}

	return productdomain.ListRequest{
		IncludeInactive: includeInactive,
		Category:        strings.TrimSpace(q.Category),
		Search:          strings.TrimSpace(q.Search),
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		Featured:        featured,
		OnSale:          onSale,
		SortBy:          strings.TrimSpace(q.SortBy),
		OrderBy:         strings.TrimSpace(q.OrderBy),
		Page:            page.Page,
		Limit:           page.Limit,
	}, nil
}

func (s *Server) ListProducts(c *gin.Context) {
	s.listProducts(c, false)
}

func (s *Server) ListAdminProducts(c *gin.Context) {
	s.listProducts(c, true)
}

func (s *Server) listProducts(c *gin.Context, includeInactive bool) {
	var query listProductsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := query.toRequest(includeInactive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFeaturedProducts(c *gin.Context) {
	resp, err := s.productSvc.ListFeatured(c.Request.Context(), featuredProductsLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSaleProducts(c *gin.Context) {
	resp, err := s.productSvc.ListOnSale(c.Request.Context(), saleProductsLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLowStockProducts(c *gin.Context) {
	resp, err := s.productSvc.ListLowStock(c.Request.Context(), lowStockProductsLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAdminProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.GetAny(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req productdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	var req productdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeleteProduct deactivates the product; order history keeps referencing it.
func (s *Server) DeleteProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.productSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
