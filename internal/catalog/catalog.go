package catalog

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/storefront-api/internal/types"
	"github.com/ksred/storefront-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles product catalog lookups
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ListProducts returns all active catalog products
func (s *Service) ListProducts() ([]Product, error) {
	return s.db.ListActiveProducts()
}

// GetProduct retrieves a product by its ID, nil if unknown
func (s *Service) GetProduct(productID string) (*Product, error) {
	return s.db.GetProduct(productID)
}

// PriceLines re-derives name and unit price from the catalog for every line
// whose product is known. Client-supplied prices are only kept for products
// the catalog has never heard of, so a tampered cart cannot discount a listed
// product.
func (s *Service) PriceLines(lines []types.CartLine) ([]types.CartLine, error) {
	priced := make([]types.CartLine, 0, len(lines))
	for _, line := range lines {
		product, err := s.db.GetProduct(line.ProductID)
		if err != nil {
			return nil, err
		}
		if product != nil {
			line.Name = product.Name
			line.UnitPriceMinorUnits = product.UnitPriceMinorUnits
		}
		priced = append(priced, line)
	}
	return priced, nil
}

// GinHandlers contains HTTP handlers for catalog endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for catalog endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListProductsHandler handles GET requests for the product listing
func (h *GinHandlers) ListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := h.service.ListProducts()
		response.Handle(c, products, err)
	}
}

// GetProductHandler handles GET requests for a single product
// URL parameter: product_id
func (h *GinHandlers) GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("product_id")
		if productID == "" {
			response.BadRequest(c, "Product ID is required")
			return
		}

		product, err := h.service.GetProduct(productID)
		if err != nil || product == nil {
			response.NotFound(c, "Product not found")
			return
		}

		response.Success(c, product)
	}
}
