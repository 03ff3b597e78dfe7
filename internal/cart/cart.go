package cart

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/storefront-api/internal/types"
	"github.com/ksred/storefront-api/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrInvalidLine = errors.New("cart line requires a product ID, quantity >= 1 and price >= 0")
)

// Service handles cart mutations for a user's session
type Service struct {
	db *Database
}

// NewService creates a new cart service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Get returns the user's current lines; an absent cart is an empty cart
func (s *Service) Get(userID string) (types.LineItems, error) {
	c, err := s.db.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return types.LineItems{}, nil
	}
	return c.Lines, nil
}

// AddLine adds a line to the user's cart, merging quantities when the product
// is already present
func (s *Service) AddLine(userID string, line types.CartLine) (types.LineItems, error) {
	if line.ProductID == "" || line.Quantity < 1 || line.UnitPriceMinorUnits < 0 {
		return nil, ErrInvalidLine
	}

	c, err := s.db.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &Cart{
			UserID:    userID,
			CreatedAt: time.Now(),
		}
	}

	merged := false
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		c.Lines = append(c.Lines, line)
	}

	c.UpdatedAt = time.Now()
	if err := s.db.Save(c); err != nil {
		return nil, err
	}
	return c.Lines, nil
}

// RemoveLine drops a product from the user's cart; removing an absent product
// is a no-op
func (s *Service) RemoveLine(userID, productID string) (types.LineItems, error) {
	c, err := s.db.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return types.LineItems{}, nil
	}

	kept := c.Lines[:0]
	for _, line := range c.Lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	c.Lines = kept
	c.UpdatedAt = time.Now()

	if err := s.db.Save(c); err != nil {
		return nil, err
	}
	return c.Lines, nil
}

// Clear destroys the user's cart
func (s *Service) Clear(userID string) error {
	return s.db.DeleteByUser(userID)
}

// GinHandlers contains HTTP handlers for cart endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for cart endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetCartHandler handles GET requests for the current cart contents
func (h *GinHandlers) GetCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		lines, err := h.service.Get(userID)
		response.Handle(c, lines, err)
	}
}

// AddItemHandler handles POST requests to add a line to the cart
// Request body is a single cart line
func (h *GinHandlers) AddItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var line types.CartLine
		if err := c.ShouldBindJSON(&line); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		lines, err := h.service.AddLine(userID, line)
		if errors.Is(err, ErrInvalidLine) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, lines, err)
	}
}

// RemoveItemHandler handles DELETE requests for a single cart line
// URL parameter: product_id
func (h *GinHandlers) RemoveItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		lines, err := h.service.RemoveLine(userID, c.Param("product_id"))
		response.Handle(c, lines, err)
	}
}

// ClearCartHandler handles DELETE requests to empty the cart
func (h *GinHandlers) ClearCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		if err := h.service.Clear(userID); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"cleared": true})
	}
}
