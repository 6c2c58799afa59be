package handler

import (
	"context"

	catalogapp "github.com/backoffice/saas/internal/application/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductHandler handles product-related API endpoints
type ProductHandler struct {
	BaseHandler
	productService *catalogapp.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService *catalogapp.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// Create godoc
// @Summary      Create a draft product
// @Tags         products
// @Router       /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req catalogapp.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.productService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// List godoc
// @Summary      List products
// @Tags         products
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter catalogapp.ProductListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	products, total, err := h.productService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, products, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get a product
// @Tags         products
// @Router       /products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	h.withProduct(c, h.productService.GetByID)
}

// Update godoc
// @Summary      Update a product
// @Tags         products
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	var req catalogapp.UpdateProductRequest
	h.withProductBody(c, &req, func(ctx context.Context, tenantID, id uuid.UUID) (*catalogapp.ProductResponse, error) {
		return h.productService.Update(ctx, tenantID, id, req)
	})
}

// Publish godoc
// @Router       /products/{id}/publish [post]
func (h *ProductHandler) Publish(c *gin.Context) {
	h.withProduct(c, h.productService.Publish)
}

// Archive godoc
// @Router       /products/{id}/archive [post]
func (h *ProductHandler) Archive(c *gin.Context) {
	h.withProduct(c, h.productService.Archive)
}

// AdjustStock godoc
// @Summary      Add or remove units
// @Tags         products
// @Router       /products/{id}/stock [post]
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	var req catalogapp.AdjustStockRequest
	h.withProductBody(c, &req, func(ctx context.Context, tenantID, id uuid.UUID) (*catalogapp.ProductResponse, error) {
		return h.productService.AdjustStock(ctx, tenantID, id, req)
	})
}

// SetGallery godoc
// @Summary      Replace the ordered gallery
// @Tags         products
// @Router       /products/{id}/gallery [put]
func (h *ProductHandler) SetGallery(c *gin.Context) {
	var req catalogapp.SetGalleryRequest
	h.withProductBody(c, &req, func(ctx context.Context, tenantID, id uuid.UUID) (*catalogapp.ProductResponse, error) {
		return h.productService.SetGallery(ctx, tenantID, id, req)
	})
}

// Delete godoc
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.productService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *ProductHandler) withProduct(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*catalogapp.ProductResponse, error)) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	product, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// withProductBody binds req before calling fn
func (h *ProductHandler) withProductBody(c *gin.Context, req any, fn func(context.Context, uuid.UUID, uuid.UUID) (*catalogapp.ProductResponse, error)) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if !h.bindJSON(c, req) {
		return
	}
	product, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
