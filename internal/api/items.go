package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"closet-service/internal/models"
	"closet-service/internal/service"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps CSV uploads.
const maxUploadBytes = 10 << 20

// itemFilter builds a filter from query parameters. Size parameters are only
// read when a category is given.
func itemFilter(c *gin.Context) (models.ItemFilter, error) {
	f := models.ItemFilter{
		Name:   c.Query("name"),
		Gender: c.Query("gender"),
		Brand:  c.Query("brand"),
		Colors: c.QueryArray("color"),
	}

	raw := c.Query("category")
	if raw == "" {
		return f, nil
	}
	category, err := models.ParseCategory(raw)
	if err != nil {
		return f, err
	}
	f.Category = category

	in := models.SizeInput{Size: c.Query("size")}
	in.Waist, _ = strconv.Atoi(c.Query("waist"))
	in.Length, _ = strconv.Atoi(c.Query("length"))
	in.Chest, _ = strconv.Atoi(c.Query("chest"))
	in.Sleeve, _ = strconv.Atoi(c.Query("sleeve"))
	if in.IsZero() {
		return f, nil
	}
	if f.Size, err = in.ToSize(category); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) listItems(c *gin.Context) {
	filter, err := itemFilter(c)
	if err != nil {
		badRequest(c, "Invalid item filter", err)
		return
	}

	items, err := h.svc.Items.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) searchItems(c *gin.Context) {
	items, err := h.svc.Items.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) getItem(c *gin.Context) {
	item, err := h.svc.Items.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) createItem(c *gin.Context) {
	var in service.CreateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.svc.Items.CreateItem(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) editItem(c *gin.Context) {
	var upd models.ItemUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.svc.Items.EditItem(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	if err := h.svc.Items.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteAllItems(c *gin.Context) {
	n, err := h.svc.Items.DeleteAllItems(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) deleteOutOfStock(c *gin.Context) {
	n, err := h.svc.Items.DeleteOutOfStock(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) importItems(c *gin.Context) {
	data, ok := uploadedCSV(c)
	if !ok {
		return
	}

	opts := service.ImportOptions{
		HasHeader: queryBool(c, "has_header"),
		WithIDs:   queryBool(c, "with_ids"),
	}
	n, err := h.svc.Items.ImportCSV(c.Request.Context(), data, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// uploadedCSV returns the "file" part of a multipart form, or the raw body
// for any other content type.
func uploadedCSV(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "A CSV file is required", err)
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "The uploaded file could not be read", err)
			return nil, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			badRequest(c, "The uploaded file could not be read", err)
			return nil, false
		}
		return data, true
	}

	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, "The uploaded file could not be read", err)
		return nil, false
	}
	if len(data) == 0 {
		badRequest(c, "A CSV file is required", nil)
		return nil, false
	}
	return data, true
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
