package api

import (
	"fmt"
	"net/http"
	"strconv"

	"closet-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.Users.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.svc.Users.GetUser(c.Request.Context(), c.Param("onyen"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) createUser(c *gin.Context) {
	var in service.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	u, err := h.svc.Users.CreateUser(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) editUser(c *gin.Context) {
	var in service.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	in.Onyen = c.Param("onyen")

	u, err := h.svc.Users.EditUser(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.svc.Users.DeleteUser(c.Request.Context(), c.Param("onyen")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) importUsers(c *gin.Context) {
	data, ok := uploadedCSV(c)
	if !ok {
		return
	}

	n, err := h.svc.Users.ImportUsersCSV(c.Request.Context(), data, queryBool(c, "has_header"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (h *Handler) clearUsers(c *gin.Context) {
	n, err := h.svc.Users.ClearUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// backup streams a table dump as a CSV download. Headers go out with the
// first chunk, so a failure after that can only be logged and the client
// gets a truncated file.
func (h *Handler) backup(c *gin.Context) {
	table := c.Param("table")
	out := &csvDownload{c: c, filename: func() string { return h.svc.Backup.FileName(table) }}

	err := h.svc.Backup.Export(c.Request.Context(), out, table)
	switch {
	case err != nil && !out.started:
		h.respondError(c, err)
	case err != nil:
		h.logger.Error("Backup failed mid-stream",
			zap.String("table", table),
			zap.Int64("bytes", out.written),
			zap.Error(err))
		c.Abort()
	default:
		out.start()
	}
}

// csvDownload writes straight to the response, sending the download headers
// before the first byte.
type csvDownload struct {
	c        *gin.Context
	filename func() string
	started  bool
	written  int64
}

func (d *csvDownload) start() {
	if d.started {
		return
	}
	d.started = true
	d.c.Header("Content-Type", "text/csv; charset=utf-8")
	d.c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.filename()))
	d.c.Status(http.StatusOK)
}

func (d *csvDownload) Write(p []byte) (int, error) {
	d.start()
	n, err := d.c.Writer.Write(p)
	d.written += int64(n)
	return n, err
}

func (h *Handler) listAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.svc.Audit.ListAudit(c.Request.Context(), c.Query("onyen"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
