// README: CSV export (download, S3 upload) and import handlers.
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"locater/internal/modules/transfer"
)

const (
	// DefaultMaxImportSize caps an uploaded CSV file.
	DefaultMaxImportSize = 10 << 20
	// multipartSlack leaves room for the form envelope around the file part.
	multipartSlack = 64 << 10
)

type TransferHandler struct {
	transfer *transfer.Service
	maxSize  int64
	debug    bool
}

// NewTransferHandler falls back to DefaultMaxImportSize when maxSize is not
// positive.
func NewTransferHandler(svc *transfer.Service, maxSize int64, debug bool) *TransferHandler {
	if maxSize <= 0 {
		maxSize = DefaultMaxImportSize
	}
	return &TransferHandler{transfer: svc, maxSize: maxSize, debug: debug}
}

// Export buffers the file so a failed read never leaves a truncated download.
func (h *TransferHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.transfer.Export(c.Request.Context(), &buf); err != nil {
		writeTransferError(c, err, h.debug)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.transfer.FileName()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *TransferHandler) Upload(c *gin.Context) {
	key, err := h.transfer.Upload(c.Request.Context())
	if err != nil {
		writeTransferError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"key": key})
}

// Import accepts a multipart "file" field or a raw CSV body. Oversized
// input is rejected with 413 rather than imported in part.
func (h *TransferHandler) Import(c *gin.Context) {
	var src io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartSlack)
		fh, err := c.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				h.tooLarge(c)
				return
			}
			writeError(c, http.StatusBadRequest, "bad_request", "missing file field")
			return
		}
		if fh.Size > h.maxSize {
			h.tooLarge(c)
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, http.StatusBadRequest, "bad_request", "unreadable upload")
			return
		}
		defer f.Close()
		src = f
	} else {
		src = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)
	}

	report, err := h.transfer.Import(c.Request.Context(), src)
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(c)
			return
		}
		writeTransferError(c, err, h.debug)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

func (h *TransferHandler) tooLarge(c *gin.Context) {
	writeError(c, http.StatusRequestEntityTooLarge, "too_large",
		fmt.Sprintf("import file exceeds %d bytes", h.maxSize))
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
