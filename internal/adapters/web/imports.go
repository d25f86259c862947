package web

import (
	"context"
	"io"
	"net/http"

	"hardstock/internal/core"
)

// maxImportSize caps bulk import uploads at 10 MB.
const maxImportSize = 10 << 20

// importFile extracts the uploaded "file" part from a multipart request.
func importFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, r, "invalid multipart upload: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, `multipart field "file" is required`, "BAD_REQUEST", http.StatusBadRequest)
		return nil, "", false
	}
	return file, header.Filename, true
}

func (h *Handler) importProducts(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.svc.ImportProducts)
}

func (h *Handler) importClients(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.svc.ImportClients)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request,
	do func(ctx context.Context, r io.Reader, filename string) (*core.ImportResult, error)) {

	file, filename, ok := importFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result, err := do(r.Context(), file, filename)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// importTemplate serves the pre-filled xlsx import template.
func (h *Handler) importTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.BuildImportTemplate()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="import-template.xlsx"`)
	_, _ = w.Write(data)
}
