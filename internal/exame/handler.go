package exame

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulodtn/exames-customizados-poc/internal/app/apiresp"
	"github.com/paulodtn/exames-customizados-poc/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	msgCreated  = "Exame criado com sucesso"
	msgUpdated  = "Exame atualizado com sucesso"
	msgDeleted  = "Exame excluído com sucesso"
	msgInternal = "Erro interno do servidor"
	msgBadBody  = "Corpo da requisição inválido"
)

type Handler struct {
	svc examService
	log *logger.Logger
}

type examService interface {
	List(ctx context.Context) ([]Exam, error)
	ListBases(ctx context.Context) ([]Exam, error)
	Get(ctx context.Context, id int64) (*Exam, error)
	Create(ctx context.Context, in CreateInput) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	Delete(ctx context.Context, id int64) error
	ExportExcel(ctx context.Context) ([]byte, error)
}

type examRequest struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       rawPrice `json:"price"`
	Kind        string   `json:"kind"`
	Active      *bool    `json:"active"`
	BaseID      *int64   `json:"base_id"`
}

// rawPrice keeps the submitted price as text so the service decides what is valid.
// It accepts a JSON number, a string or null.
type rawPrice string

func (p *rawPrice) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*p = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = rawPrice(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*p = rawPrice(n)
	}
	return nil
}

func NewHandler(svc examService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list", 0, err)
		return
	}
	apiresp.WriteList(w, r, items, len(items))
}

func (h *Handler) ListBases(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListBases(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list_bases", 0, err)
		return
	}
	apiresp.WriteList(w, r, items, len(items))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := examIDParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get", id, err)
		return
	}
	apiresp.WriteData(w, r, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExamRequest(r)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, msgBadBody)
		return
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		h.writeServiceError(w, r, "create", 0, err)
		return
	}

	id, err := h.svc.Create(r.Context(), CreateInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       string(req.Price),
		Kind:        kind,
		Active:      req.Active,
		BaseID:      req.BaseID,
	})
	if err != nil {
		h.writeServiceError(w, r, "create", 0, err)
		return
	}
	apiresp.WriteCreated(w, r, id, msgCreated)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := examIDParam(w, r)
	if !ok {
		return
	}
	req, err := decodeExamRequest(r)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, msgBadBody)
		return
	}

	err = h.svc.Update(r.Context(), id, UpdateInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       string(req.Price),
		Active:      req.Active,
		BaseID:      req.BaseID,
	})
	if err != nil {
		h.writeServiceError(w, r, "update", id, err)
		return
	}
	apiresp.WriteMessage(w, r, http.StatusOK, msgUpdated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := examIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete", id, err)
		return
	}
	apiresp.WriteMessage(w, r, http.StatusOK, msgDeleted)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.ExportExcel(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "export", 0, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="exames.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// writeServiceError keeps store failures opaque to the caller; the cause only goes to the log.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	switch {
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrDuplicateName):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case IsValidation(err):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	case IsNotFound(err):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	default:
		h.log.Error("exam operation failed",
			"op", op,
			"exam_id", id,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		apiresp.WriteError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

func examIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "ID de exame inválido")
		return 0, false
	}
	return id, true
}

// decodeExamRequest accepts JSON or an HTML form post. Forms follow checkbox semantics
// for active: "on" or "true" means true, anything else (including absence) means false.
// Form posts may use the legacy Portuguese field names (codigo, nome, descricao, preco,
// type, exame_base_id) and a decimal comma in the price.
func decodeExamRequest(r *http.Request) (examRequest, error) {
	var req examRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return examRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return examRequest{}, err
	}
	form := r.PostForm
	field := func(names ...string) string {
		for _, n := range names {
			if _, ok := form[n]; ok {
				return form.Get(n)
			}
		}
		return ""
	}
	req.Code = field("code", "codigo")
	req.Name = field("name", "nome")
	req.Description = field("description", "descricao")
	req.Price = rawPrice(strings.Replace(strings.TrimSpace(field("price", "preco")), ",", ".", 1))
	req.Kind = field("kind", "type")

	active := false
	switch strings.ToLower(strings.TrimSpace(form.Get("active"))) {
	case "on", "true", "1":
		active = true
	}
	req.Active = &active

	if v := strings.TrimSpace(field("base_id", "exame_base_id")); v != "" {
		baseID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			baseID = 0
		}
		req.BaseID = &baseID
	}
	return req, nil
}
