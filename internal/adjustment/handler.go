package adjustment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/view"
)

// snapshotKey holds the last successful balance submission of a session.
const snapshotKey = "adjustment.last_balance"

// Handler wires HTTP endpoints for the adjustment and balance forms.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	parser    *Parser
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs adjustment handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		parser:    NewParser(service.Formatter()),
		templates: templates,
		csrf:      csrf,
	}
}

// MountRoutes registers adjustment routes. The caller guards them with an
// authenticated user.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ajuste", h.showGeneral)
	r.Post("/ajuste", h.handleGeneral)
	r.Get("/balanco", h.showBalance)
	r.Post("/balanco", h.handleBalance)
	r.Post("/balanco/novo", h.handleNewBalance)
}

type pageData struct {
	Responsible string
	Form        Form
	Kinds       []Option
	Warehouses  []Option
	Errors      Errors
	Snapshot    *Snapshot
}

func (h *Handler) showGeneral(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	form := Form{Kind: KindEntrada, Warehouse: WarehouseDeposito}
	h.render(w, r, VariantGeneral, h.page(user, form, nil), http.StatusOK)
}

func (h *Handler) handleGeneral(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, VariantGeneral)
}

func (h *Handler) showBalance(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	data := h.page(user, Form{Kind: KindBalanco}, nil)
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		var snap Snapshot
		ok, err := sess.GetJSON(snapshotKey, &snap)
		if err != nil {
			h.logger.Warn("decode balance snapshot", slog.Any("error", err))
			sess.Delete(snapshotKey)
		} else if ok {
			data.Snapshot = &snap
		}
	}
	h.render(w, r, VariantBalance, data, http.StatusOK)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, VariantBalance)
}

// handleNewBalance dismisses the confirmation and starts a fresh entry.
func (h *Handler) handleNewBalance(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Delete(snapshotKey)
	}
	http.Redirect(w, r, "/balanco", http.StatusSeeOther)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, variant Variant) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	var (
		form Form
		errs Errors
	)
	if variant == VariantBalance {
		form, errs = h.parser.ParseBalance(r.PostForm)
	} else {
		form, errs = h.parser.ParseGeneral(r.PostForm)
	}
	if errs != nil {
		h.service.RecordInvalid(variant)
		h.render(w, r, variant, h.page(user, form, errs), http.StatusBadRequest)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	var lockKey string
	if sess != nil {
		lockKey = shared.SubmissionLockKey(sess.ID)
	}
	out := h.service.Submit(r.Context(), variant, form, user, lockKey)
	if !out.Success() {
		h.render(w, r, variant, h.page(user, form, Errors{"general": out.Message}), statusFor(out.Kind))
		return
	}

	if variant == VariantBalance {
		if sess != nil && out.Snapshot != nil {
			if err := sess.SetJSON(snapshotKey, out.Snapshot); err != nil {
				h.logger.Error("store balance snapshot", slog.Any("error", err))
			}
		}
		http.Redirect(w, r, "/balanco", http.StatusSeeOther)
		return
	}
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: out.Message})
	}
	http.Redirect(w, r, "/ajuste", http.StatusSeeOther)
}

func statusFor(kind OutcomeKind) int {
	switch kind {
	case OutcomeInFlight:
		return http.StatusConflict
	case OutcomeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) page(user auth.User, form Form, errs Errors) pageData {
	if errs == nil {
		errs = Errors{}
	}
	return pageData{
		Responsible: user.Responsible(),
		Form:        form,
		Kinds:       movementOptions,
		Warehouses:  warehouseOptions,
		Errors:      errs,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, variant Variant, data pageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	name, title := "pages/adjustment.html", "Ajuste de Estoque"
	if variant == VariantBalance {
		name, title = "pages/balance.html", "Balanço de Estoque"
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       shared.PopFlash(r),
		CurrentPath: r.URL.Path,
		Responsible: data.Responsible,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render adjustment", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
