package reportshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/spendboard/spendboard/internal/aggregation"
	"github.com/spendboard/spendboard/internal/platform/httpx"
	"github.com/spendboard/spendboard/internal/reports"
)

// DefaultMaxUpload caps uploads when no limit is configured.
const DefaultMaxUpload int64 = 32 << 20

const multipartMemory = 8 << 20

type reportService interface {
	Process(ctx context.Context, in reports.ProcessInput) (*reports.Processed, error)
	Report(ctx context.Context, period string) (*aggregation.Result, error)
	Periods(ctx context.Context) []string
	Clear(ctx context.Context) error
}

// Handler exposes spreadsheet processing and cached period reports over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   reportService
	validator *validator.Validate
	maxUpload int64
}

// NewHandler constructs a reports HTTP handler. maxUpload <= 0 selects DefaultMaxUpload.
func NewHandler(logger *slog.Logger, service reportService, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		maxUpload: maxUpload,
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/process", h.process)
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Delete("/", h.clearPeriods)
		r.Get("/{period}", h.showPeriod)
	})
}

type processForm struct {
	Filename     string `validate:"required"`
	Period       string `validate:"omitempty,max=128"`
	ExchangeRate string `validate:"omitempty,numeric"`
}

type periodsResponse struct {
	Periods []string `json:"periods"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httpx.RespondError(w, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrPayloadTooLarge, h.maxUpload))
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: expected multipart form with a file field", httpx.ErrValidation))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: no file uploaded", httpx.ErrValidation))
		return
	}
	defer file.Close()

	form := processForm{
		Filename:     header.Filename,
		Period:       strings.TrimSpace(r.FormValue("period")),
		ExchangeRate: strings.TrimSpace(r.FormValue("exchange_rate")),
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, describeValidation(err)))
		return
	}
	if !aggregation.SupportedExtension(form.Filename) {
		httpx.RespondError(w, fmt.Errorf("%w: invalid file type, upload an .xlsx, .xlsm or .csv file", httpx.ErrValidation))
		return
	}
	override, err := parseRate(form.ExchangeRate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read upload", slog.String("file", form.Filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out, err := h.service.Process(r.Context(), reports.ProcessInput{
		Filename:     form.Filename,
		Period:       form.Period,
		Data:         data,
		RateOverride: override,
	})
	if err != nil {
		if errors.Is(err, aggregation.ErrInvalidInput) {
			httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrValidation, err))
			return
		}
		h.logger.Error("process upload", slog.String("file", form.Filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("X-Run-ID", out.RunID)
	if out.Period != "" {
		w.Header().Set("X-Period", out.Period)
	}
	httpx.JSON(w, http.StatusOK, out.Result)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, periodsResponse{Periods: h.service.Periods(r.Context())})
}

func (h *Handler) showPeriod(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	result, err := h.service.Report(r.Context(), period)
	if err != nil {
		if errors.Is(err, reports.ErrPeriodNotFound) {
			httpx.RespondError(w, fmt.Errorf("period %q: %w", period, httpx.ErrNotFound))
			return
		}
		h.logger.Error("load period", slog.String("period", period), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) clearPeriods(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.logger.Error("clear periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRate(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange_rate must be a positive number", httpx.ErrValidation)
	}
	return &rate, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(parts, "; ")
}
