package api

import (
	"context"
	"net/http"

	"BoostLab/internal/domain/models"
	xhttp "BoostLab/pkg/http"
	applogger "BoostLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

type modelService interface {
	List(ctx context.Context) ([]*models.ModelArtifact, error)
	Get(ctx context.Context, id string) (*models.ModelArtifact, error)
	Predict(ctx context.Context, req *models.PredictRequest) ([]models.Prediction, error)
}

type backtestService interface {
	Backtest(ctx context.Context, req *models.BacktestRequest) (*models.BacktestReport, error)
	WalkForward(ctx context.Context, req *models.WalkForwardRequest) (*models.BacktestReport, error)
}

type explainService interface {
	Explain(ctx context.Context, req *models.ExplainRequest) (*models.ExplainReport, error)
}

type trainService interface {
	Run(ctx context.Context, req *models.TrainRequest) (*models.TrainingReport, error)
}

// Handler serves the model, backtest, explain and training routes.
type Handler struct {
	l         *applogger.Logger
	models    modelService
	backtests backtestService
	explainer explainService
	trainer   trainService
	caps      models.Capabilities
	expensive []echo.MiddlewareFunc
}

// NewHandler wires the usecases. expensive middleware, typically a rate
// limiter, guards the training and walk-forward routes.
func NewHandler(
	l *applogger.Logger,
	ms modelService,
	bs backtestService,
	es explainService,
	ts trainService,
	caps models.Capabilities,
	expensive ...echo.MiddlewareFunc,
) *Handler {
	return &Handler{
		l:         l,
		models:    ms,
		backtests: bs,
		explainer: es,
		trainer:   ts,
		caps:      caps,
		expensive: expensive,
	}
}

var _ xhttp.Routes = (*Handler)(nil)

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/capabilities", h.Capabilities)
	g.POST("/train", h.Train, h.expensive...)

	m := g.Group("/models")
	m.GET("", h.List)
	m.GET("/:id", h.Get)
	m.POST("/:id/predict", h.Predict)
	m.POST("/:id/backtest", h.Backtest)
	m.POST("/:id/walkforward", h.WalkForward, h.expensive...)
	m.GET("/:id/explain", h.Explain)
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error(op+" failed", applogger.Error(err))
	} else {
		h.l.Debug(op+" rejected", applogger.String("code", appErr.Code), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) Capabilities(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.caps)
}

func (h *Handler) List(c echo.Context) error {
	list, err := h.models.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "list models", err)
	}
	return xhttp.ListResponse(c, list, len(list))
}

func (h *Handler) Get(c echo.Context) error {
	req := &models.ModelIDRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	a, err := h.models.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "get model", err)
	}
	return xhttp.SuccessResponse(c, a)
}

type predictResponse struct {
	ArtifactID  string              `json:"artifact_id"`
	Predictions []models.Prediction `json:"predictions"`
}

func (h *Handler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	preds, err := h.models.Predict(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, &predictResponse{ArtifactID: req.ID, Predictions: preds})
}

func (h *Handler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	report, err := h.backtests.Backtest(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *Handler) WalkForward(c echo.Context) error {
	req := &models.WalkForwardRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	report, err := h.backtests.WalkForward(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "walk-forward", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *Handler) Explain(c echo.Context) error {
	req := &models.ExplainRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	report, err := h.explainer.Explain(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "explain", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

// Train runs the pipeline synchronously; the request may override the
// configured model, target, horizon and budget.
func (h *Handler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	report, err := h.trainer.Run(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.DataResponse(c, http.StatusCreated, report)
}
