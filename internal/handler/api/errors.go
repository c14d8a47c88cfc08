package api

import (
	"errors"
	"net/http"

	"BoostLab/internal/domain/models"
	xhttp "BoostLab/pkg/http"
)

// toAppError maps domain failures onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr *xhttp.AppError
		sve    *models.SchemaValidationError
		ide    *models.InsufficientDataError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrArtifactNotFound):
		return xhttp.NotFoundError("artifact not found").WithError(err)
	case errors.Is(err, models.ErrTrainingBusy):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrExplainDisabled):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	case errors.As(err, &sve):
		e := xhttp.NewAppError("ERR_SCHEMA", sve.Field, sve.Reason, http.StatusBadRequest).WithError(err)
		if sve.Index >= 0 {
			e.WithParam("index", sve.Index)
		}
		return e
	case errors.As(err, &ide):
		return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", err.Error(), http.StatusBadRequest).
			WithParam("stage", ide.Stage).
			WithParam("need", ide.Need).
			WithParam("have", ide.Have).
			WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
