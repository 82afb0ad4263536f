package echoapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
)

type (
	bulletinApi struct {
		svc      *bulletin.Service
		validate *validator.Validate
	}

	PeriodRequest struct {
		Period grading.Period `json:"period" query:"period" validate:"required,period"`
	}

	PeriodResponse struct {
		Value string `json:"value"`
		Index int    `json:"index"`
	}
)

func (r *PeriodRequest) Validate(validate *validator.Validate) error {
	r.Period = grading.Period(core.CleanString(string(r.Period)))
	return validate.Struct(r)
}

func registerBulletinAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *bulletin.Service, validate *validator.Validate) {
	api := bulletinApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/bulletins", jwt, staffMiddleware())
	bg.GET("/periods", api.queryPeriods)
	bg.GET("/students/:id/preview", api.preview)
	bg.POST("/classes/:class/generate", api.generate)
	bg.POST("/classes/:class/notify", api.notify)
}

// Handlers

func (api *bulletinApi) queryPeriods(ctx echo.Context) error {
	periods := make([]PeriodResponse, 0, len(grading.Periods))
	for _, p := range grading.Periods {
		periods = append(periods, PeriodResponse{Value: p.String(), Index: p.Index()})
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *bulletinApi) preview(ctx echo.Context) error {
	data := PeriodRequest{Period: grading.Period(ctx.QueryParam("period"))}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.Preview(ctx.Request().Context(), ctx.Param("id"), data.Period)
	if err != nil {
		return errors.Wrap(err, "previewing bulletin")
	}

	p := doc.Preview()
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, p.ContentType)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", p.Filename))
	http.ServeContent(res, ctx.Request(), p.Filename, p.ModTime, p.Reader)
	return nil
}

func (api *bulletinApi) generate(ctx echo.Context) error {
	className, data, err := api.bindClassRequest(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.GenerateClass(ctx.Request().Context(), className, data.Period)
	if err != nil {
		return errors.Wrap(err, "generating bulletins")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *bulletinApi) notify(ctx echo.Context) error {
	className, data, err := api.bindClassRequest(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.NotifyClass(ctx.Request().Context(), className, data.Period)
	if err != nil {
		return errors.Wrap(err, "notifying guardians")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *bulletinApi) bindClassRequest(ctx echo.Context) (string, PeriodRequest, error) {
	var data PeriodRequest
	if err := ctx.Bind(&data); err != nil {
		return "", data, errors.Wrap(err, "binding to PeriodRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return "", data, err
	}
	className, err := url.PathUnescape(ctx.Param("class"))
	if err != nil {
		return "", data, core.NewValidationError(nil, core.FieldError{Field: "class", Error: "invalid class name"})
	}
	return className, data, nil
}
