package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/checkin"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

type checkinApi struct {
	svc       *checkin.Service
	courseSvc *course.Service
	usrSvc    *user.Service
	validate  *validator.Validate
}

func registerCheckinAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := checkinApi{
		svc:       deps.CheckinSvc,
		courseSvc: deps.CourseSvc,
		usrSvc:    deps.UserSvc,
		validate:  deps.Validate,
	}

	g.GET("/courses/:id/tasks", api.queryCourseTasks, jwt)

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.create)

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/activate", api.activate)
	dg.POST("/end", api.end)
	dg.POST("/cancel", api.cancel)
	dg.GET("/code", api.code)
	dg.GET("/stats", api.stats)
	dg.GET("/records", api.records)
	dg.POST("/checkin", api.checkIn)
	dg.POST("/records", api.recordFor)

	g.PUT("/records/:id", api.overrideRecord, jwt)
}

// Handlers

func (api *checkinApi) create(ctx echo.Context) error {
	var data checkin.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	task, err := api.svc.CreateTask(data, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, task)
}

func (api *checkinApi) queryCourseTasks(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courseID := ctx.Param("id")
	if !ctxUsr.IsAdmin() {
		ok, err := api.courseSvc.HasActiveMember(courseID, ctxUsr.ID)
		if err != nil {
			return errors.Wrap(err, "checking membership")
		}
		if !ok {
			return errHttpNotFound
		}
	}

	tasks, err := api.svc.QueryCourseTasks(courseID)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []checkin.Task{}
	}
	for i := range tasks {
		api.hideVerificationMaterial(&tasks[i], ctxUsr)
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *checkinApi) retrieve(ctx echo.Context) error {
	task, err := api.svc.GetTask(ctx.Param("id"))
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	api.hideVerificationMaterial(&task, ctxUsr)
	return ctx.JSON(http.StatusOK, task)
}

// hideVerificationMaterial blanks the shared secret and expected BSSID for
// non-managers; students learn the code out of band (eg. read out in class).
func (api *checkinApi) hideVerificationMaterial(t *checkin.Task, caller user.User) {
	if api.svc.CanManage(*t, caller) {
		return
	}
	t.Params.Secret = ""
	t.Params.BSSID = ""
}

func (api *checkinApi) activate(ctx echo.Context) error {
	return api.transition(ctx, api.svc.ActivateTask)
}

func (api *checkinApi) end(ctx echo.Context) error {
	return api.transition(ctx, api.svc.EndTask)
}

func (api *checkinApi) cancel(ctx echo.Context) error {
	return api.transition(ctx, api.svc.CancelTask)
}

func (api *checkinApi) transition(ctx echo.Context, do func(string, user.User) (checkin.Task, error)) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	task, err := do(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *checkinApi) code(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	code, err := api.svc.CheckInCode(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CodeResponse{Code: code})
}

func (api *checkinApi) stats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	// stats expose per-student outcomes in aggregate; manager-only
	task, err := api.svc.GetTask(ctx.Param("id"))
	if err != nil {
		return err
	}
	if !api.svc.CanManage(task, ctxUsr) {
		return errHttpForbidden
	}

	stats, err := api.svc.Statistics(task.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *checkinApi) records(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	records, err := api.svc.TaskRecords(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	if records == nil {
		records = []checkin.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *checkinApi) checkIn(ctx echo.Context) error {
	var data checkin.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	data.TaskID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rec, err := api.svc.Submit(data, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

// recordFor lets a task manager check a student in, eg. manual roll call.
func (api *checkinApi) recordFor(ctx echo.Context) error {
	var data RecordForRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordForRequest")
	}
	data.CheckIn.TaskID = ctx.Param("id")
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	student, err := api.usrSvc.GetByID(data.UserID)
	if err != nil {
		return err
	}

	rec, err := api.svc.SubmitFor(data.CheckIn, student, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *checkinApi) overrideRecord(ctx echo.Context) error {
	var data OverrideRecordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OverrideRecordRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rec, err := api.svc.OverrideRecord(ctx.Param("id"), data.Status, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

type (
	CodeResponse struct {
		Code string `json:"code"`
	}

	RecordForRequest struct {
		UserID string `json:"user_id" validate:"required"`
		checkin.CheckIn
	}

	OverrideRecordRequest struct {
		Status checkin.RecordStatus `json:"status" validate:"required,oneof=normal late absent leave"`
	}
)
