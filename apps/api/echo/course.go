package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

type courseApi struct {
	svc      *course.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create)
	cg.GET("", api.queryMine)
	cg.POST("/join", api.join)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/activate", api.activate)
	dg.POST("/finish", api.finish)
	dg.POST("/archive", api.archive)
	dg.POST("/invite-code", api.resetInviteCode)
	dg.GET("/members", api.members)
	dg.POST("/members", api.addMember)
	dg.DELETE("/members/:userID", api.removeMember)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) queryMine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courses, err := api.svc.QueryByMember(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) join(ctx echo.Context) error {
	var data JoinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	m, err := api.svc.Join(data.InviteCode, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

// retrieve is limited to admins and active members; the invite code is a
// capability and is stripped for non-managers.
func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if !ctxUsr.IsAdmin() {
		m, err := api.svc.GetMembership(crs.ID, ctxUsr.ID)
		if err != nil || !m.IsActive {
			return errHttpNotFound
		}
		if !m.Role.CanManageTasks() {
			crs.InviteCode = ""
		}
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	orig, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Update(orig.ID, data, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) activate(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Activate)
}

func (api *courseApi) finish(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Finish)
}

func (api *courseApi) archive(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Archive)
}

func (api *courseApi) transition(ctx echo.Context, do func(string, user.User) (course.Course, error)) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := do(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) resetInviteCode(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.ResetInviteCode(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) members(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courseID := ctx.Param("id")
	if !ctxUsr.IsAdmin() {
		ok, err := api.svc.HasActiveMember(courseID, ctxUsr.ID)
		if err != nil {
			return errors.Wrap(err, "checking membership")
		}
		if !ok {
			return errHttpNotFound
		}
	}

	members, err := api.svc.Members(courseID)
	if err != nil {
		return err
	}
	if members == nil {
		members = []course.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) addMember(ctx echo.Context) error {
	var data course.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	m, err := api.svc.AddMember(ctx.Param("id"), data, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) removeMember(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.RemoveMember(ctx.Param("id"), ctx.Param("userID"), ctxUsr); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type JoinRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.InviteCode = core.CleanString(jr.InviteCode)
	return validate.Struct(jr)
}
