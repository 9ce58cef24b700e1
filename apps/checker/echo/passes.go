package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/coursework"
	"github.com/trezcool/masomo-checker/core/reconcile"
)

type (
	passApi struct {
		checker Checker
	}

	NewPass struct {
		DryRun bool   `json:"dry_run"`
		Reason string `json:"reason" validate:"max=200"`
	}

	PassResult struct {
		ID         string             `json:"id"`
		Trigger    string             `json:"trigger"`
		DryRun     bool               `json:"dry_run"`
		StartedAt  time.Time          `json:"started_at"`
		DurationMS int64              `json:"duration_ms"`
		Classes    int                `json:"classes"`
		Answers    int                `json:"answers"`
		Malformed  int                `json:"malformed"`
		Committed  bool               `json:"committed"`
		Changes    []coursework.Entry `json:"changes"`
		Error      string             `json:"error,omitempty"`
	}

	StatusResult struct {
		State      string      `json:"state"`
		Subscribed bool        `json:"subscribed"`
		Stopped    bool        `json:"stopped"`
		Passes     int         `json:"passes"`
		Commits    int         `json:"commits"`
		Failures   int         `json:"failures"`
		Dropped    int         `json:"dropped"`
		LastPass   *PassResult `json:"last_pass"`
	}
)

func (np NewPass) Validate() error {
	return core.Validate.Struct(np)
}

func registerPassAPI(g *echo.Group, checker Checker) {
	api := passApi{checker: checker}

	g.GET("/status", api.status)
	g.POST("/passes", api.create)
}

// Handlers

func (api *passApi) status(ctx echo.Context) error {
	st := api.checker.Status()
	res := StatusResult{
		State:      st.State.String(),
		Subscribed: st.Subscribed,
		Stopped:    st.Stopped,
		Passes:     st.Passes,
		Commits:    st.Commits,
		Failures:   st.Failures,
		Dropped:    st.Dropped,
	}
	if st.LastPass != nil {
		last := newPassResult(*st.LastPass)
		res.LastPass = &last
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *passApi) create(ctx echo.Context) error {
	var data NewPass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPass")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if data.Reason != "" {
		ctx.Logger().Infof("manual pass requested: %s", data.Reason)
	}

	res, err := api.checker.Trigger(ctx.Request().Context(), reconcile.TriggerOptions{DryRun: data.DryRun})
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		return errHttpBusy
	case errors.Is(err, reconcile.ErrStopped):
		return errHttpStopped
	case errors.Is(err, reconcile.ErrSnapshotUnavailable), errors.Is(err, reconcile.ErrWriteFailed):
		return ctx.JSON(http.StatusBadGateway, newPassResult(res))
	case err != nil:
		return errors.Wrap(err, "running pass")
	}
	return ctx.JSON(http.StatusOK, newPassResult(res))
}

func newPassResult(res reconcile.Result) PassResult {
	pr := PassResult{
		ID:         res.ID,
		Trigger:    string(res.Trigger),
		DryRun:     res.DryRun,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
		Classes:    res.Classes,
		Answers:    res.Answers,
		Malformed:  res.Malformed,
		Committed:  res.Committed,
		Changes:    res.Changes.Entries(),
	}
	if res.Err != nil {
		pr.Error = res.Err.Error()
	}
	return pr
}
