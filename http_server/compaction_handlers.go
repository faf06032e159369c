package http_server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/metastore"
	"github.com/danthegoodman1/icemor/plan"
	"github.com/danthegoodman1/icemor/planner"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/rs/zerolog"
)

type (
	ScheduleReqBody struct {
		Table string `param:"table" validate:"required,tablename"`
		// Partition paths to consider, e.g. `2023/01/01` or `y=2023/m=01/d=01`.
		//
		// Default every partition of the table.
		Partitions []string `json:"partitions" validate:"dive,required,partitionpath"`
		// How many seconds before scheduling will time out.
		//
		// Default `60`.
		MaxRuntimeSec *int64 `json:"maxRuntimeSec" validate:"omitempty,gt=0"`
	}

	ScheduleStats struct {
		InstantTime string     `json:"instantTime"`
		Operations  int        `json:"operations"`
		TotalIOMB   float64    `json:"totalIOMB"`
		TimeMS      int64      `json:"timeMS"`
		Plan        *plan.Plan `json:"plan"`
	}

	ListPlansRes struct {
		Instants []string `json:"instants"`
	}
)

func (s *HTTPServer) ScheduleHandler(c *CustomContext) error {
	var reqBody ScheduleReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.BadRequest(err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("table", reqBody.Table).Strs("partitions", reqBody.Partitions).Msg("running schedule handler")

	start := time.Now()
	p, err := s.Scheduler.Schedule(ctx, reqBody.Table, reqBody.Partitions)
	if errors.Is(err, metastore.ErrFileGroupPending) {
		return c.String(http.StatusConflict, err.Error())
	}
	if errors.Is(err, fsutils.ErrUnsafePath) {
		return c.BadRequest(err)
	}
	if err != nil {
		return c.InternalError(err, "error scheduling compaction")
	}
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}

	res := ScheduleStats{
		InstantTime: p.InstantTime,
		Operations:  len(p.Operations),
		TimeMS:      time.Since(start).Milliseconds(),
		Plan:        p,
	}
	for _, op := range p.Operations {
		res.TotalIOMB += op.Metric(planner.MetricTotalIOMB)
	}
	return c.JSON(http.StatusOK, res)
}

func tableParam(c *CustomContext) (string, error) {
	table := c.Param("table")
	return table, fsutils.CheckTableName(table)
}

func planParams(c *CustomContext) (table, instant string, err error) {
	if table, err = tableParam(c); err != nil {
		return
	}
	instant = c.Param("instant")
	err = fsutils.CheckInstant(instant)
	return
}

func (s *HTTPServer) ListPlansHandler(c *CustomContext) error {
	table, err := tableParam(c)
	if err != nil {
		return c.BadRequest(err)
	}
	instants, err := s.Scheduler.ListPlans(c.Request().Context(), table)
	if err != nil {
		return c.InternalError(err, "error listing plans")
	}
	return c.JSON(http.StatusOK, ListPlansRes{Instants: utils.ArrayOrEmpty(instants)})
}

func (s *HTTPServer) GetPlanHandler(c *CustomContext) error {
	table, instant, err := planParams(c)
	if err != nil {
		return c.BadRequest(err)
	}
	p, err := s.Scheduler.GetPlan(c.Request().Context(), table, instant)
	if errors.Is(err, plan.ErrPlanNotFound) {
		return c.String(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return c.InternalError(err, "error getting plan")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *HTTPServer) CompletePlanHandler(c *CustomContext) error {
	table, instant, err := planParams(c)
	if err != nil {
		return c.BadRequest(err)
	}
	err = s.Scheduler.CompletePlan(c.Request().Context(), table, instant)
	if errors.Is(err, metastore.ErrPlanNotPending) {
		return c.String(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return c.InternalError(err, "error completing plan")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) AbortPlanHandler(c *CustomContext) error {
	table, instant, err := planParams(c)
	if err != nil {
		return c.BadRequest(err)
	}
	err = s.Scheduler.AbortPlan(c.Request().Context(), table, instant)
	if errors.Is(err, plan.ErrPlanNotFound) {
		return c.String(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return c.InternalError(err, "error aborting plan")
	}
	return c.NoContent(http.StatusNoContent)
}
