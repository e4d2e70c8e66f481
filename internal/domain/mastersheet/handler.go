package mastersheet

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/auth"
	"github.com/baard/baard/internal/platform/tabular"
	"github.com/baard/baard/pkg/pagination"
)

// Roles allowed on the sheet API.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/sheet", auth.RequireRole(RoleAnalyst, RoleAdmin))
	read.GET("", h.GetSummary)
	read.GET("/columns", h.GetColumns)
	read.GET("/rows", h.ListRows)
	read.GET("/rows/:record_id", h.GetRow)
	read.GET("/export.csv", h.ExportCSV)
	read.GET("/features/:model", h.GetFeatures)
	read.GET("/issues/:model", h.GetIssues)

	write := api.Group("/sheet", auth.RequireRole(RoleAdmin))
	write.POST("/rebuild", h.Rebuild)
}

type summary struct {
	RunID   uuid.UUID `json:"run_id"`
	Name    string    `json:"name"`
	BuiltAt time.Time `json:"built_at"`
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	Stats   Stats     `json:"stats"`
}

func summarize(res *Result) summary {
	return summary{
		RunID:   res.RunID,
		Name:    res.Name,
		BuiltAt: res.BuiltAt,
		Rows:    res.Sheet.Len(),
		Columns: len(res.Sheet.Columns()),
		Stats:   res.Stats,
	}
}

type tableView struct {
	Name           string               `json:"name"`
	Columns        []string             `json:"columns"`
	MissingColumns []string             `json:"missing_columns,omitempty"`
	Rows           []map[string]*string `json:"rows"`
}

func viewOf(t *sheet.Table, rows []sheet.Row) tableView {
	cols := t.Columns()
	v := tableView{Name: t.Name, Columns: cols, Rows: make([]map[string]*string, 0, len(rows))}
	for _, r := range rows {
		v.Rows = append(v.Rows, rowObject(cols, r))
	}
	return v
}

func (h *Handler) latest() (*Result, error) {
	res, err := h.svc.Store().Latest()
	if err != nil {
		return nil, httpError(err)
	}
	return res, nil
}

func (h *Handler) GetSummary(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(res))
}

func (h *Handler) GetColumns(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"columns": res.Sheet.Columns(),
	})
}

func (h *Handler) ListRows(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	start, end := pg.Window(res.Sheet.Len())
	view := viewOf(res.Sheet, res.Sheet.Rows[start:end])
	resp := pagination.NewResponse(view.Rows, res.Sheet.Len(), pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, res.Sheet.Len())
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetRow(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	row, ok := res.Sheet.Lookup(c.Param("record_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return c.JSON(http.StatusOK, rowObject(res.Sheet.Columns(), row))
}

func (h *Handler) ExportCSV(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	return writeCSV(c, res.Sheet)
}

func (h *Handler) GetFeatures(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	view, missing, err := FeatureView(res.Sheet, c.Param("model"))
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") == "csv" {
		return writeCSV(c, view)
	}
	out := viewOf(view, view.Rows)
	out.MissingColumns = missing
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetIssues(c echo.Context) error {
	res, err := h.latest()
	if err != nil {
		return err
	}
	issues, err := IssuesList(res.Sheet, c.Param("model"))
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") == "csv" {
		return writeCSV(c, issues)
	}
	return c.JSON(http.StatusOK, viewOf(issues, issues.Rows))
}

func (h *Handler) Rebuild(c echo.Context) error {
	res, err := h.svc.Rebuild(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, summarize(res))
}

func writeCSV(c echo.Context, t *sheet.Table) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+t.Name+`.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	header, records := t.Records()
	return tabular.Write(c.Response(), header, records)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSheetNotBuilt):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrUnknownModel):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoRecordIDs):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
