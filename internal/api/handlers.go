package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwtly10/tradedsl/internal/ast"
	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/compiler"
	"github.com/jwtly10/tradedsl/internal/dsl"
	"github.com/jwtly10/tradedsl/internal/rules"
	"github.com/jwtly10/tradedsl/internal/store"
	"github.com/jwtly10/tradedsl/internal/strategy"
	"github.com/jwtly10/tradedsl/internal/types"
)

type parseRequest struct {
	Rules string `json:"rules" binding:"required"`
}

type backtestRequest struct {
	Name       string              `json:"name"`
	Rules      string              `json:"rules"`
	Conditions *rules.Object       `json:"conditions"`
	Bars       []types.Bar         `json:"bars" binding:"required"`
	Config     *backtest.Overrides `json:"config"`
}

type backtestResponse struct {
	ID         string               `json:"id,omitempty"`
	Name       string               `json:"name"`
	Rules      string               `json:"rules"`
	Results    *backtest.Results    `json:"results"`
	Statistics *backtest.Statistics `json:"statistics"`
}

func (s *Server) parseRules(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rs, err := ast.ParseRuleSet(req.Rules)
	if err == nil {
		err = compiler.ValidateRuleSet(rs)
	}
	if err != nil {
		ruleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": rs.String(),
		"ast":   rs,
	})
}

func (s *Server) formatRules(c *gin.Context) {
	var obj rules.Object
	if err := c.ShouldBindJSON(&obj); err != nil {
		badRequest(c, err)
		return
	}
	if obj.Empty() {
		badRequest(c, errors.New("at least one entry or exit condition is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules.Format(obj)})
}

func (s *Server) createBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	def := rules.Strategy{Name: req.Name, Rules: req.Rules, Conditions: req.Conditions}
	if def.Name == "" {
		def.Name = "api"
	}
	if err := def.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	strat, err := strategy.FromDefinition(def)
	if err != nil {
		ruleError(c, err)
		return
	}

	series, err := types.NewSeries(req.Bars)
	if err != nil {
		badRequest(c, err)
		return
	}

	cfg := s.Defaults
	if req.Config != nil {
		cfg = cfg.With(*req.Config)
	}
	if err := cfg.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	results, err := strat.Backtest(c.Request.Context(), series, cfg)
	if err != nil {
		ruleError(c, err)
		return
	}

	resp := backtestResponse{
		Name:       strat.Name,
		Rules:      strat.Text,
		Results:    results,
		Statistics: results.Calculate(),
	}

	if s.Store != nil {
		id, err := s.Store.SaveRun(c.Request.Context(), store.Run{
			Name:    strat.Name,
			Rules:   strat.Text,
			Config:  cfg,
			Results: results,
		})
		if err != nil {
			internalError(c, err)
			return
		}
		resp.ID = id
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) getBacktest(c *gin.Context) {
	if s.Store == nil {
		noStore(c)
		return
	}

	run, err := s.Store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":        run,
		"statistics": run.Results.Calculate(),
	})
}

func (s *Server) listBacktests(c *gin.Context) {
	if s.Store == nil {
		noStore(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		badRequest(c, errors.New("limit must be a positive integer"))
		return
	}

	runs, err := s.Store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ruleError reports rule, compile and simulation precondition errors as 400s
// tagged with their kind. Anything else is a 500.
func ruleError(c *gin.Context, err error) {
	body := gin.H{"message": err.Error()}

	var (
		syntaxErr    *dsl.SyntaxError
		astErr       *ast.AstError
		indicatorErr *compiler.UnknownIndicatorError
		seriesErr    *compiler.UnknownSeriesError
		typeErr      *compiler.TypeMismatchError
		paramErr     *compiler.InvalidParameterError
		shapeErr     *backtest.ShapeMismatchError
	)
	switch {
	case errors.As(err, &syntaxErr):
		body["error"] = "syntax_error"
		body["position"] = gin.H{
			"offset": syntaxErr.Pos.Offset,
			"line":   syntaxErr.Pos.Line,
			"column": syntaxErr.Pos.Column,
		}
		body["token"] = syntaxErr.Token
	case errors.As(err, &astErr):
		body["error"] = "ast_error"
	case errors.As(err, &indicatorErr):
		body["error"] = "unknown_indicator"
	case errors.As(err, &seriesErr):
		body["error"] = "unknown_series"
	case errors.As(err, &typeErr):
		body["error"] = "type_mismatch"
	case errors.As(err, &paramErr):
		body["error"] = "invalid_parameter"
	case errors.As(err, &shapeErr):
		body["error"] = "shape_mismatch"
	default:
		internalError(c, err)
		return
	}

	c.JSON(http.StatusBadRequest, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
}

func noStore(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no_store", "message": "run persistence is not configured"})
}
