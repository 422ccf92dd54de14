package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformcommons/apidesigner/internal/designer"
	"github.com/platformcommons/apidesigner/internal/spec"
)

const designerKey = "apidesigner.designer"

func (s *Server) routes() {
	e := s.e
	e.GET("/healthz", func(c *gin.Context) {
		s.render(c, 0, gin.H{"status": "ok", "sessions": s.sessions.Len()}, nil)
	})
	e.GET("/metrics", gin.WrapH(s.metrics.handler()))
	e.POST("/import", s.importDocument)
	e.POST("/designs", s.createDesign)

	g := e.Group("/designs/:id", s.loadSession)
	g.GET("", s.getDesign)
	g.PATCH("", s.updateDesign)
	g.DELETE("", s.deleteDesign)
	g.POST("/endpoints", s.addEndpoint)
	g.PATCH("/endpoints/:eid", s.updateEndpoint)
	g.DELETE("/endpoints/:eid", s.removeEndpoint)
	g.POST("/schemas", s.addSchema)
	g.PATCH("/schemas/:sid", s.updateSchema)
	g.DELETE("/schemas/:sid", s.removeSchema)
	g.GET("/export", s.export)
	g.GET("/export/last", s.lastExport)
	g.POST("/preview", s.preview)
}

func (s *Server) loadSession(c *gin.Context) {
	d, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		s.render(c, 0, nil, NewNotFoundError(fmt.Sprintf("design %s not found", c.Param("id"))))
		return
	}
	c.Set(designerKey, d)
	c.Next()
}

func session(c *gin.Context) *designer.Designer {
	return c.MustGet(designerKey).(*designer.Designer)
}

func (s *Server) importer(kind string) (spec.Importer, error) {
	if kind == "" {
		kind = s.opt.importer
	}
	imp, err := spec.NewImporter(kind)
	if err != nil {
		return nil, NewBadRequestError(err.Error())
	}
	return imp, nil
}

type documentRequest struct {
	Document string `json:"document"`
	Importer string `json:"importer" binding:"omitempty,oneof=structured heuristic"`
}

func (s *Server) importDocument(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	imp, err := s.importer(req.Importer)
	if err != nil {
		s.render(c, 0, nil, err)
		return
	}
	res, err := imp.Import([]byte(req.Document))
	s.metrics.imports.WithLabelValues(imp.Name(), outcome(err)).Inc()
	s.render(c, 0, res, err)
}

type designResponse struct {
	ID              string             `json:"id"`
	Project         *spec.Project      `json:"project"`
	DuplicateRoutes []designer.Route   `json:"duplicateRoutes"`
	Report          *spec.ImportReport `json:"report,omitempty"`
}

func (s *Server) createDesign(c *gin.Context) {
	var req documentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.render(c, 0, nil, NewBadRequestError(err))
			return
		}
	}
	imp, err := s.importer(req.Importer)
	if err != nil {
		s.render(c, 0, nil, err)
		return
	}
	id, d, report, err := s.sessions.Create([]byte(req.Document), imp)
	if req.Document != "" && !errors.Is(err, ErrSessionLimit) {
		s.metrics.imports.WithLabelValues(imp.Name(), outcome(err)).Inc()
	}
	if errors.Is(err, ErrSessionLimit) {
		s.render(c, 0, nil, NewConflictError(err.Error()))
		return
	}
	if err != nil {
		s.render(c, 0, nil, err)
		return
	}
	s.metrics.sessionsCreated.Inc()
	s.metrics.sessionsActive.Set(float64(s.sessions.Len()))
	c.Header("Location", "/designs/"+id)
	s.render(c, http.StatusCreated, designResponse{
		ID:              id,
		Project:         d.Project(),
		DuplicateRoutes: d.DuplicateRoutes(),
		Report:          report,
	}, nil)
}

func (s *Server) getDesign(c *gin.Context) {
	d := session(c)
	s.render(c, 0, designResponse{ID: c.Param("id"), Project: d.Project(), DuplicateRoutes: d.DuplicateRoutes()}, nil)
}

func (s *Server) updateDesign(c *gin.Context) {
	var patch designer.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	d := session(c)
	d.UpdateProject(patch)
	s.render(c, 0, designResponse{ID: c.Param("id"), Project: d.Project(), DuplicateRoutes: d.DuplicateRoutes()}, nil)
}

func (s *Server) deleteDesign(c *gin.Context) {
	s.sessions.Delete(c.Param("id"))
	s.metrics.sessionsActive.Set(float64(s.sessions.Len()))
	s.render(c, http.StatusNoContent, nil, nil)
}

// created wraps a stored endpoint or schema with its id.
type created struct {
	ID     string `json:"id"`
	Entity any    `json:"entity"`
}

func (s *Server) addEndpoint(c *gin.Context) {
	ep := spec.NewEndpoint()
	if c.Request.ContentLength != 0 {
		ep = spec.Endpoint{}
		if err := c.ShouldBindJSON(&ep); err != nil {
			s.render(c, 0, nil, NewBadRequestError(err))
			return
		}
		if ep.Method == "" {
			ep.Method = spec.GET
		}
	}
	if !ep.Method.Valid() {
		s.render(c, 0, nil, NewBadRequestError(fmt.Sprintf("unsupported method %q", ep.Method)))
		return
	}
	d := session(c)
	id := d.AddEndpoint(ep)
	stored, _ := d.Endpoint(id)
	s.render(c, http.StatusCreated, created{ID: id, Entity: stored}, nil)
}

func (s *Server) updateEndpoint(c *gin.Context) {
	var patch designer.EndpointPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	d := session(c)
	eid := c.Param("eid")
	if !d.UpdateEndpoint(eid, patch) {
		s.render(c, 0, nil, NewNotFoundError(fmt.Sprintf("endpoint %s not found", eid)))
		return
	}
	ep, _ := d.Endpoint(eid)
	s.render(c, 0, ep, nil)
}

func (s *Server) removeEndpoint(c *gin.Context) {
	eid := c.Param("eid")
	if !session(c).RemoveEndpoint(eid) {
		s.render(c, 0, nil, NewNotFoundError(fmt.Sprintf("endpoint %s not found", eid)))
		return
	}
	s.render(c, http.StatusNoContent, nil, nil)
}

type schemaRequest struct {
	spec.Schema
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"omitempty,oneof=string number integer boolean array object"`
}

func (s *Server) addSchema(c *gin.Context) {
	var req schemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	sc := req.Schema
	sc.Name = req.Name
	sc.Type = req.Type
	if sc.Type == "" {
		sc.Type = "object"
	}
	d := session(c)
	id := d.AddSchema(sc)
	stored, _ := d.Schema(id)
	s.render(c, http.StatusCreated, created{ID: id, Entity: stored}, nil)
}

func (s *Server) updateSchema(c *gin.Context) {
	var patch designer.SchemaPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	d := session(c)
	sid := c.Param("sid")
	if !d.UpdateSchema(sid, patch) {
		s.render(c, 0, nil, NewNotFoundError(fmt.Sprintf("schema %s not found", sid)))
		return
	}
	sc, _ := d.Schema(sid)
	s.render(c, 0, sc, nil)
}

func (s *Server) removeSchema(c *gin.Context) {
	sid := c.Param("sid")
	if !session(c).RemoveSchema(sid) {
		s.render(c, 0, nil, NewNotFoundError(fmt.Sprintf("schema %s not found", sid)))
		return
	}
	s.render(c, http.StatusNoContent, nil, nil)
}

type exportQuery struct {
	Format   string `form:"format" binding:"omitempty,oneof=yaml yml json"`
	Download bool   `form:"download"`
}

func (s *Server) export(c *gin.Context) {
	var q exportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	format := s.opt.format
	if q.Format != "" {
		f, err := spec.ParseFormat(q.Format)
		if err != nil {
			s.render(c, 0, nil, NewBadRequestError(err.Error()))
			return
		}
		format = f
	}
	exp, err := session(c).ExportCurrentSpec(format)
	if err != nil {
		s.render(c, 0, nil, err)
		return
	}
	s.metrics.exports.WithLabelValues(string(format)).Inc()
	writeExport(c, exp, q.Download)
}

func (s *Server) lastExport(c *gin.Context) {
	exp, ok := session(c).LastExport()
	if !ok {
		s.render(c, 0, nil, NewNotFoundError("nothing exported yet"))
		return
	}
	writeExport(c, exp, c.Query("download") == "true")
}

func writeExport(c *gin.Context, exp designer.Export, download bool) {
	if download {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	}
	c.Header("Last-Modified", exp.At.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, exp.Format.ContentType(), exp.Content)
}

type previewRequest struct {
	Text    string `json:"text" binding:"required"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.render(c, 0, nil, NewBadRequestError(err))
		return
	}
	res, err := session(c).ApplyPreview([]byte(req.Text), req.Confirm)
	switch {
	case err != nil:
		s.metrics.previews.WithLabelValues("error").Inc()
	case res.Applied:
		s.metrics.previews.WithLabelValues("applied").Inc()
	default:
		s.metrics.previews.WithLabelValues("needs_confirmation").Inc()
	}
	s.render(c, 0, res, err)
}
