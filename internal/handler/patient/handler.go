package patient

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-records/internal/handler"
	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/service/patient"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

// Guards supplies the authorization middleware for each route
type Guards struct {
	Read   gin.HandlerFunc // GET /patients/:pid
	List   gin.HandlerFunc
	Write  gin.HandlerFunc // POST, PUT
	Delete gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(r gin.IRouter, guards Guards) {
	patients := r.Group("/patients")
	{
		patients.GET("", chain(guards.List, h.ListPatients)...)
		patients.GET("/:pid", chain(guards.Read, h.GetPatient)...)
		patients.POST("", chain(guards.Write, h.CreatePatient)...)
		patients.PUT("/:id", chain(guards.Write, h.UpdatePatient)...)
		patients.DELETE("/:id", chain(guards.Delete, h.DeletePatient)...)
	}
}

func chain(guard gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{guard, h}
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.ListPatients(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.GetPatient(c.Request.Context(), c.Param("pid"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	resp, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	changes, err := h.service.UpdatePatient(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ChangesResponse{Changes: changes})
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	changes, err := h.service.DeletePatient(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ChangesResponse{Changes: changes})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient id"))
		return 0, false
	}
	return id, true
}
