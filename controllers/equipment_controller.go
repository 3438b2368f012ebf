package controllers

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/services"

	"github.com/gin-gonic/gin"
)

type EquipmentController struct{ *Srv }

func NewEquipmentController(s *Srv) *EquipmentController { return &EquipmentController{Srv: s} }

type createEquipmentReq struct {
	Name             string                 `json:"name" binding:"required"`
	Type             string                 `json:"type" binding:"required"`
	BaseSerial       string                 `json:"serial"`
	Condition        models.Condition       `json:"condition"`
	Status           models.EquipmentStatus `json:"status"`
	Location         string                 `json:"location"`
	RequiresApproval bool                   `json:"requiresApproval"`
	Quantity         int                    `json:"quantity"`
	StockThreshold   *int                   `json:"stockThreshold"`
}

// CreateEquipment creates one unit per requested quantity.
func (ec *EquipmentController) CreateEquipment(c *gin.Context) {
	var in createEquipmentReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	units, err := ec.Equipment.CreateBatch(c.Request.Context(), services.CreateBatchInput{
		Name:             in.Name,
		Type:             in.Type,
		BaseSerial:       in.BaseSerial,
		Condition:        in.Condition,
		Status:           in.Status,
		Location:         in.Location,
		RequiresApproval: in.RequiresApproval,
		Quantity:         in.Quantity,
		StockThreshold:   in.StockThreshold,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"items": units, "count": len(units)})
}

// ListEquipment supports ?status=&type=&q=.
func (ec *EquipmentController) ListEquipment(c *gin.Context) {
	f := models.EquipmentFilter{
		Status: models.EquipmentStatus(c.Query("status")),
		Type:   c.Query("type"),
		Q:      c.Query("q"),
	}
	if f.Status != "" && !f.Status.Valid() {
		respondError(c, models.ErrInvalidStatus)
		return
	}
	items, err := ec.Equipment.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (ec *EquipmentController) GetEquipment(c *gin.Context) {
	e, err := ec.Equipment.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (ec *EquipmentController) UpdateEquipment(c *gin.Context) {
	var in models.EquipmentFields
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := ec.Equipment.UpdateFields(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (ec *EquipmentController) SetStatus(c *gin.Context) {
	var in struct {
		Status models.EquipmentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := ec.Equipment.SetStatus(c.Request.Context(), c.Param("id"), in.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "status": in.Status})
}

func (ec *EquipmentController) DeleteEquipment(c *gin.Context) {
	if err := ec.Equipment.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ec *EquipmentController) StartRepair(c *gin.Context) {
	ids, ok := bindIDs(c)
	if !ok {
		return
	}
	n, err := ec.Equipment.BulkStartRepair(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"updated": n})
}

func (ec *EquipmentController) CompleteRepair(c *gin.Context) {
	var in struct {
		IDs       []string         `json:"ids"`
		Condition models.Condition `json:"condition"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	n, err := ec.Equipment.BulkCompleteRepair(c.Request.Context(), in.IDs, in.Condition)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"updated": n})
}

func (ec *EquipmentController) RetireFleet(c *gin.Context) {
	ids, ok := bindIDs(c)
	if !ok {
		return
	}
	n, err := ec.Equipment.BulkRetire(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"updated": n})
}
