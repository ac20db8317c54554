package handlers

import (
	"fmt"
	"net/http"

	"bank_panel_backend/internal/middleware"
	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/services"
	"bank_panel_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ClientHandler holds the client service.
type ClientHandler struct {
	clientService services.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(cs services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: cs}
}

// listClientsQuery is the query-string form of models.FilterCriteria.
type listClientsQuery struct {
	Email          string `form:"email"`
	FirstName      string `form:"firstName"`
	LastName       string `form:"lastName"`
	PersonalID     string `form:"personalId"`
	MobileNumber   string `form:"mobileNumber"`
	Sex            string `form:"sex"`
	SearchTerm     string `form:"searchTerm"`
	Country        string `form:"country"`
	City           string `form:"city"`
	Street         string `form:"street"`
	ZipCode        string `form:"zipCode"`
	AccountNumber  string `form:"accountNumber"`
	AccountType    string `form:"accountType"`
	MinBalance     string `form:"minBalance"`
	MaxBalance     string `form:"maxBalance"`
	SortBy         string `form:"sortBy"`
	SortDescending bool   `form:"sortDescending"`
	PageNumber     int    `form:"pageNumber"`
	PageSize       int    `form:"pageSize"`
}

func parseDecimalParam(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal number", name)
	}
	return &d, nil
}

func (q listClientsQuery) criteria() (models.FilterCriteria, error) {
	minBalance, err := parseDecimalParam("minBalance", q.MinBalance)
	if err != nil {
		return models.FilterCriteria{}, err
	}
	maxBalance, err := parseDecimalParam("maxBalance", q.MaxBalance)
	if err != nil {
		return models.FilterCriteria{}, err
	}
	return models.FilterCriteria{
		Email:          q.Email,
		FirstName:      q.FirstName,
		LastName:       q.LastName,
		PersonalID:     q.PersonalID,
		MobileNumber:   q.MobileNumber,
		Sex:            models.Sex(q.Sex),
		SearchTerm:     q.SearchTerm,
		Country:        q.Country,
		City:           q.City,
		Street:         q.Street,
		ZipCode:        q.ZipCode,
		AccountNumber:  q.AccountNumber,
		AccountType:    q.AccountType,
		MinBalance:     minBalance,
		MaxBalance:     maxBalance,
		SortBy:         q.SortBy,
		SortDescending: q.SortDescending,
		PageNumber:     q.PageNumber,
		PageSize:       q.PageSize,
	}, nil
}

func currentAdmin(c *gin.Context) (string, bool) {
	adminID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authenticated user not found in context", ""))
	}
	return adminID, ok
}

func clientIDParam(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return 0, false
	}
	return id, true
}

// ListClients handles filtered, sorted and paginated client listing.
func (h *ClientHandler) ListClients(c *gin.Context) {
	adminID, ok := currentAdmin(c)
	if !ok {
		return
	}

	var q listClientsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err, "ListClients")
		return
	}
	criteria, err := q.criteria()
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	result, err := h.clientService.ListClients(c.Request.Context(), criteria, adminID)
	if err != nil {
		respondServiceError(c, err, "fetch clients")
		return
	}
	c.JSON(http.StatusOK, result)
}

// LastSearches returns the calling admin's most recent search criteria.
func (h *ClientHandler) LastSearches(c *gin.Context) {
	adminID, ok := currentAdmin(c)
	if !ok {
		return
	}

	searches, err := h.clientService.LastSearches(c.Request.Context(), adminID)
	if err != nil {
		respondServiceError(c, err, "fetch recent searches")
		return
	}
	if len(searches) == 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "No recent searches found.", ""))
		return
	}
	c.JSON(http.StatusOK, searches)
}

// GetClientByID handles fetching a single client.
func (h *ClientHandler) GetClientByID(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	client, err := h.clientService.GetClientByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "fetch client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// CreateClient handles the creation of a new client.
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "CreateClient")
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "create client")
		return
	}
	c.JSON(http.StatusCreated, client)
}

// UpdateClient handles updating an existing client.
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	var req services.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "UpdateClient")
		return
	}

	client, err := h.clientService.UpdateClient(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "update client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient handles deleting a client.
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.clientService.DeleteClient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "delete client")
		return
	}
	if !deleted {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Client not found.", ""))
		return
	}
	c.Status(http.StatusNoContent)
}
