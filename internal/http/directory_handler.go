package http

import (
	"fmt"
	"net/http"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/dto"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
)

type directoryHandler struct {
	directorySvc service.DirectoryService
	onError      func(w http.ResponseWriter, r *http.Request, err error)
}

func newDirectoryHandler(
	directorySvc service.DirectoryService,
	onError func(w http.ResponseWriter, r *http.Request, err error),
) *directoryHandler {
	return &directoryHandler{
		directorySvc: directorySvc,
		onError:      onError,
	}
}

func (h *directoryHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.directorySvc.ListOperators(r.Context())
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service list operators: %w", err))
		return
	}

	items := make([]dto.OperatorResponse, 0, len(operators))
	for _, o := range operators {
		items = append(items, toOperatorResponse(o))
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, items)
}

func (h *directoryHandler) GetOperator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "operatorID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	operator, err := h.directorySvc.GetOperator(r.Context(), id)
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service get operator: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toOperatorResponse(operator))
}

func (h *directoryHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var body dto.OperatorRequest
	if err := decodeBody(r, &body); err != nil {
		h.onError(w, r, err)
		return
	}

	operator, err := h.directorySvc.CreateOperator(r.Context(), model.Operator{FullName: body.FullName})
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service create operator: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusCreated, toOperatorResponse(operator))
}

func (h *directoryHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.directorySvc.ListCustomers(r.Context())
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service list customers: %w", err))
		return
	}

	items := make([]dto.CustomerResponse, 0, len(customers))
	for _, c := range customers {
		items = append(items, toCustomerResponse(c))
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, items)
}

func (h *directoryHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "customerID")
	if err != nil {
		h.onError(w, r, err)
		return
	}

	customer, err := h.directorySvc.GetCustomer(r.Context(), id)
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service get customer: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *directoryHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var body dto.CustomerRequest
	if err := decodeBody(r, &body); err != nil {
		h.onError(w, r, err)
		return
	}

	customer, err := h.directorySvc.CreateCustomer(r.Context(), model.Customer{
		FullName: body.FullName,
		Phone:    body.Phone,
	})
	if err != nil {
		h.onError(w, r, fmt.Errorf("directory service create customer: %w", err))
		return
	}

	//nolint:errcheck
	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func toOperatorResponse(o model.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{ID: o.ID, FullName: o.FullName, CreatedAt: o.CreatedAt}
}

func toCustomerResponse(c model.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{ID: c.ID, FullName: c.FullName, Phone: c.Phone, CreatedAt: c.CreatedAt}
}
