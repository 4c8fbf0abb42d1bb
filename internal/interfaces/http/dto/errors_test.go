package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/helixframework/helix/internal/orm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{http.StatusBadRequest, ErrCodeBadRequest},
		{http.StatusUnauthorized, ErrCodeUnauthorized},
		{http.StatusForbidden, ErrCodeForbidden},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusConflict, ErrCodeConflict},
		{http.StatusTooManyRequests, ErrCodeRateLimited},
		{http.StatusInternalServerError, ErrCodeInternal},
		{http.StatusTeapot, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeForStatus(tt.status))
		})
	}
}

func TestClientError(t *testing.T) {
	notFound := NotFound()
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, "Not Found", notFound.Error())
	assert.Equal(t, ErrCodeNotFound, notFound.Code())

	bad := BadData(map[string]string{"name": "This field is required", "age": "Must be at least 18"})
	assert.Equal(t, http.StatusBadRequest, bad.Status)
	assert.Equal(t, "Bad Request (age: Must be at least 18, name: This field is required)", bad.Error())
	assert.Equal(t, ErrCodeValidation, bad.Code())

	var target *ClientError
	wrapped := errors.Join(errors.New("context"), ServerError("storage is down"))
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, http.StatusInternalServerError, target.Status)
	assert.Equal(t, "storage is down", target.Message)
}

func TestClientError_Response(t *testing.T) {
	resp := BadData(map[string]string{"name": "This field is required", "email": "Invalid email format"}).Response()

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "ERR_VALIDATION",
			"message": "Bad Request",
			"details": [
				{"field": "email", "message": "Invalid email format"},
				{"field": "name", "message": "This field is required"}
			]
		}
	}`, string(data))
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		pageSize   int
		totalPages int
	}{
		{"exact", 100, 50, 2},
		{"remainder", 101, 50, 3},
		{"empty", 0, 50, 0},
		{"zero page size", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]int{}, tt.total, 1, tt.pageSize)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.totalPages, resp.Meta.TotalPages)
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse(orm.Page[string]{Page: 2, PageSize: 50, Total: 51})
	assert.Equal(t, []string{}, resp.Data)
	assert.Equal(t, &Meta{Total: 51, Page: 2, PageSize: 50, TotalPages: 2}, resp.Meta)
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(Status{Status: http.StatusCreated, Message: "Created", ID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":201,"message":"Created","id":7}`, string(data))

	data, err = json.Marshal(Status{Status: http.StatusNoContent, Message: "Updated"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":204,"message":"Updated"}`, string(data))
}

func TestFromValidation(t *testing.T) {
	err := FromValidation(&orm.ValidationError{Fields: map[string]string{"name": "name is required"}})
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.Status)
	assert.Equal(t, map[string]string{"name": "name is required"}, clientErr.Errors)

	other := errors.New("connection reset")
	assert.Same(t, other, FromValidation(other))
	assert.NoError(t, FromValidation(nil))
}
