package domain

import (
	"errors"
	"testing"
)

func TestStandardErrorKinds(t *testing.T) {
	t.Run("aggregate not found carries 404 and a stable code", func(t *testing.T) {
		err := NewAggregateNotFound("account", "acc-1", "req-1")

		if err.Code != "AGGREGATE_NOT_FOUND" {
			t.Errorf("expected code AGGREGATE_NOT_FOUND, got %s", err.Code)
		}
		if err.HTTPStatus != 404 {
			t.Errorf("expected http status 404, got %d", err.HTTPStatus)
		}
		if err.InternalCode != 1 {
			t.Errorf("expected internal code 1, got %d", err.InternalCode)
		}
		if err.RequestID != "req-1" {
			t.Errorf("expected request id req-1, got %s", err.RequestID)
		}
	})

	t.Run("concurrency error carries expected/actual in details", func(t *testing.T) {
		err := NewConcurrencyError("acc-1", 5, 3, "")

		if err.HTTPStatus != 409 {
			t.Errorf("expected http status 409, got %d", err.HTTPStatus)
		}
		if err.Details["expected"] != 5 || err.Details["actual"] != 3 {
			t.Errorf("expected details to carry versions, got %v", err.Details)
		}
	})

	t.Run("user error defaults to 400", func(t *testing.T) {
		err := NewUserError("insufficient funds", "", map[string]any{"code": "INSUFFICIENT_FUNDS"})
		if err.HTTPStatus != 400 {
			t.Errorf("expected http status 400, got %d", err.HTTPStatus)
		}
	})

	t.Run("error implements the error interface", func(t *testing.T) {
		var _ error = NewDatabaseError(errors.New("conn refused"), "")
	})
}

func TestErrorJSONOmitsHTTPStatus(t *testing.T) {
	err := NewAggregateNotFound("account", "acc-1", "req-1")

	data, marshalErr := err.MarshalJSON()
	if marshalErr != nil {
		t.Fatalf("unexpected marshal error: %v", marshalErr)
	}

	if contains(string(data), "httpStatus") {
		t.Errorf("expected httpStatus to be absent from the wire body, got %s", data)
	}
	if !contains(string(data), "internalCode") {
		t.Errorf("expected internalCode in the wire body, got %s", data)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
