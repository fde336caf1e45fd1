package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWithMessageKeepsIdentity(t *testing.T) {
	derived := ErrOrderItemOutOfStock.WithMessage("库存不足：当前 %d，请求扣减 %d", 2, 3)

	if !errors.Is(derived, ErrOrderItemOutOfStock) {
		t.Error("derived error should match the original by code")
	}
	if derived.Message == ErrOrderItemOutOfStock.Message {
		t.Error("derived message should be replaced")
	}
	if derived.Code != ErrOrderItemOutOfStock.Code || derived.HTTPStatus != ErrOrderItemOutOfStock.HTTPStatus {
		t.Error("code and http status must carry over")
	}
}

func TestWrappedErrorStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("place order: %w", ErrOrderAmountMismatch)
	if !errors.Is(wrapped, ErrOrderAmountMismatch) {
		t.Error("wrapped error should match by errors.Is")
	}
	var e *Error
	if !errors.As(wrapped, &e) || e.HTTPStatus != 400 {
		t.Error("errors.As should recover the typed error")
	}
}

func TestDistinctKindsDoNotMatch(t *testing.T) {
	if errors.Is(ErrOrderNotFound, ErrOrderForbidden) {
		t.Error("distinct kinds must not match")
	}
}
