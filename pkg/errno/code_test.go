package errno

import (
	"errors"
	"fmt"
	"testing"
)

func TestSubCodesMatchInvalidInput(t *testing.T) {
	for _, e := range []*Errno{ErrMediaRefRequired, ErrUnsupportedMedia, ErrTaskIDRequired, ErrInvalidLanguage, ErrInvalidProfile} {
		biz := NewBizError(e, "detail")
		if !errors.Is(biz, e) {
			t.Errorf("%d: does not match itself", e.Code)
		}
		if !errors.Is(fmt.Errorf("wrapped: %w", biz), ErrInvalidInput) {
			t.Errorf("%d: does not match ErrInvalidInput", e.Code)
		}
		if CodeOf(biz) != e.Code {
			t.Errorf("CodeOf = %d, want %d", CodeOf(biz), e.Code)
		}
	}
	if errors.Is(ErrInvalidInput, ErrUnsupportedMedia) {
		t.Error("parent must not match a sub code")
	}
	if errors.Is(ErrTaskNotFound, ErrInvalidInput) {
		t.Error("unrelated code matched ErrInvalidInput")
	}
}
