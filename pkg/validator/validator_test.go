package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Action string   `json:"action" validate:"required,oneof=MARK_AS_READ MARK_ALL_AS_READ"`
	UIDs   []string `json:"uids" validate:"omitempty,dive,uuid4"`
	Limit  int      `json:"limit" validate:"gte=0"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Action: "MARK_AS_READ",
		UIDs:   []string{"0b6f1c2e-3f0e-4f7c-9c53-3f1d1c9b7a10"},
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Action: "EXPLODE",
		UIDs:   []string{"not-a-uuid"},
		Limit:  -1,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	first, ok := vErrs.First()
	if !ok || first.Field != "action" || first.Tag != "oneof" {
		t.Fatalf("unexpected first failure: %+v", first)
	}
}

func TestFirstOnEmpty(t *testing.T) {
	if _, ok := ValidationErrors(nil).First(); ok {
		t.Fatal("expected no failure on empty list")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("notifystream", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "notifystream"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"notifystream"`
	}

	if err := ValidateStruct(custom{Value: "notifystream"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
