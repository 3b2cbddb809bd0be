package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
)

// Validate - 요청 payload 검증기 (json 필드명으로 에러 보고)
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("operation", validateOperation)
	_ = v.RegisterValidation("source", validateSource)
	return v
}

// validateOperation - 알려진 operation 이름인지
func validateOperation(fl validator.FieldLevel) bool {
	return model.Operation(fl.Field().String()).Valid()
}

// validateSource - 알려진 source kind인지
func validateSource(fl validator.FieldLevel) bool {
	return model.SourceKind(fl.Field().String()).Valid()
}

// Struct - 구조체 검증 후 첫 번째 실패를 Validation 에러로 변환
func Struct(op string, s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return apierr.Validation(op, "%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return apierr.Validation(op, "%s failed %s", fe.Field(), fe.Tag())
	}
	return apierr.Validation(op, "%v", err)
}
