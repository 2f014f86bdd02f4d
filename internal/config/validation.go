package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 针对语义级别做进一步校验，防止非法配置进入下载流程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return newFieldError(fe.StructField(), reasonFor(fe))
		}
		return fmt.Errorf("校验配置失败: %w", err)
	}

	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return newFieldError("Burst", "启用限速时必须大于 0")
	}
	return nil
}

// reasonFor 将 validator 的 tag 转成面向用户的原因描述。
func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "oneof":
		return "仅支持 " + fe.Param()
	case "gte":
		return "不能小于 " + fe.Param()
	case "lte":
		return "不能大于 " + fe.Param()
	default:
		return fmt.Sprintf("校验失败 (%s)", fe.Tag())
	}
}
