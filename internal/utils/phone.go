package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneValidator 使用libphonenumber规则判断号码是否有效
type PhoneValidator struct {
	defaultRegion string
}

// NewPhoneValidator 创建校验器,defaultRegion 用于没有国家代码的号码(如 "US")
func NewPhoneValidator(defaultRegion string) *PhoneValidator {
	return &PhoneValidator{defaultRegion: strings.ToUpper(defaultRegion)}
}

// Valid 号码能被解析且是有效号码
func (v *PhoneValidator) Valid(phone string) bool {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), v.defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Format 格式化为E.164,无法解析时原样返回
func (v *PhoneValidator) Format(phone string) string {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), v.defaultRegion)
	if err != nil {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
