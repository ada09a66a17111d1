// Package conv 提供原始特征值的类型转换工具，用于简化各模块中的重复逻辑。
package conv

import (
	"fmt"
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
// 字符串不做隐式转换，数值解析统一走 ParseFloat。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToRawString 把原始特征值统一转为字符串表示，用于类别查表与数值解析。
// string 原样返回；数值按最短往返格式；nil 或空串返回 ("", false) 表示缺失。
func ToRawString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case bool:
		if val {
			return "1", true
		}
		return "0", true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// ParseFloat 宽松解析数值字符串：两侧空白被忽略，失败返回 (0, false)。
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
