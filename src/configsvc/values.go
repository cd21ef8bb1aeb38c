package configsvc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// 配置值类型标签
const (
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeJSON    = "json"
	TypeString  = "string"
)

// ParseValue 按类型标签把存储的字符串转换为强类型值，解析失败时返回原字符串
func ParseValue(raw, typ string) (interface{}, error) {
	switch strings.ToLower(typ) {
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes", "on":
			return true, nil
		default:
			return false, nil
		}
	case TypeInteger:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return raw, fmt.Errorf("invalid integer %q", raw)
		}
		return v, nil
	case TypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return raw, fmt.Errorf("invalid float %q", raw)
		}
		return v, nil
	case TypeJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return raw, fmt.Errorf("invalid json %q", raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// FormatValue 把值转换为存储字符串，typ 为空时按值推断类型
func FormatValue(value interface{}, typ string) (string, string, error) {
	if typ == "" {
		typ = DetectType(value)
	}
	switch v := value.(type) {
	case string:
		return v, typ, nil
	case bool:
		return strconv.FormatBool(v), typ, nil
	case int:
		return strconv.Itoa(v), typ, nil
	case int64:
		return strconv.FormatInt(v, 10), typ, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), typ, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal config value: %w", err)
		}
		return string(raw), typ, nil
	}
}

// DetectType 推断值的类型标签
func DetectType(value interface{}) string {
	switch value.(type) {
	case bool:
		return TypeBoolean
	case int, int32, int64:
		return TypeInteger
	case float32, float64:
		return TypeFloat
	case map[string]interface{}, []interface{}:
		return TypeJSON
	default:
		return TypeString
	}
}

func asBool(v interface{}, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := ParseValue(b, TypeBoolean)
		return parsed.(bool)
	}
	return def
}

func asFloat(v interface{}, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return def
}

func asInt(v interface{}, def int) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}
