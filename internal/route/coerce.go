package route

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// CoerceValuesJSON 宽松解析请求体里的停靠点盈亏序列。
// 兼容三种形态：裸数组 [4,-8,3]、数值字符串数组 ["4","-8"]、
// 以及包了一层的对象 {"values": [...]} 或 {"stops": [...]}。
// 对象数组元素取其 value 字段。其余形态一律报错。
func CoerceValuesJSON(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("json 内容为空")
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("json 格式无效")
	}
	parsed := gjson.Parse(raw)
	if parsed.IsArray() {
		return coerceArray(parsed)
	}
	if !parsed.IsObject() {
		return nil, fmt.Errorf("根节点必须是 JSON 数组或对象")
	}
	for _, key := range []string{"values", "stops"} {
		if node := parsed.Get(key); node.Exists() {
			if !node.IsArray() {
				return nil, fmt.Errorf("%s 必须是数组", key)
			}
			return coerceArray(node)
		}
	}
	return nil, fmt.Errorf("对象中缺少 values 或 stops 数组")
}

func coerceArray(arr gjson.Result) ([]int64, error) {
	items := arr.Array()
	out := make([]int64, 0, len(items))
	for i, item := range items {
		v, err := coerceValue(item)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个元素：%w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func coerceValue(item gjson.Result) (int64, error) {
	switch item.Type {
	case gjson.Number:
		f := item.Float()
		n := int64(f)
		if float64(n) != f {
			return 0, fmt.Errorf("期望整数，收到 %v", item.Raw)
		}
		return n, nil
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(item.String()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析整数 %q", item.String())
		}
		return n, nil
	case gjson.JSON:
		if item.IsObject() {
			if v := item.Get("value"); v.Exists() {
				return coerceValue(v)
			}
		}
		return 0, fmt.Errorf("不支持的元素形态 %s", item.Raw)
	default:
		return 0, fmt.Errorf("不支持的元素类型 %s", item.Type)
	}
}
