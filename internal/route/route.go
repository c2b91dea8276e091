package route

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stop 是路线上的一个停靠点，Value 为最小货币单位的盈亏。
type Stop struct {
	Index int    `json:"index"`
	Value int64  `json:"value"`
	Label string `json:"label,omitempty"`
}

// Route 是一条待规划的路线。Name/Symbol 仅作标识，算法只消费 Values()。
type Route struct {
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Stops  []Stop `json:"stops"`
}

// FromValues 用裸数值构造路线，下标按出现顺序编号。
func FromValues(values []int64) Route {
	stops := make([]Stop, len(values))
	for i, v := range values {
		stops[i] = Stop{Index: i, Value: v}
	}
	return Route{Stops: stops}
}

// Values 返回各停靠点盈亏，顺序与路线一致。
func (r Route) Values() []int64 {
	out := make([]int64, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.Value
	}
	return out
}

// Stats 汇总一条路线的概况，供接口展示。
type Stats struct {
	Stops        int    `json:"stops"`
	TotalValue   int64  `json:"total_value"`
	WorstValue   int64  `json:"worst_value"`
	NonNegative  int    `json:"non_negative"`
	TotalDisplay string `json:"total_display"`
}

// Summarize 计算路线统计。TotalDisplay 按 scale 位小数转为主货币单位。
func (r Route) Summarize(scale int32) Stats {
	st := Stats{Stops: len(r.Stops)}
	for i, s := range r.Stops {
		st.TotalValue += s.Value
		if i == 0 || s.Value < st.WorstValue {
			st.WorstValue = s.Value
		}
		if s.Value >= 0 {
			st.NonNegative++
		}
	}
	st.TotalDisplay = FormatMinor(st.TotalValue, scale)
	return st
}

// FormatMinor 把最小货币单位的数值转成主单位字符串，如 scale=2 时 1050 -> "10.50"。
func FormatMinor(minor int64, scale int32) string {
	if scale <= 0 {
		return decimal.NewFromInt(minor).String()
	}
	return decimal.NewFromInt(minor).Shift(-scale).StringFixed(scale)
}

// Validate 做最基本的结构检查，规划核心自身不做输入校验。
func (r Route) Validate() error {
	if len(r.Stops) == 0 {
		return fmt.Errorf("路线至少需要一个停靠点")
	}
	return nil
}
