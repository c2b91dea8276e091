package planner

import "sort"

// Result 是一次规划的完整输出。Count 始终有效；Selected 与 Trajectory
// 是附带信息，调用方只关心数量时可以忽略。
type Result struct {
	// Count 入选停靠点数量，0..len(values)。
	Count int `json:"count"`
	// Selected 入选停靠点的原始下标，升序。
	Selected []int `json:"selected"`
	// Trajectory 按结算顺序（价值降序）记录每次入账后的余额。
	Trajectory []int64 `json:"trajectory"`
}

// Step 记录规划器对单个停靠点的取舍。Balance 为该步之后的余额，
// 跳过的停靠点余额不变。
type Step struct {
	Index     int   `json:"index"`
	Value     int64 `json:"value"`
	Committed bool  `json:"committed"`
	Balance   int64 `json:"balance"`
}

// Plan 返回在余额不为负约束下最多可入选的停靠点数量。
// 空序列返回 0；全负序列返回 0；全非负序列返回 len(values)。
func Plan(values []int64) int {
	return PlanDetailed(values).Count
}

// PlanDetailed 与 Plan 同一算法，额外返回入选下标与余额轨迹。
func PlanDetailed(values []int64) Result {
	steps := Trace(values)
	res := Result{
		Selected:   make([]int, 0, len(steps)),
		Trajectory: make([]int64, 0, len(steps)),
	}
	for _, st := range steps {
		if !st.Committed {
			continue
		}
		res.Count++
		res.Selected = append(res.Selected, st.Index)
		res.Trajectory = append(res.Trajectory, st.Balance)
	}
	sort.Ints(res.Selected)
	return res
}

// Trace 执行贪心选择并返回逐停靠点的取舍轨迹，按结算顺序排列。
//
// 算法：价值降序排列（等值时保持原始下标升序，保证结果可复现），
// 逐个尝试入账，余额会变负的停靠点永久跳过。O(N log N)。
func Trace(values []int64) []Step {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	// SliceStable keeps equal values in ascending index order.
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})

	steps := make([]Step, 0, len(values))
	var balance int64
	for _, idx := range order {
		v := values[idx]
		committed := balance+v >= 0
		if committed {
			balance += v
		}
		steps = append(steps, Step{
			Index:     idx,
			Value:     v,
			Committed: committed,
			Balance:   balance,
		})
	}
	return steps
}
