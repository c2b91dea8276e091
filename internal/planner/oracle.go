package planner

import (
	"fmt"
	"math/bits"
	"sort"
)

// MaxExactStops 是穷举参考解允许的最大停靠点数。2^N 枚举，再大就失控了。
const MaxExactStops = 20

// PlanExact 穷举所有子集求自由结算顺序下的最优数量，仅用于校验 Plan。
// 一个子集可行，当且仅当按价值降序结算时每个前缀余额都不为负。
// len(values) > MaxExactStops 时返回错误。
func PlanExact(values []int64) (int, error) {
	n := len(values)
	if n > MaxExactStops {
		return 0, fmt.Errorf("穷举规划最多支持 %d 个停靠点，收到 %d 个", MaxExactStops, n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})
	best := 0
	for mask := 0; mask < 1<<n; mask++ {
		size := bits.OnesCount(uint(mask))
		if size <= best {
			continue
		}
		if feasibleInOrder(values, order, mask) {
			best = size
		}
	}
	return best, nil
}

// PlanExactOrdered 穷举所有子集，但结算顺序固定为原始路线顺序。
// 这是"按途经顺序结算"变体的参考解，结果可能小于 PlanExact。
func PlanExactOrdered(values []int64) (int, error) {
	n := len(values)
	if n > MaxExactStops {
		return 0, fmt.Errorf("穷举规划最多支持 %d 个停靠点，收到 %d 个", MaxExactStops, n)
	}
	natural := make([]int, n)
	for i := range natural {
		natural[i] = i
	}
	best := 0
	for mask := 0; mask < 1<<n; mask++ {
		size := bits.OnesCount(uint(mask))
		if size <= best {
			continue
		}
		if feasibleInOrder(values, natural, mask) {
			best = size
		}
	}
	return best, nil
}

func feasibleInOrder(values []int64, order []int, mask int) bool {
	var balance int64
	for _, idx := range order {
		if mask&(1<<idx) == 0 {
			continue
		}
		balance += values[idx]
		if balance < 0 {
			return false
		}
	}
	return true
}
