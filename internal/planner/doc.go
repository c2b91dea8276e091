// Package planner 实现路线停靠点的选择算法。
//
// 输入是一条路线上各停靠点的盈亏序列（最小货币单位，int64）。规划器从空钱包
// （余额 0）出发，挑选尽可能多的停靠点，要求每笔入选盈亏记账时余额都不为负。
// 约定：入选停靠点的结算顺序可以自由安排，与原始路线顺序无关——在这个约定下
// 按价值降序贪心是精确解，而不是启发式。若要求严格按原始顺序结算，属于另一个
// 更难的问题，PlanExactOrdered 给出它的穷举参考解，两者可能不一致。
package planner
