package runs

import "time"

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// 路线来源。
const (
	SourceInline  = "inline"
	SourceLibrary = "library"
	SourceProfile = "profile"
	SourceMarket  = "market"
)

// RunConfig 记录本次规划的参数快照，便于重放。
type RunConfig struct {
	Source     string `json:"source"`
	RouteName  string `json:"route_name,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Interval   string `json:"interval,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	QuoteScale int    `json:"quote_scale,omitempty"`
}

// RunStats 汇总一次规划的结果指标。
type RunStats struct {
	Stops        int       `json:"stops"`
	Selected     int       `json:"selected"`
	Skipped      int       `json:"skipped"`
	FinalBalance int64     `json:"final_balance"`
	PeakBalance  int64     `json:"peak_balance"`
	TotalValue   int64     `json:"total_value"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Run 表示一次规划任务。
type Run struct {
	ID          string    `json:"id"`
	RouteName   string    `json:"route_name"`
	Symbol      string    `json:"symbol"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Stops       int       `json:"stops"`
	Selected    int       `json:"selected"`
	FinalBal    int64     `json:"final_balance"`
	Message     string    `json:"message"`
	Config      RunConfig `json:"config"`
	Stats       RunStats  `json:"stats"`
	SelectedIdx []int     `json:"selected_indices"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Decision 记录规划器对单个停靠点的取舍，按结算顺序排列。
type Decision struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	ApplyOrder int    `json:"apply_order"`
	StopIndex  int    `json:"stop_index"`
	Value      int64  `json:"value"`
	Committed  bool   `json:"committed"`
	Balance    int64  `json:"balance"`
}

// Snapshot 保存余额曲线上的一个点。
type Snapshot struct {
	ID      int64  `json:"id"`
	RunID   string `json:"run_id"`
	Step    int    `json:"step"`
	Balance int64  `json:"balance"`
}
