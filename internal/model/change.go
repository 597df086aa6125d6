package model

// RateChange 目标时效变更（客户端同时声明 delta，引擎独立复核）
type RateChange struct {
	Old   float64 `json:"old_value"`
	New   float64 `json:"new_value"`
	Delta float64 `json:"delta"`
}

// FTEChange 单月可用人力变更
type FTEChange struct {
	Old   float64 `json:"old_value"`
	New   float64 `json:"new_value"`
	Delta float64 `json:"delta"`
}

// ChangeRequest 单条记录的变更请求
// FTEAvailable 以月份标签（如 "Jun-25"）为键
type ChangeRequest struct {
	MainLOB      string               `json:"main_lob"`
	State        string               `json:"state"`
	CaseType     string               `json:"case_type"`
	CaseID       string               `json:"case_id"`
	TargetRate   *RateChange          `json:"target_rate,omitempty"`
	FTEAvailable map[string]FTEChange `json:"fte_available,omitempty"`
}

// Key 变更请求对应的记录业务键
func (c *ChangeRequest) Key() RecordKey {
	return RecordKey{MainLOB: c.MainLOB, State: c.State, CaseType: c.CaseType, CaseID: c.CaseID}
}

// MonthDiff 单月各指标的新值与增量
type MonthDiff struct {
	Forecast           float64 `json:"forecast"`
	ForecastChange     float64 `json:"forecast_change"`
	FTERequired        int     `json:"fte_required"`
	FTERequiredChange  int     `json:"fte_required_change"`
	FTEAvailable       float64 `json:"fte_available"`
	FTEAvailableChange float64 `json:"fte_available_change"`
	Capacity           float64 `json:"capacity"`
	CapacityChange     float64 `json:"capacity_change"`
}

// ModifiedRecord 预览输出中的单条修改记录
// 月份数据统一挂在 months 键下（嵌套形态）；审计提取器同时兼容
// 历史上月份数据直接平铺在记录顶层的旧形态
type ModifiedRecord struct {
	MainLOB          string               `json:"main_lob"`
	State            string               `json:"state"`
	CaseType         string               `json:"case_type"`
	CaseID           string               `json:"case_id"`
	TargetRate       float64              `json:"target_rate"`
	TargetRateChange float64              `json:"target_rate_change"`
	ModifiedFields   []string             `json:"modified_fields"`
	Months           map[string]MonthDiff `json:"months"`
}

// PreviewSummary 预览汇总（逐月增量绝对值求和）
type PreviewSummary struct {
	TotalFTEChange      float64 `json:"total_fte_change"`
	TotalCapacityChange float64 `json:"total_capacity_change"`
}

// PreviewResult 预览结果
// 该结构序列化后即为提交（apply）的唯一合法载荷，中间不允许任何再加工
type PreviewResult struct {
	ReportMonth     string            `json:"report_month"`
	ReportYear      int               `json:"report_year"`
	Months          map[string]string `json:"months"` // month1..month6 → 月份标签
	ModifiedRecords []ModifiedRecord  `json:"modified_records"`
	TotalModified   int               `json:"total_modified"`
	Summary         PreviewSummary    `json:"summary"`
}

// ApplyResult 提交结果
type ApplyResult struct {
	RecordsUpdated       int `json:"records_updated"`
	ForecastRowsAffected int `json:"forecast_rows_affected"`
}

// ChangeRecord 字段级审计行
// FieldName 为裸指标名（如 target_rate）或 "<月份标签>.<指标名>"
// 指标值非数值时 old/new/delta 记为 null
type ChangeRecord struct {
	ID         int64    `json:"id,omitempty"`
	MainLOB    string   `json:"main_lob"`
	State      string   `json:"state"`
	CaseType   string   `json:"case_type"`
	CaseID     string   `json:"case_id"`
	FieldName  string   `json:"field_name"`
	OldValue   *float64 `json:"old_value"`
	NewValue   *float64 `json:"new_value"`
	Delta      *float64 `json:"delta"`
	MonthLabel string   `json:"month_label,omitempty"`
}
