package model

import "strings"

// WorkType 业务线类型
type WorkType string

const (
	WorkTypeDomestic WorkType = "Domestic" // 国内业务
	WorkTypeGlobal   WorkType = "Global"   // 国际业务
)

// ClassifyWorkType 根据 LOB / 案件类型判定业务线类型
// 规则：LOB 或案件类型中带 global / intl 标记的归为国际业务，其余为国内业务
func ClassifyWorkType(mainLOB, caseType string) WorkType {
	lob := strings.ToLower(mainLOB)
	ct := strings.ToLower(caseType)
	if strings.Contains(lob, "global") || strings.Contains(lob, "intl") ||
		strings.Contains(ct, "global") || strings.Contains(ct, "intl") {
		return WorkTypeGlobal
	}
	return WorkTypeDomestic
}

// RecordKey 预测记录业务键
type RecordKey struct {
	MainLOB  string `json:"main_lob"`
	State    string `json:"state"`
	CaseType string `json:"case_type"`
	CaseID   string `json:"case_id"`
}

// String 业务键的规范化表示（用于内存索引与日志）
func (k RecordKey) String() string {
	return k.MainLOB + "|" + k.State + "|" + k.CaseType + "|" + k.CaseID
}

// WindowSize 预测窗口长度（6 个月滚动）
const WindowSize = 6

// MonthCell 单个预测月的四元组
type MonthCell struct {
	Forecast     float64 `json:"forecast"`      // 预测案件量
	FTERequired  int     `json:"fte_required"`  // 所需人力（派生值）
	FTEAvailable float64 `json:"fte_available"` // 可用人力
	Capacity     float64 `json:"capacity"`      // 处理能力（派生值）
}

// ForecastRecord 预测记录
// fte_required 与 capacity 永远由公式派生，不接受外部直接写入
type ForecastRecord struct {
	ID          int64                 `json:"id"`
	Key         RecordKey             `json:"key"`
	ReportMonth string                `json:"report_month"`
	ReportYear  int                   `json:"report_year"`
	TargetRate  float64               `json:"target_rate"` // 目标时效（件/小时）
	Months      [WindowSize]MonthCell `json:"months"`      // 按窗口位置 month1..month6
}

// WorkType 记录所属业务线类型
func (r *ForecastRecord) WorkType() WorkType {
	return ClassifyWorkType(r.Key.MainLOB, r.Key.CaseType)
}
