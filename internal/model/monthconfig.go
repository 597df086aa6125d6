package model

import "fmt"

// MonthConfig 月度工时配置
// occupancy 字段在历史数据中一直存在且参与校验，但公式并不使用它，
// 是否应纳入计算待产品确认，这里保持现状
type MonthConfig struct {
	MonthName   string   `json:"month_name"`
	Year        int      `json:"year"`
	WorkType    WorkType `json:"work_type"`
	WorkingDays int      `json:"working_days"` // 工作日天数
	WorkHours   float64  `json:"work_hours"`   // 每日工时
	Shrinkage   float64  `json:"shrinkage"`    // 损耗率 [0,1)
	Occupancy   float64  `json:"occupancy"`    // 占用率 (0,1]
}

// 缺省月度配置参数
const (
	DefaultWorkingDays = 21
	DefaultWorkHours   = 9.0
	DefaultShrinkage   = 0.10
	DefaultOccupancy   = 0.95
)

// DefaultMonthConfig 返回缺省月度配置（配置行缺失时兜底）
func DefaultMonthConfig(monthName string, year int, workType WorkType) MonthConfig {
	return MonthConfig{
		MonthName:   monthName,
		Year:        year,
		WorkType:    workType,
		WorkingDays: DefaultWorkingDays,
		WorkHours:   DefaultWorkHours,
		Shrinkage:   DefaultShrinkage,
		Occupancy:   DefaultOccupancy,
	}
}

// Validate 校验配置取值范围
func (c MonthConfig) Validate() error {
	if c.WorkingDays <= 0 {
		return fmt.Errorf("working_days 非法: %d (必须 > 0)", c.WorkingDays)
	}
	if c.WorkHours <= 0 {
		return fmt.Errorf("work_hours 非法: %v (必须 > 0)", c.WorkHours)
	}
	if c.Shrinkage < 0 || c.Shrinkage >= 1 {
		return fmt.Errorf("shrinkage 非法: %v (必须在 [0,1) 内)", c.Shrinkage)
	}
	if c.Occupancy <= 0 || c.Occupancy > 1 {
		return fmt.Errorf("occupancy 非法: %v (必须在 (0,1] 内)", c.Occupancy)
	}
	return nil
}
