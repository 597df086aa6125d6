package calculator

import (
	"fmt"
	"math"

	"crewplan/internal/model"
)

// ErrInvalidInput 公式输入校验错误（API 层据此映射为 400）
var ErrInvalidInput = fmt.Errorf("公式输入非法")

func invalid(field string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, fmt.Sprintf(format, args...))
}

// validateConfig 校验公式用到的配置参数
// 注意：occupancy 不参与公式，这里不校验，由配置写入口负责
func validateConfig(cfg model.MonthConfig) error {
	if cfg.WorkingDays <= 0 {
		return invalid("working_days", "= %d (必须 > 0)", cfg.WorkingDays)
	}
	if cfg.WorkHours <= 0 {
		return invalid("work_hours", "= %v (必须 > 0)", cfg.WorkHours)
	}
	if cfg.Shrinkage < 0 || cfg.Shrinkage >= 1 {
		return invalid("shrinkage", "= %v (必须在 [0,1) 内)", cfg.Shrinkage)
	}
	return nil
}

// FTERequired 计算所需人力
// 公式：ceil( forecast / (工作日 × 日工时 × (1-损耗率) × 目标时效) )
// forecast 或 targetRate 为 0 时返回 0
func FTERequired(forecast float64, cfg model.MonthConfig, targetRate float64) (int, error) {
	if forecast < 0 {
		return 0, invalid("forecast", "= %v (必须 >= 0)", forecast)
	}
	if targetRate < 0 {
		return 0, invalid("target_rate", "= %v (必须 >= 0)", targetRate)
	}
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	if forecast == 0 || targetRate == 0 {
		return 0, nil
	}

	denom := float64(cfg.WorkingDays) * cfg.WorkHours * (1 - cfg.Shrinkage) * targetRate
	if denom <= 0 {
		return 0, invalid("denominator", "= %v (工作日=%d 日工时=%v 损耗率=%v 目标时效=%v)",
			denom, cfg.WorkingDays, cfg.WorkHours, cfg.Shrinkage, targetRate)
	}
	return int(math.Ceil(forecast / denom)), nil
}

// Capacity 计算处理能力
// 公式：floor( 可用人力 × 工作日 × 日工时 × (1-损耗率) × 目标时效 )
// 向下取整，保证产能为保守估计；fteAvailable 或 targetRate 为 0 时返回 0
func Capacity(fteAvailable float64, cfg model.MonthConfig, targetRate float64) (float64, error) {
	if fteAvailable < 0 {
		return 0, invalid("fte_available", "= %v (必须 >= 0)", fteAvailable)
	}
	if targetRate < 0 {
		return 0, invalid("target_rate", "= %v (必须 >= 0)", targetRate)
	}
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	if fteAvailable == 0 || targetRate == 0 {
		return 0, nil
	}
	return math.Floor(fteAvailable * float64(cfg.WorkingDays) * cfg.WorkHours * (1 - cfg.Shrinkage) * targetRate), nil
}
