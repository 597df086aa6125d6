package engine

import (
	"fmt"
	"strings"
)

// Metric 受审计跟踪的指标
type Metric string

const (
	MetricTargetRate   Metric = "target_rate"
	MetricForecast     Metric = "forecast"
	MetricFTERequired  Metric = "fte_required"
	MetricFTEAvailable Metric = "fte_available"
	MetricCapacity     Metric = "capacity"
)

// monthMetrics 按月跟踪的指标（字段路径带月份标签前缀），顺序即审计输出顺序
var monthMetrics = [4]Metric{MetricForecast, MetricFTERequired, MetricFTEAvailable, MetricCapacity}

// FieldPath 字段路径：指标 + 可选月份标签
// 裸指标（target_rate）不带标签；按月指标形如 "Jun-25.fte_required"
type FieldPath struct {
	Metric     Metric
	MonthLabel string
}

// String 字段路径的序列化形式
func (p FieldPath) String() string {
	if p.MonthLabel == "" {
		return string(p.Metric)
	}
	return p.MonthLabel + "." + string(p.Metric)
}

// ParseFieldPath 解析字段路径，构造时即校验指标合法性
func ParseFieldPath(s string) (FieldPath, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 1 {
		m := Metric(parts[0])
		if m != MetricTargetRate {
			return FieldPath{}, fmt.Errorf("非法字段路径: %q (裸指标仅允许 target_rate)", s)
		}
		return FieldPath{Metric: m}, nil
	}

	label, metric := parts[0], Metric(parts[1])
	if label == "" {
		return FieldPath{}, fmt.Errorf("非法字段路径: %q (缺少月份标签)", s)
	}
	switch metric {
	case MetricForecast, MetricFTERequired, MetricFTEAvailable, MetricCapacity:
		return FieldPath{Metric: metric, MonthLabel: label}, nil
	default:
		return FieldPath{}, fmt.Errorf("非法字段路径: %q (未知指标 %q)", s, parts[1])
	}
}
