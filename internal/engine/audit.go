package engine

import (
	"fmt"

	"crewplan/internal/model"
)

// ExtractChanges 将 modified_records 展平为字段级审计行
// 输入为解码后的 JSON 记录；月份数据兼容两种历史形态：
// 平铺（月份数据直接挂在记录顶层的月份标签键下）与嵌套（挂在 months 键下）。
// 记录身份字段缺失视为结构性错误；单月数据块缺失视为该字段无数据，静默跳过
func ExtractChanges(records []map[string]interface{}) ([]model.ChangeRecord, error) {
	var out []model.ChangeRecord

	for i, rec := range records {
		mainLOB, ok := stringField(rec, "main_lob")
		if !ok {
			return nil, fmt.Errorf("modified_records[%d] 缺少身份字段 main_lob", i)
		}
		state, ok := stringField(rec, "state")
		if !ok {
			return nil, fmt.Errorf("modified_records[%d] 缺少身份字段 state", i)
		}
		caseType, ok := stringField(rec, "case_type")
		if !ok {
			return nil, fmt.Errorf("modified_records[%d] 缺少身份字段 case_type", i)
		}
		caseID, _ := stringField(rec, "case_id")

		for _, pathStr := range fieldPaths(rec) {
			path, err := ParseFieldPath(pathStr)
			if err != nil {
				return nil, fmt.Errorf("modified_records[%d]: %w", i, err)
			}

			row := model.ChangeRecord{
				MainLOB:    mainLOB,
				State:      state,
				CaseType:   caseType,
				CaseID:     caseID,
				FieldName:  path.String(),
				MonthLabel: path.MonthLabel,
			}

			if path.Metric == MetricTargetRate {
				fillValues(&row, rec, string(MetricTargetRate))
				out = append(out, row)
				continue
			}

			block, found := monthBlock(rec, path.MonthLabel)
			if !found {
				// 该月无数据块：此字段无数据，跳过
				continue
			}
			fillValues(&row, block, string(path.Metric))
			out = append(out, row)
		}
	}

	return out, nil
}

// fillValues 从数据块读取新值与增量并回推旧值
// 指标值非数值时 old/new/delta 保持 null
func fillValues(row *model.ChangeRecord, block map[string]interface{}, metric string) {
	newValue, ok := numberField(block, metric)
	if !ok {
		return
	}
	delta, ok := numberField(block, metric+"_change")
	if !ok {
		delta = 0
	}
	oldValue := newValue - delta
	row.NewValue = &newValue
	row.Delta = &delta
	row.OldValue = &oldValue
}

// monthBlock 定位单月数据块：先尝试平铺键，再尝试嵌套 months 键
// 显式返回是否命中，绝不因缺失而 panic
func monthBlock(record map[string]interface{}, label string) (map[string]interface{}, bool) {
	if v, ok := record[label]; ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m, true
		}
	}
	if v, ok := record["months"]; ok {
		if months, ok := v.(map[string]interface{}); ok {
			if v, ok := months[label]; ok {
				if m, ok := v.(map[string]interface{}); ok {
					return m, true
				}
			}
		}
	}
	return nil, false
}

func fieldPaths(record map[string]interface{}) []string {
	v, ok := record["modified_fields"]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// numberField 读取数值字段（JSON 解码产出 float64，直接构造时兼容 int）
func numberField(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
