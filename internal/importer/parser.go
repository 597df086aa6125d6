package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"crewplan/internal/model"
	"crewplan/internal/window"
)

// SheetType 表示 Excel 中识别到的 Sheet 类型
type SheetType string

const (
	SheetTypeForecast    SheetType = "forecast"
	SheetTypeRoster      SheetType = "roster"
	SheetTypeMonthConfig SheetType = "month_config"
	SheetTypeUnknown     SheetType = "unknown"
)

// ForecastRow 预测 Sheet 中的一行数据
type ForecastRow struct {
	Key        model.RecordKey
	TargetRate float64
	Forecasts  [model.WindowSize]float64
	RowNo      int
}

// RosterRow 排班 Sheet 中的一行数据，按月份标签存放可用 FTE
type RosterRow struct {
	Key   model.RecordKey
	FTE   map[string]float64
	RowNo int
}

// MonthConfigRow 月度配置 Sheet 中的一行数据
type MonthConfigRow struct {
	Config model.MonthConfig
	RowNo  int
}

// identity 列与目标时效列的表头别名，全部按规范化后的小写匹配
var identityAliases = map[string]string{
	"main lob":     "main_lob",
	"lob":          "main_lob",
	"state":        "state",
	"case type":    "case_type",
	"casetype":     "case_type",
	"case id":      "case_id",
	"caseid":       "case_id",
	"target rate":  "target_rate",
	"cph":          "target_rate",
	"rate":         "target_rate",
	"working days": "working_days",
	"work days":    "working_days",
	"work hours":   "work_hours",
	"hours":        "work_hours",
	"shrinkage":    "shrinkage",
	"occupancy":    "occupancy",
	"month":        "month",
	"year":         "year",
	"work type":    "work_type",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	for strings.Contains(h, "  ") {
		h = strings.ReplaceAll(h, "  ", " ")
	}
	return h
}

// mapHeaders 把表头行解析为 字段名->列下标 和 月份标签列的有序列表
func mapHeaders(headers []string) (fields map[string]int, labels []string, labelCols []int) {
	fields = make(map[string]int)
	for i, h := range headers {
		norm := normalizeHeader(h)
		if norm == "" {
			continue
		}
		if field, ok := identityAliases[norm]; ok {
			if _, seen := fields[field]; !seen {
				fields[field] = i
			}
			continue
		}
		if _, _, err := window.ParseLabel(strings.TrimSpace(h)); err == nil {
			labels = append(labels, strings.TrimSpace(h))
			labelCols = append(labelCols, i)
		}
	}
	return fields, labels, labelCols
}

// RecognizeSheet 根据表头识别 Sheet 类型，表头无法识别时返回 SheetTypeUnknown
func RecognizeSheet(headers []string) SheetType {
	fields, labels, _ := mapHeaders(headers)
	_, hasLOB := fields["main_lob"]
	_, hasRate := fields["target_rate"]
	_, hasMonth := fields["month"]
	_, hasDays := fields["working_days"]
	switch {
	case hasMonth && hasDays:
		return SheetTypeMonthConfig
	case hasLOB && hasRate && len(labels) > 0:
		return SheetTypeForecast
	case hasLOB && len(labels) > 0:
		return SheetTypeRoster
	default:
		return SheetTypeUnknown
	}
}

func cellString(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func cellFloat(row []string, col int) (float64, error) {
	raw := cellString(row, col)
	if raw == "" {
		return 0, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSuffix(raw, "%")
	return strconv.ParseFloat(raw, 64)
}

func rowKey(fields map[string]int, row []string) (model.RecordKey, error) {
	key := model.RecordKey{
		MainLOB:  cellString(row, colOrMissing(fields, "main_lob")),
		State:    cellString(row, colOrMissing(fields, "state")),
		CaseType: cellString(row, colOrMissing(fields, "case_type")),
		CaseID:   cellString(row, colOrMissing(fields, "case_id")),
	}
	if key.MainLOB == "" || key.State == "" || key.CaseType == "" {
		return key, fmt.Errorf("身份列不完整: %q", key.String())
	}
	return key, nil
}

func colOrMissing(fields map[string]int, name string) int {
	if col, ok := fields[name]; ok {
		return col
	}
	return -1
}

// ParseForecastSheet 解析预测 Sheet，返回数据行、按列顺序的 6 个月份标签和逐行错误
func ParseForecastSheet(f *excelize.File, sheetName string) ([]ForecastRow, []string, []error, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 2 {
		return nil, nil, nil, fmt.Errorf("sheet %s 没有数据行", sheetName)
	}
	fields, labels, labelCols := mapHeaders(rows[0])
	if len(labels) != model.WindowSize {
		return nil, nil, nil, fmt.Errorf("sheet %s 月份列数量为 %d，要求 %d", sheetName, len(labels), model.WindowSize)
	}
	if _, ok := fields["target_rate"]; !ok {
		return nil, nil, nil, fmt.Errorf("sheet %s 缺少目标时效列", sheetName)
	}

	var out []ForecastRow
	var rowErrs []error
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		key, err := rowKey(fields, row)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", i+1, err))
			continue
		}
		rate, err := cellFloat(row, fields["target_rate"])
		if err != nil || rate <= 0 {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: 目标时效非法: %q", i+1, cellString(row, fields["target_rate"])))
			continue
		}
		fr := ForecastRow{Key: key, TargetRate: rate, RowNo: i + 1}
		bad := false
		for pos, col := range labelCols {
			v, err := cellFloat(row, col)
			if err != nil || v < 0 {
				rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: 月份 %s 预测量非法: %q", i+1, labels[pos], cellString(row, col)))
				bad = true
				break
			}
			fr.Forecasts[pos] = v
		}
		if bad {
			continue
		}
		out = append(out, fr)
	}
	return out, labels, rowErrs, nil
}

// ParseRosterSheet 解析排班 Sheet，按月份标签收集可用 FTE
func ParseRosterSheet(f *excelize.File, sheetName string) ([]RosterRow, []error, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 2 {
		return nil, nil, nil
	}
	fields, labels, labelCols := mapHeaders(rows[0])

	var out []RosterRow
	var rowErrs []error
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		key, err := rowKey(fields, row)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", i+1, err))
			continue
		}
		rr := RosterRow{Key: key, FTE: make(map[string]float64, len(labels)), RowNo: i + 1}
		bad := false
		for pos, col := range labelCols {
			v, err := cellFloat(row, col)
			if err != nil || v < 0 {
				rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: 月份 %s FTE 非法: %q", i+1, labels[pos], cellString(row, col)))
				bad = true
				break
			}
			rr.FTE[labels[pos]] = v
		}
		if bad {
			continue
		}
		out = append(out, rr)
	}
	return out, rowErrs, nil
}

// ParseMonthConfigSheet 解析月度配置 Sheet
func ParseMonthConfigSheet(f *excelize.File, sheetName string) ([]MonthConfigRow, []error, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 2 {
		return nil, nil, nil
	}
	fields, _, _ := mapHeaders(rows[0])
	for _, required := range []string{"month", "year", "working_days", "work_hours"} {
		if _, ok := fields[required]; !ok {
			return nil, nil, fmt.Errorf("sheet %s 缺少列 %s", sheetName, required)
		}
	}

	var out []MonthConfigRow
	var rowErrs []error
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		monthName := cellString(row, fields["month"])
		idx, ok := window.MonthIndex(monthName)
		if !ok {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: 未知月名: %q", i+1, monthName))
			continue
		}
		year, err := cellFloat(row, fields["year"])
		if err != nil || year < 2000 {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: 年份非法: %q", i+1, cellString(row, fields["year"])))
			continue
		}
		workType := model.ClassifyWorkType(cellString(row, colOrMissing(fields, "work_type")), "")

		fullName, _ := window.MonthName(idx)
		cfg := model.DefaultMonthConfig(fullName, int(year), workType)
		if v, err := cellFloat(row, fields["working_days"]); err == nil && v > 0 {
			cfg.WorkingDays = int(v)
		}
		if v, err := cellFloat(row, fields["work_hours"]); err == nil && v > 0 {
			cfg.WorkHours = v
		}
		if col, ok := fields["shrinkage"]; ok {
			if v, err := cellFloat(row, col); err == nil {
				if v >= 1 {
					v /= 100
				}
				cfg.Shrinkage = v
			}
		}
		if col, ok := fields["occupancy"]; ok {
			if v, err := cellFloat(row, col); err == nil && v > 0 {
				if v > 1 {
					v /= 100
				}
				cfg.Occupancy = v
			}
		}
		if err := cfg.Validate(); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", i+1, err))
			continue
		}
		out = append(out, MonthConfigRow{Config: cfg, RowNo: i + 1})
	}
	return out, rowErrs, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
