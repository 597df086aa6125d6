package exporter

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

// Exporter 预测工作簿导出器
// 输出两个 Sheet：预测明细（含衍生字段）与变更历史
// 配置了模板路径时在模板工作簿上填充，保留模板自带的样式与其他 Sheet
type Exporter struct {
	store        *store.Store
	resolver     *window.Resolver
	templatePath string
}

// NewExporter 创建导出器
func NewExporter(st *store.Store, resolver *window.Resolver, templatePath string) *Exporter {
	return &Exporter{store: st, resolver: resolver, templatePath: templatePath}
}

// ExportOptions 导出选项
type ExportOptions struct {
	ReportMonth string
	ReportYear  int
}

const (
	forecastSheet = "Forecast"
	historySheet  = "Change History"
)

// Export 导出报告期的预测工作簿
func (e *Exporter) Export(opts ExportOptions) (*excelize.File, error) {
	w, err := e.resolver.ResolveLabels(opts.ReportMonth, opts.ReportYear)
	if err != nil {
		return nil, err
	}

	records, err := e.store.GetForecastByPeriod(opts.ReportMonth, opts.ReportYear)
	if err != nil {
		return nil, fmt.Errorf("读取预测数据失败: %w", err)
	}

	history, err := e.store.ListChangeRecords(opts.ReportMonth, opts.ReportYear, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("读取变更历史失败: %w", err)
	}

	f, err := e.openWorkbook()
	if err != nil {
		return nil, err
	}
	if err := e.fillForecastSheet(f, w, records); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.fillHistorySheet(f, history); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func (e *Exporter) openWorkbook() (*excelize.File, error) {
	if p := strings.TrimSpace(e.templatePath); p != "" {
		f, err := excelize.OpenFile(p)
		if err != nil {
			return nil, fmt.Errorf("打开导出模板失败: %w", err)
		}
		if _, err := f.NewSheet(forecastSheet); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", forecastSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Filename 导出文件名，形如 forecast_June_2025.xlsx
func Filename(reportMonth string, reportYear int) string {
	return fmt.Sprintf("forecast_%s_%d.xlsx", reportMonth, reportYear)
}

func (e *Exporter) fillForecastSheet(f *excelize.File, w window.MonthWindow, records []*model.ForecastRecord) error {
	header := []interface{}{"Main LOB", "State", "Case Type", "Case ID", "Target Rate"}
	for _, label := range w.Labels {
		header = append(header,
			fmt.Sprintf("%s Forecast", label),
			fmt.Sprintf("%s FTE Required", label),
			fmt.Sprintf("%s FTE Available", label),
			fmt.Sprintf("%s Capacity", label),
		)
	}
	if err := setRow(f, forecastSheet, 1, header); err != nil {
		return err
	}
	if err := applyHeaderStyle(f, forecastSheet, len(header)); err != nil {
		return err
	}

	for i, r := range records {
		row := []interface{}{r.Key.MainLOB, r.Key.State, r.Key.CaseType, r.Key.CaseID, r.TargetRate}
		for _, cell := range r.Months {
			row = append(row, cell.Forecast, cell.FTERequired, cell.FTEAvailable, cell.Capacity)
		}
		if err := setRow(f, forecastSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) fillHistorySheet(f *excelize.File, history []store.ChangeHistoryEntry) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}

	header := []interface{}{"Main LOB", "State", "Case Type", "Case ID", "Field", "Month", "Old Value", "New Value", "Delta", "Changed By", "Changed At"}
	if err := setRow(f, historySheet, 1, header); err != nil {
		return err
	}
	if err := applyHeaderStyle(f, historySheet, len(header)); err != nil {
		return err
	}

	for i, cr := range history {
		row := []interface{}{
			cr.MainLOB, cr.State, cr.CaseType, cr.CaseID,
			cr.FieldName, cr.MonthLabel,
			floatCell(cr.OldValue), floatCell(cr.NewValue), floatCell(cr.Delta),
			cr.ChangedBy, cr.ChangedAt,
		}
		if err := setRow(f, historySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func applyHeaderStyle(f *excelize.File, sheet string, cols int) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styleID)
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// SanitizeFilename 清理文件名中的路径分隔符
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
