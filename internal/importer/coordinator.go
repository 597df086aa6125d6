package importer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"crewplan/internal/calculator"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

// Coordinator 导入协调器
type Coordinator struct {
	store    *store.Store
	resolver *window.Resolver
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store, resolver *window.Resolver) *Coordinator {
	return &Coordinator{store: st, resolver: resolver}
}

// ImportOptions 导入选项
type ImportOptions struct {
	FilePath         string
	OriginalFilename string // 展示用的原始文件名，留空时取 FilePath 的文件名
	ReportMonth      string
	ReportYear       int
	UploadedBy       string
	SetCurrentPeriod bool // 导入成功后是否把该报告期设为当前期
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`    // start/sheet_start/sheet_done/done/error
	Message   string      `json:"message"` // 事件消息
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ImportSummary 导入结果汇总，随 done 事件返回
type ImportSummary struct {
	UploadID        int64              `json:"upload_id"`
	Status          model.UploadStatus `json:"status"`
	RecordsInserted int                `json:"records_inserted"`
	RosterMatched   int                `json:"roster_matched"`
	ConfigsUpserted int                `json:"configs_upserted"`
	RowErrors       []string           `json:"row_errors,omitempty"`
	DurationMs      int64              `json:"duration_ms"`
}

// Import 执行导入，返回进度通道，通道在导入结束后关闭
func (c *Coordinator) Import(opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doImport(opts, progressChan)
	}()

	return progressChan
}

func (c *Coordinator) sendProgress(ch chan ProgressEvent, ev ProgressEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ch <- ev
}

func (c *Coordinator) doImport(opts ImportOptions, progressChan chan ProgressEvent) {
	startTime := time.Now()
	filename := opts.OriginalFilename
	if filename == "" {
		filename = filepath.Base(opts.FilePath)
	}

	c.sendProgress(progressChan, ProgressEvent{
		Type:    "start",
		Message: "开始导入 Excel 文件",
		Data:    map[string]string{"filename": filename},
	})

	if _, ok := window.MonthIndex(opts.ReportMonth); !ok {
		c.fail(progressChan, 0, fmt.Sprintf("非法报告月: %q", opts.ReportMonth))
		return
	}

	file, err := excelize.OpenFile(opts.FilePath)
	if err != nil {
		c.fail(progressChan, 0, fmt.Sprintf("打开文件失败: %v", err))
		return
	}
	defer file.Close()

	var (
		forecastRows []ForecastRow
		labels       []string
		rosterRows   []RosterRow
		configRows   []MonthConfigRow
		rowErrs      []error
	)

	for _, sheetName := range file.GetSheetList() {
		rows, err := file.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}
		sheetType := RecognizeSheet(rows[0])
		if sheetType == SheetTypeUnknown {
			continue
		}
		c.sendProgress(progressChan, ProgressEvent{
			Type:    "sheet_start",
			Message: fmt.Sprintf("解析 Sheet: %s", sheetName),
			Data:    map[string]string{"sheet": sheetName, "sheet_type": string(sheetType)},
		})

		switch sheetType {
		case SheetTypeForecast:
			if forecastRows != nil {
				// 只取第一个预测 Sheet
				continue
			}
			rows, sheetLabels, errs, err := ParseForecastSheet(file, sheetName)
			if err != nil {
				c.fail(progressChan, 0, fmt.Sprintf("解析预测 Sheet 失败: %v", err))
				return
			}
			forecastRows, labels = rows, sheetLabels
			rowErrs = append(rowErrs, errs...)
		case SheetTypeRoster:
			rows, errs, err := ParseRosterSheet(file, sheetName)
			if err != nil {
				c.fail(progressChan, 0, fmt.Sprintf("解析排班 Sheet 失败: %v", err))
				return
			}
			rosterRows = append(rosterRows, rows...)
			rowErrs = append(rowErrs, errs...)
		case SheetTypeMonthConfig:
			rows, errs, err := ParseMonthConfigSheet(file, sheetName)
			if err != nil {
				c.fail(progressChan, 0, fmt.Sprintf("解析月度配置 Sheet 失败: %v", err))
				return
			}
			configRows = append(configRows, rows...)
			rowErrs = append(rowErrs, errs...)
		}

		c.sendProgress(progressChan, ProgressEvent{
			Type:    "sheet_done",
			Message: fmt.Sprintf("Sheet 解析完成: %s", sheetName),
			Data:    map[string]string{"sheet": sheetName},
		})
	}

	if len(forecastRows) == 0 {
		c.fail(progressChan, 0, "未找到有效的预测 Sheet")
		return
	}

	upload := &model.UploadRecord{
		ReportMonth: opts.ReportMonth,
		ReportYear:  opts.ReportYear,
		UploadedBy:  opts.UploadedBy,
		Filename:    filename,
		Status:      model.UploadStatusPending,
	}
	months, years, err := windowFromLabels(labels)
	if err != nil {
		c.fail(progressChan, 0, err.Error())
		return
	}
	upload.Months = months

	uploadID, err := c.store.CreateUpload(upload)
	if err != nil {
		c.fail(progressChan, 0, fmt.Sprintf("创建上传记录失败: %v", err))
		return
	}
	if err := c.store.UpdateUploadStatus(uploadID, model.UploadStatusInProgress, ""); err != nil {
		c.fail(progressChan, uploadID, fmt.Sprintf("更新上传状态失败: %v", err))
		return
	}

	configsUpserted := 0
	for _, row := range configRows {
		if err := c.store.UpsertMonthConfig(row.Config); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("月度配置写入失败 (%s %d): %w", row.Config.MonthName, row.Config.Year, err))
			continue
		}
		configsUpserted++
	}

	fteByKey := make(map[string]map[string]float64, len(rosterRows))
	for _, rr := range rosterRows {
		fteByKey[rr.Key.String()] = rr.FTE
	}

	records, rosterMatched, buildErrs := c.buildRecords(opts, forecastRows, labels, years, fteByKey)
	rowErrs = append(rowErrs, buildErrs...)

	if len(records) == 0 {
		c.fail(progressChan, uploadID, "所有数据行均解析失败")
		return
	}
	if err := c.store.BatchInsertForecast(records); err != nil {
		c.fail(progressChan, uploadID, fmt.Sprintf("写入预测数据失败: %v", err))
		return
	}

	status := model.UploadStatusSuccess
	if len(rowErrs) > 0 {
		status = model.UploadStatusPartialSuccess
	}
	if err := c.store.UpdateUploadStatus(uploadID, status, joinErrors(rowErrs)); err != nil {
		c.fail(progressChan, uploadID, fmt.Sprintf("更新上传状态失败: %v", err))
		return
	}
	c.resolver.Invalidate(opts.ReportMonth, opts.ReportYear)

	if opts.SetCurrentPeriod {
		if err := c.store.SetCurrentPeriod(opts.ReportMonth, opts.ReportYear); err != nil {
			c.fail(progressChan, uploadID, fmt.Sprintf("设置当前报告期失败: %v", err))
			return
		}
	}

	summary := ImportSummary{
		UploadID:        uploadID,
		Status:          status,
		RecordsInserted: len(records),
		RosterMatched:   rosterMatched,
		ConfigsUpserted: configsUpserted,
		RowErrors:       errorStrings(rowErrs),
		DurationMs:      time.Since(startTime).Milliseconds(),
	}
	c.sendProgress(progressChan, ProgressEvent{
		Type:    "done",
		Message: fmt.Sprintf("导入完成: %d 条记录, 耗时 %v", len(records), time.Since(startTime).Round(time.Millisecond)),
		Data:    summary,
	})
}

// buildRecords 把解析行拼装为完整预测记录，衍生字段在此一并计算
func (c *Coordinator) buildRecords(opts ImportOptions, forecastRows []ForecastRow, labels []string, years [model.WindowSize]int, fteByKey map[string]map[string]float64) ([]*model.ForecastRecord, int, []error) {
	type configKey struct {
		name     string
		year     int
		workType model.WorkType
	}
	configCache := make(map[configKey]model.MonthConfig)
	lookupConfig := func(name string, year int, wt model.WorkType) (model.MonthConfig, error) {
		ck := configKey{name, year, wt}
		if cfg, ok := configCache[ck]; ok {
			return cfg, nil
		}
		cfg, found, err := c.store.GetMonthConfig(name, year, wt)
		if err != nil {
			return cfg, err
		}
		if !found {
			cfg = model.DefaultMonthConfig(name, year, wt)
		}
		configCache[ck] = cfg
		return cfg, nil
	}

	names := make([]string, model.WindowSize)
	for pos, label := range labels {
		name, _, _ := window.ParseLabel(label)
		names[pos] = name
	}

	var records []*model.ForecastRecord
	var rowErrs []error
	rosterMatched := 0
	for _, fr := range forecastRows {
		r := &model.ForecastRecord{
			Key:         fr.Key,
			ReportMonth: opts.ReportMonth,
			ReportYear:  opts.ReportYear,
			TargetRate:  fr.TargetRate,
		}
		fte, hasRoster := fteByKey[fr.Key.String()]
		if hasRoster {
			rosterMatched++
		}

		failed := false
		for pos := 0; pos < model.WindowSize; pos++ {
			cfg, err := lookupConfig(names[pos], years[pos], r.WorkType())
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", fr.RowNo, err))
				failed = true
				break
			}
			cell := model.MonthCell{Forecast: fr.Forecasts[pos]}
			if hasRoster {
				cell.FTEAvailable = fte[labels[pos]]
			}
			cell.FTERequired, err = calculator.FTERequired(cell.Forecast, cfg, r.TargetRate)
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", fr.RowNo, err))
				failed = true
				break
			}
			cell.Capacity, err = calculator.Capacity(cell.FTEAvailable, cfg, r.TargetRate)
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("第 %d 行: %w", fr.RowNo, err))
				failed = true
				break
			}
			r.Months[pos] = cell
		}
		if failed {
			continue
		}
		records = append(records, r)
	}
	return records, rosterMatched, rowErrs
}

// windowFromLabels 从表头标签还原窗口的日历月名与年份
// 标签必须按时间顺序排列且恰好覆盖 6 个连续位置
func windowFromLabels(labels []string) ([model.WindowSize]string, [model.WindowSize]int, error) {
	var names [model.WindowSize]string
	var years [model.WindowSize]int
	if len(labels) != model.WindowSize {
		return names, years, fmt.Errorf("月份列数量为 %d，要求 %d", len(labels), model.WindowSize)
	}
	for i, label := range labels {
		name, year, err := window.ParseLabel(label)
		if err != nil {
			return names, years, fmt.Errorf("非法月份标签 %q: %v", label, err)
		}
		names[i] = name
		years[i] = year
	}
	for i := 1; i < model.WindowSize; i++ {
		prevIdx, _ := window.MonthIndex(names[i-1])
		idx, _ := window.MonthIndex(names[i])
		wrapped := idx == (prevIdx+1)%12
		sameYear := years[i] == years[i-1] && idx == prevIdx+1
		nextYear := years[i] == years[i-1]+1 && prevIdx == 11 && idx == 0
		if !wrapped || !(sameYear || nextYear) {
			return names, years, fmt.Errorf("月份标签不连续: %s -> %s", labels[i-1], labels[i])
		}
	}
	return names, years, nil
}

func (c *Coordinator) fail(ch chan ProgressEvent, uploadID int64, msg string) {
	if uploadID > 0 {
		if err := c.store.UpdateUploadStatus(uploadID, model.UploadStatusFailed, msg); err != nil {
			msg = fmt.Sprintf("%s (更新上传状态失败: %v)", msg, err)
		}
	}
	c.sendProgress(ch, ProgressEvent{Type: "error", Message: msg})
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	const maxShown = 10
	parts := errorStrings(errs)
	if len(parts) > maxShown {
		parts = append(parts[:maxShown], fmt.Sprintf("... 共 %d 个错误", len(errs)))
	}
	return strings.Join(parts, "; ")
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
