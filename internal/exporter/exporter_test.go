package exporter

import (
	"path/filepath"
	"testing"

	"crewplan/internal/cache"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPeriod(t *testing.T, st *store.Store) {
	t.Helper()
	upload := &model.UploadRecord{
		ReportMonth: "June",
		ReportYear:  2025,
		Months:      [model.WindowSize]string{"June", "July", "August", "September", "October", "November"},
		UploadedBy:  "tester",
		Filename:    "upload.xlsx",
		Status:      model.UploadStatusPending,
	}
	id, err := st.CreateUpload(upload)
	if err != nil {
		t.Fatalf("创建上传记录失败: %v", err)
	}
	if err := st.UpdateUploadStatus(id, model.UploadStatusSuccess, ""); err != nil {
		t.Fatalf("更新上传状态失败: %v", err)
	}

	r := &model.ForecastRecord{
		Key:         model.RecordKey{MainLOB: "Payments", State: "TX", CaseType: "Claims", CaseID: "C1"},
		ReportMonth: "June",
		ReportYear:  2025,
		TargetRate:  50,
	}
	for i := 0; i < model.WindowSize; i++ {
		r.Months[i] = model.MonthCell{Forecast: 1000, FTERequired: 1, FTEAvailable: 10, Capacity: 85050}
	}
	if err := st.BatchInsertForecast([]*model.ForecastRecord{r}); err != nil {
		t.Fatalf("写入预测数据失败: %v", err)
	}

	oldVal, newVal, delta := 50.0, 100.0, 50.0
	err = st.BatchInsertChangeRecords("June", 2025, "tester", []model.ChangeRecord{{
		MainLOB: "Payments", State: "TX", CaseType: "Claims", CaseID: "C1",
		FieldName: "target_rate", OldValue: &oldVal, NewValue: &newVal, Delta: &delta,
	}})
	if err != nil {
		t.Fatalf("写入变更历史失败: %v", err)
	}
}

func TestExportWorkbook(t *testing.T) {
	st := newTestStore(t)
	seedPeriod(t, st)
	e := NewExporter(st, window.NewResolver(st, cache.New(64)), "")

	f, err := e.Export(ExportOptions{ReportMonth: "June", ReportYear: 2025})
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != forecastSheet || sheets[1] != historySheet {
		t.Fatalf("Sheet 列表不符: %v", sheets)
	}

	// 表头：5 个身份列 + 每月 4 个指标列
	rows, err := f.GetRows(forecastSheet)
	if err != nil {
		t.Fatalf("读取预测 Sheet 失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("预测 Sheet 行数 = %d, want 2", len(rows))
	}
	if want := 5 + model.WindowSize*4; len(rows[0]) != want {
		t.Errorf("表头列数 = %d, want %d", len(rows[0]), want)
	}
	if rows[0][5] != "Jun-25 Forecast" || rows[0][8] != "Jun-25 Capacity" {
		t.Errorf("月份表头不符: %v", rows[0][5:9])
	}
	if rows[1][0] != "Payments" || rows[1][4] != "50" {
		t.Errorf("数据行不符: %v", rows[1][:5])
	}

	hrows, err := f.GetRows(historySheet)
	if err != nil {
		t.Fatalf("读取历史 Sheet 失败: %v", err)
	}
	if len(hrows) != 2 {
		t.Fatalf("历史 Sheet 行数 = %d, want 2", len(hrows))
	}
	if hrows[1][4] != "target_rate" || hrows[1][6] != "50" || hrows[1][7] != "100" {
		t.Errorf("历史行不符: %v", hrows[1])
	}
}

func TestExportUnknownPeriod(t *testing.T) {
	st := newTestStore(t)
	e := NewExporter(st, window.NewResolver(st, cache.New(64)), "")

	if _, err := e.Export(ExportOptions{ReportMonth: "June", ReportYear: 2030}); err == nil {
		t.Fatal("未知报告期应报错")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("June", 2025); got != "forecast_June_2025.xlsx" {
		t.Errorf("Filename = %s", got)
	}
}
