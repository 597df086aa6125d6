package importer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

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

func newTestCoordinator(st *store.Store) (*Coordinator, *window.Resolver) {
	resolver := window.NewResolver(st, cache.New(64))
	return NewCoordinator(st, resolver), resolver
}

var testLabels = []string{"Jun-25", "Jul-25", "Aug-25", "Sep-25", "Oct-25", "Nov-25"}

// writeWorkbook 生成一个测试用 Excel 文件
func writeWorkbook(t *testing.T, build func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	build(f)
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存测试文件失败: %v", err)
	}
	return path
}

func setRows(t *testing.T, f *excelize.File, sheet string, rows [][]interface{}) {
	t.Helper()
	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("创建 Sheet 失败: %v", err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("写入行失败: %v", err)
		}
	}
}

func forecastHeader() []interface{} {
	h := []interface{}{"Main LOB", "State", "Case Type", "Case ID", "Target Rate"}
	for _, l := range testLabels {
		h = append(h, l)
	}
	return h
}

func rosterHeader() []interface{} {
	h := []interface{}{"Main LOB", "State", "Case Type", "Case ID"}
	for _, l := range testLabels {
		h = append(h, l)
	}
	return h
}

// drain 读完进度通道，返回 done 事件汇总，遇到 error 事件时返回其消息
func drain(t *testing.T, ch <-chan ProgressEvent) (ImportSummary, string) {
	t.Helper()
	var summary ImportSummary
	var errMsg string
	gotDone := false
	for ev := range ch {
		switch ev.Type {
		case "done":
			s, ok := ev.Data.(ImportSummary)
			if !ok {
				t.Fatalf("done 事件数据类型错误: %T", ev.Data)
			}
			summary = s
			gotDone = true
		case "error":
			errMsg = ev.Message
		}
	}
	if !gotDone && errMsg == "" {
		t.Fatal("进度通道既无 done 也无 error 事件")
	}
	return summary, errMsg
}

func TestRecognizeSheet(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    SheetType
	}{
		{"预测表头", []string{"Main LOB", "State", "Case Type", "Case ID", "Target Rate", "Jun-25"}, SheetTypeForecast},
		{"排班表头", []string{"Main LOB", "State", "Case Type", "Case ID", "Jun-25", "Jul-25"}, SheetTypeRoster},
		{"月度配置表头", []string{"Month", "Year", "Work Type", "Working Days", "Work Hours", "Shrinkage", "Occupancy"}, SheetTypeMonthConfig},
		{"表头别名", []string{"LOB", "State", "CaseType", "CaseID", "CPH", "Jun-25"}, SheetTypeForecast},
		{"无法识别", []string{"Name", "Value"}, SheetTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecognizeSheet(tt.headers); got != tt.want {
				t.Errorf("RecognizeSheet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImportFullWorkbook(t *testing.T) {
	st := newTestStore(t)
	coord, resolver := newTestCoordinator(st)

	path := writeWorkbook(t, func(f *excelize.File) {
		setRows(t, f, "Sheet1", [][]interface{}{
			forecastHeader(),
			{"Payments", "TX", "Claims", "C1", 50, 1000, 50000, 0, 8505, 2000, 3000},
			{"Global Ops", "CA", "Intake", "G1", 40, 400, 500, 600, 700, 800, 900},
		})
		setRows(t, f, "Roster", [][]interface{}{
			rosterHeader(),
			{"Payments", "TX", "Claims", "C1", 10, 5, 0, 1, 2, 3},
		})
		setRows(t, f, "Month Config", [][]interface{}{
			{"Month", "Year", "Work Type", "Working Days", "Work Hours", "Shrinkage", "Occupancy"},
			{"June", 2025, "Domestic", 21, 9, 0.10, 0.95},
		})
	})

	summary, errMsg := drain(t, coord.Import(ImportOptions{
		FilePath:         path,
		ReportMonth:      "June",
		ReportYear:       2025,
		UploadedBy:       "tester",
		SetCurrentPeriod: true,
	}))
	if errMsg != "" {
		t.Fatalf("导入失败: %s", errMsg)
	}
	if summary.Status != model.UploadStatusSuccess {
		t.Fatalf("状态 = %s, want SUCCESS (errors: %v)", summary.Status, summary.RowErrors)
	}
	if summary.RecordsInserted != 2 || summary.RosterMatched != 1 || summary.ConfigsUpserted != 1 {
		t.Fatalf("汇总不符: %+v", summary)
	}

	// 上传记录应保存窗口月名并处于 SUCCESS
	upload, err := st.GetUpload(summary.UploadID)
	if err != nil {
		t.Fatalf("读取上传记录失败: %v", err)
	}
	if upload.Status != model.UploadStatusSuccess || upload.UploadedBy != "tester" {
		t.Errorf("上传记录不符: %+v", upload)
	}
	if upload.Months[0] != "June" || upload.Months[5] != "November" {
		t.Errorf("窗口月名不符: %v", upload.Months)
	}

	// 窗口解析应直接可用
	w, err := resolver.ResolveLabels("June", 2025)
	if err != nil {
		t.Fatalf("解析窗口失败: %v", err)
	}
	for i, want := range testLabels {
		if w.Labels[i] != want {
			t.Errorf("Labels[%d] = %s, want %s", i, w.Labels[i], want)
		}
	}

	// 衍生字段按导入时的配置计算
	records, err := st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("读取预测数据失败: %v", err)
	}
	byKey := make(map[string]*model.ForecastRecord)
	for _, r := range records {
		byKey[r.Key.String()] = r
	}
	r := byKey["Payments|TX|Claims|C1"]
	if r == nil {
		t.Fatal("缺少 Payments 记录")
	}
	// 21 天 * 9 小时 * (1-0.10) * 50 = 8505
	wantFTE := [6]int{1, 6, 0, 1, 1, 1}
	wantCap := [6]float64{85050, 42525, 0, 8505, 17010, 25515}
	for i := 0; i < model.WindowSize; i++ {
		if r.Months[i].FTERequired != wantFTE[i] {
			t.Errorf("month%d FTERequired = %d, want %d", i+1, r.Months[i].FTERequired, wantFTE[i])
		}
		if r.Months[i].Capacity != wantCap[i] {
			t.Errorf("month%d Capacity = %v, want %v", i+1, r.Months[i].Capacity, wantCap[i])
		}
	}

	// 无排班行的记录 FTE 可用量为 0
	g := byKey["Global Ops|CA|Intake|G1"]
	if g == nil {
		t.Fatal("缺少 Global Ops 记录")
	}
	if g.WorkType() != model.WorkTypeGlobal {
		t.Errorf("WorkType = %s, want Global", g.WorkType())
	}
	for i := 0; i < model.WindowSize; i++ {
		if g.Months[i].FTEAvailable != 0 || g.Months[i].Capacity != 0 {
			t.Errorf("month%d 应无可用量: %+v", i+1, g.Months[i])
		}
	}

	// 当前报告期已更新
	month, year, err := st.GetCurrentPeriod()
	if err != nil || month != "June" || year != 2025 {
		t.Errorf("当前报告期 = %s %d (err=%v), want June 2025", month, year, err)
	}
}

func TestImportPartialSuccess(t *testing.T) {
	st := newTestStore(t)
	coord, _ := newTestCoordinator(st)

	path := writeWorkbook(t, func(f *excelize.File) {
		setRows(t, f, "Sheet1", [][]interface{}{
			forecastHeader(),
			{"Payments", "TX", "Claims", "C1", 50, 1000, 2000, 3000, 4000, 5000, 6000},
			{"Payments", "TX", "Claims", "C2", "bad", 1000, 2000, 3000, 4000, 5000, 6000},
		})
	})

	summary, errMsg := drain(t, coord.Import(ImportOptions{
		FilePath:    path,
		ReportMonth: "June",
		ReportYear:  2025,
		UploadedBy:  "tester",
	}))
	if errMsg != "" {
		t.Fatalf("导入失败: %s", errMsg)
	}
	if summary.Status != model.UploadStatusPartialSuccess {
		t.Fatalf("状态 = %s, want PARTIAL_SUCCESS", summary.Status)
	}
	if summary.RecordsInserted != 1 || len(summary.RowErrors) != 1 {
		t.Fatalf("汇总不符: %+v", summary)
	}

	upload, err := st.GetUpload(summary.UploadID)
	if err != nil {
		t.Fatalf("读取上传记录失败: %v", err)
	}
	if !strings.Contains(upload.ErrorMessage, "目标时效非法") {
		t.Errorf("错误信息未记录: %q", upload.ErrorMessage)
	}
}

func TestImportNoForecastSheet(t *testing.T) {
	st := newTestStore(t)
	coord, _ := newTestCoordinator(st)

	path := writeWorkbook(t, func(f *excelize.File) {
		setRows(t, f, "Sheet1", [][]interface{}{{"Name", "Value"}, {"a", "1"}})
	})

	_, errMsg := drain(t, coord.Import(ImportOptions{
		FilePath:    path,
		ReportMonth: "June",
		ReportYear:  2025,
	}))
	if !strings.Contains(errMsg, "预测 Sheet") {
		t.Fatalf("期望预测 Sheet 缺失错误, got %q", errMsg)
	}

	if _, err := st.ListUploads(10); err != nil {
		t.Fatalf("查询上传记录失败: %v", err)
	}
	uploads, _ := st.ListUploads(10)
	if len(uploads) != 0 {
		t.Errorf("不应创建上传记录: %d 条", len(uploads))
	}
}

func TestWindowFromLabelsCrossYear(t *testing.T) {
	labels := []string{"Oct-25", "Nov-25", "Dec-25", "Jan-26", "Feb-26", "Mar-26"}
	names, years, err := windowFromLabels(labels)
	if err != nil {
		t.Fatalf("windowFromLabels: %v", err)
	}
	if names[0] != "October" || names[3] != "January" {
		t.Errorf("月名不符: %v", names)
	}
	if years[2] != 2025 || years[3] != 2026 {
		t.Errorf("年份不符: %v", years)
	}

	if _, _, err := windowFromLabels([]string{"Oct-25", "Dec-25", "Jan-26", "Feb-26", "Mar-26", "Apr-26"}); err == nil {
		t.Error("不连续标签应报错")
	}
}
