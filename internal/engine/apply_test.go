package engine

import (
	"testing"

	"crewplan/internal/model"
)

// TestApply_MatchesPreview 测试预览→提交一致性：
// 落库值必须与同一载荷的预览新值逐字段相等
func TestApply_MatchesPreview(t *testing.T) {
	st := newTestStore(t)
	key := seedPeriod(t, st)
	e := newTestEngine(st)

	changes := []model.ChangeRequest{
		rateChange(key, 50, 100),
		{
			MainLOB: key.MainLOB, State: key.State, CaseType: key.CaseType, CaseID: key.CaseID,
			FTEAvailable: map[string]model.FTEChange{"Sep-25": {Old: 1, New: 4, Delta: 3}},
		},
	}

	preview, err := e.Preview("June", 2025, changes)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	outcome, err := e.Apply("June", 2025, changes)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Result.RecordsUpdated != 1 {
		t.Fatalf("records_updated = %d, want 1", outcome.Result.RecordsUpdated)
	}
	if outcome.Result.ForecastRowsAffected != 6 {
		t.Fatalf("forecast_rows_affected = %d, want 6", outcome.Result.ForecastRowsAffected)
	}

	// 重新装载，逐字段核对预览新值
	records, err := st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	var persisted *model.ForecastRecord
	for _, r := range records {
		if r.Key == key {
			persisted = r
		}
	}
	if persisted == nil {
		t.Fatal("记录丢失")
	}

	previewMod := preview.ModifiedRecords[0]
	if persisted.TargetRate != previewMod.TargetRate {
		t.Fatalf("target_rate 落库值 %v != 预览值 %v", persisted.TargetRate, previewMod.TargetRate)
	}

	labelByPos := map[int]string{}
	for pos, label := range preview.Months {
		labelByPos[monthPosition(t, pos)] = label
	}
	for i := 0; i < model.WindowSize; i++ {
		label := labelByPos[i+1]
		diff, touched := previewMod.Months[label]
		if !touched {
			continue
		}
		cell := persisted.Months[i]
		if cell.FTERequired != diff.FTERequired {
			t.Fatalf("%s fte_required 落库值 %d != 预览值 %d", label, cell.FTERequired, diff.FTERequired)
		}
		if cell.FTEAvailable != diff.FTEAvailable {
			t.Fatalf("%s fte_available 落库值 %v != 预览值 %v", label, cell.FTEAvailable, diff.FTEAvailable)
		}
		if cell.Capacity != diff.Capacity {
			t.Fatalf("%s capacity 落库值 %v != 预览值 %v", label, cell.Capacity, diff.Capacity)
		}
		if cell.Forecast != diff.Forecast {
			t.Fatalf("%s forecast 落库值 %v != 预览值 %v", label, cell.Forecast, diff.Forecast)
		}
	}
}

func monthPosition(t *testing.T, pos string) int {
	t.Helper()
	switch pos {
	case "month1":
		return 1
	case "month2":
		return 2
	case "month3":
		return 3
	case "month4":
		return 4
	case "month5":
		return 5
	case "month6":
		return 6
	}
	t.Fatalf("未知窗口位置: %q", pos)
	return 0
}

// TestApply_AllNoop 测试过滤后变更集为空时返回 (0,0) 且不触碰存储
func TestApply_AllNoop(t *testing.T) {
	st := newTestStore(t)
	key := seedPeriod(t, st)
	e := newTestEngine(st)

	before, err := st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	outcome, err := e.Apply("June", 2025, []model.ChangeRequest{rateChange(key, 50, 50)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Result.RecordsUpdated != 0 || outcome.Result.ForecastRowsAffected != 0 {
		t.Fatalf("expected (0,0), got %+v", outcome.Result)
	}

	after, err := st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(before) != len(after) {
		t.Fatal("记录数不应变化")
	}
	for i := range before {
		if before[i].TargetRate != after[i].TargetRate || before[i].Months != after[i].Months {
			t.Fatal("无变更提交不应改动存储")
		}
	}
}

// TestApply_MissingRecordSkipped 测试提交时记录缺失与预览同样跳过
func TestApply_MissingRecordSkipped(t *testing.T) {
	st := newTestStore(t)
	key := seedPeriod(t, st)
	e := newTestEngine(st)

	ghost := model.ChangeRequest{
		MainLOB: "Ghost", State: "NA", CaseType: "None", CaseID: "X",
		TargetRate: &model.RateChange{Old: 1, New: 2, Delta: 1},
	}
	outcome, err := e.Apply("June", 2025, []model.ChangeRequest{ghost, rateChange(key, 50, 100)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Result.RecordsUpdated != 1 {
		t.Fatalf("records_updated = %d, want 1", outcome.Result.RecordsUpdated)
	}
}
