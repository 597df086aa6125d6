package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"crewplan/internal/cache"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	st, err := store.New(filepath.Join(dataDir, "test.db"))
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	resolver := window.NewResolver(st, cache.New(64))
	h := NewHandler(st, resolver, HandlerOptions{
		DataDir:  dataDir,
		Defaults: model.DefaultMonthConfig("", 0, model.WorkTypeDomestic),
	})

	router := gin.New()
	h.RegisterRoutes(router.Group("/api"))
	return router, st
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
	forecasts := [6]float64{1000, 50000, 0, 8505, 2000, 3000}
	required := [6]int{1, 6, 0, 1, 1, 1}
	available := [6]float64{10, 5, 0, 1, 2, 3}
	capacity := [6]float64{85050, 42525, 0, 8505, 17010, 25515}
	for i := 0; i < model.WindowSize; i++ {
		r.Months[i] = model.MonthCell{
			Forecast:     forecasts[i],
			FTERequired:  required[i],
			FTEAvailable: available[i],
			Capacity:     capacity[i],
		}
	}
	if err := st.BatchInsertForecast([]*model.ForecastRecord{r}); err != nil {
		t.Fatalf("写入预测数据失败: %v", err)
	}
	if err := st.SetCurrentPeriod("June", 2025); err != nil {
		t.Fatalf("设置当前报告期失败: %v", err)
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("编码请求体失败: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("解析响应失败: %v (body=%s)", err, w.Body.String())
	}
}

func rateChangeBody(old, new_ float64) map[string]interface{} {
	return map[string]interface{}{
		"report_month": "June",
		"report_year":  2025,
		"changed_by":   "tester",
		"changes": []map[string]interface{}{{
			"main_lob":  "Payments",
			"state":     "TX",
			"case_type": "Claims",
			"case_id":   "C1",
			"target_rate": map[string]float64{
				"old_value": old,
				"new_value": new_,
				"delta":     new_ - old,
			},
		}},
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	// 空库：未初始化
	w := doJSON(t, router, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var resp StatusResponse
	decodeBody(t, w, &resp)
	if resp.Initialized {
		t.Error("空库不应标记为已初始化")
	}

	seedPeriod(t, st)
	w = doJSON(t, router, http.MethodGet, "/api/status", nil)
	decodeBody(t, w, &resp)
	if !resp.Initialized || resp.ReportMonth != "June" || resp.ReportYear != 2025 || resp.RecordCount != 1 {
		t.Errorf("状态响应不符: %+v", resp)
	}
	if resp.LastUploader != "tester" {
		t.Errorf("最后上传人 = %q", resp.LastUploader)
	}
}

func TestPreviewAndApplyFlow(t *testing.T) {
	router, st := newTestRouter(t)
	seedPeriod(t, st)

	// 预览不落库
	w := doJSON(t, router, http.MethodPost, "/api/forecast/preview", rateChangeBody(50, 100))
	if w.Code != http.StatusOK {
		t.Fatalf("preview code = %d (body=%s)", w.Code, w.Body.String())
	}
	var preview model.PreviewResult
	decodeBody(t, w, &preview)
	if preview.TotalModified != 1 {
		t.Fatalf("total_modified = %d, want 1", preview.TotalModified)
	}
	if preview.Months["month1"] != "Jun-25" {
		t.Errorf("months.month1 = %s", preview.Months["month1"])
	}

	records, err := st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("读取预测数据失败: %v", err)
	}
	if records[0].TargetRate != 50 {
		t.Fatal("预览不应修改存储")
	}

	// 提交：落库并产生审计行
	w = doJSON(t, router, http.MethodPost, "/api/forecast/apply", rateChangeBody(50, 100))
	if w.Code != http.StatusOK {
		t.Fatalf("apply code = %d (body=%s)", w.Code, w.Body.String())
	}
	var applied applyResponse
	decodeBody(t, w, &applied)
	if applied.RecordsUpdated != 1 || applied.ForecastRowsAffected != model.WindowSize {
		t.Errorf("apply 结果不符: %+v", applied)
	}
	if applied.AuditRows == 0 {
		t.Error("提交应产生审计行")
	}

	records, err = st.GetForecastByPeriod("June", 2025)
	if err != nil {
		t.Fatalf("读取预测数据失败: %v", err)
	}
	if records[0].TargetRate != 100 {
		t.Errorf("target_rate = %v, want 100", records[0].TargetRate)
	}

	// 历史记录总数与审计行一致
	w = doJSON(t, router, http.MethodGet, "/api/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history code = %d", w.Code)
	}
	var history struct {
		Items []store.ChangeHistoryEntry `json:"items"`
		Total int                        `json:"total"`
	}
	decodeBody(t, w, &history)
	if history.Total != applied.AuditRows {
		t.Errorf("history total = %d, want %d", history.Total, applied.AuditRows)
	}
	if len(history.Items) == 0 || history.Items[0].ChangedBy != "tester" {
		t.Errorf("历史行不符: %+v", history.Items)
	}
}

func TestPreviewValidation(t *testing.T) {
	router, st := newTestRouter(t)
	seedPeriod(t, st)

	// 空变更集
	body := map[string]interface{}{
		"report_month": "June",
		"report_year":  2025,
		"changes":      []map[string]interface{}{},
	}
	w := doJSON(t, router, http.MethodPost, "/api/forecast/preview", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("空变更集 code = %d, want 400", w.Code)
	}

	// delta 与新旧值不一致
	bad := rateChangeBody(50, 100)
	bad["changes"].([]map[string]interface{})[0]["target_rate"].(map[string]float64)["delta"] = 1
	w = doJSON(t, router, http.MethodPost, "/api/forecast/preview", bad)
	if w.Code != http.StatusBadRequest {
		t.Errorf("delta 不一致 code = %d, want 400", w.Code)
	}

	// 未知报告期
	unknown := rateChangeBody(50, 100)
	unknown["report_year"] = 2030
	w = doJSON(t, router, http.MethodPost, "/api/forecast/preview", unknown)
	if w.Code != http.StatusNotFound {
		t.Errorf("未知报告期 code = %d, want 404", w.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	router, st := newTestRouter(t)
	seedPeriod(t, st)

	patch := map[string]interface{}{
		"configs": []model.MonthConfig{{
			MonthName:   "June",
			Year:        2025,
			WorkType:    model.WorkTypeDomestic,
			WorkingDays: 22,
			WorkHours:   8,
			Shrinkage:   0.15,
			Occupancy:   0.9,
		}},
	}
	w := doJSON(t, router, http.MethodPatch, "/api/config", patch)
	if w.Code != http.StatusOK {
		t.Fatalf("patch config code = %d (body=%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/config?year=2025", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get config code = %d", w.Code)
	}
	var resp configResponse
	decodeBody(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].WorkingDays != 22 {
		t.Errorf("配置列表不符: %+v", resp.Items)
	}
	if resp.Defaults.WorkingDays != model.DefaultWorkingDays {
		t.Errorf("缺省配置不符: %+v", resp.Defaults)
	}

	// 非法取值被拒绝
	bad := map[string]interface{}{
		"configs": []map[string]interface{}{{
			"month_name": "June", "year": 2025, "work_type": "Domestic",
			"working_days": 0, "work_hours": 8, "shrinkage": 0.1, "occupancy": 0.9,
		}},
	}
	w = doJSON(t, router, http.MethodPatch, "/api/config", bad)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法配置 code = %d, want 400", w.Code)
	}
}

func TestExportAndDownload(t *testing.T) {
	router, st := newTestRouter(t)
	seedPeriod(t, st)

	w := doJSON(t, router, http.MethodPost, "/api/export", map[string]interface{}{
		"report_month": "June",
		"report_year":  2025,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("export code = %d (body=%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Token    string `json:"token"`
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	decodeBody(t, w, &resp)
	if resp.Token == "" || resp.Filename != "forecast_June_2025.xlsx" {
		t.Fatalf("导出响应不符: %+v", resp)
	}

	// 下载一次成功
	req := httptest.NewRequest(http.MethodGet, resp.URL, nil)
	dl := httptest.NewRecorder()
	router.ServeHTTP(dl, req)
	if dl.Code != http.StatusOK {
		t.Fatalf("download code = %d", dl.Code)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %s", ct)
	}
	if dl.Body.Len() == 0 {
		t.Error("下载内容为空")
	}

	// token 一次性，二次下载失效
	dl2 := httptest.NewRecorder()
	router.ServeHTTP(dl2, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	if dl2.Code != http.StatusNotFound {
		t.Errorf("二次下载 code = %d, want 404", dl2.Code)
	}
}

func TestForecastListFilters(t *testing.T) {
	router, st := newTestRouter(t)
	seedPeriod(t, st)

	w := doJSON(t, router, http.MethodGet, "/api/forecast?keyword=payments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code = %d", w.Code)
	}
	var resp forecastListResponse
	decodeBody(t, w, &resp)
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("过滤结果不符: total=%d items=%d", resp.Total, len(resp.Items))
	}
	if resp.Months["month6"] != "Nov-25" {
		t.Errorf("months.month6 = %s", resp.Months["month6"])
	}

	w = doJSON(t, router, http.MethodGet, "/api/forecast?main_lob=Nonexistent", nil)
	decodeBody(t, w, &resp)
	if resp.Total != 0 {
		t.Errorf("不存在的 LOB total = %d", resp.Total)
	}

	// 单条查询
	id := seedRecordID(t, st)
	w = doJSON(t, router, http.MethodGet, "/api/forecast/"+strconv.FormatInt(id, 10), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get record code = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/forecast/999999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("未知记录 code = %d, want 404", w.Code)
	}
}

func seedRecordID(t *testing.T, st *store.Store) int64 {
	t.Helper()
	records, err := st.GetForecastByPeriod("June", 2025)
	if err != nil || len(records) == 0 {
		t.Fatalf("读取预测数据失败: %v", err)
	}
	return records[0].ID
}

func TestImportEndpointRejectsBadForm(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewBufferString("not a form"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法表单 code = %d, want 400", w.Code)
	}
}
