package engine

import (
	"errors"
	"fmt"
	"log"
	"math"

	"crewplan/internal/calculator"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

// ErrValidation 变更请求非法（API 层据此映射为 400）
var ErrValidation = errors.New("invalid change request")

// 声明 delta 与复核 delta 允许的浮点误差
const deltaEpsilon = 1e-6

// Engine 预测重算与变更引擎
// Preview 与 Apply 共享同一条重算路径，保证预览输出与落库结果不可能分叉
type Engine struct {
	store    *store.Store
	resolver *window.Resolver
}

// New 创建引擎
func New(st *store.Store, resolver *window.Resolver) *Engine {
	return &Engine{store: st, resolver: resolver}
}

// filterChanges 复核声明 delta 并剔除无实际变化的变更项
// delta 不一致立即报校验错误；全部被剔除时返回空列表（由调用方决策）
func filterChanges(changes []model.ChangeRequest) ([]model.ChangeRequest, error) {
	var out []model.ChangeRequest
	for _, req := range changes {
		filtered := model.ChangeRequest{
			MainLOB:  req.MainLOB,
			State:    req.State,
			CaseType: req.CaseType,
			CaseID:   req.CaseID,
		}

		if req.TargetRate != nil {
			computed := req.TargetRate.New - req.TargetRate.Old
			if math.Abs(computed-req.TargetRate.Delta) > deltaEpsilon {
				return nil, fmt.Errorf("%w: %s target_rate 声明 delta=%v 与计算值 %v 不一致",
					ErrValidation, filtered.Key(), req.TargetRate.Delta, computed)
			}
			if req.TargetRate.New != req.TargetRate.Old {
				rc := *req.TargetRate
				filtered.TargetRate = &rc
			}
		}

		for label, ch := range req.FTEAvailable {
			computed := ch.New - ch.Old
			if math.Abs(computed-ch.Delta) > deltaEpsilon {
				return nil, fmt.Errorf("%w: %s %s.fte_available 声明 delta=%v 与计算值 %v 不一致",
					ErrValidation, filtered.Key(), label, ch.Delta, computed)
			}
			if ch.New != ch.Old {
				if filtered.FTEAvailable == nil {
					filtered.FTEAvailable = make(map[string]model.FTEChange)
				}
				filtered.FTEAvailable[label] = ch
			}
		}

		if filtered.TargetRate != nil || len(filtered.FTEAvailable) > 0 {
			out = append(out, filtered)
		}
	}
	return out, nil
}

// recomputedRecord 单条记录的重算结果
type recomputedRecord struct {
	record   *model.ForecastRecord // 新值已写入的记录副本
	modified model.ModifiedRecord
}

// batchResult 一批变更的重算结果（Preview 与 Apply 的共同产物）
type batchResult struct {
	window  window.MonthWindow
	records []recomputedRecord
	summary model.PreviewSummary
}

// recomputeBatch 对一批已过滤的变更执行重算
// 步骤：解析窗口 → 按业务类型记忆化配置 → 一次性装载报告期记录 →
// 逐条构建新旧快照并用公式引擎重算派生值 → 收集逐月差异
func (e *Engine) recomputeBatch(reportMonth string, reportYear int, changes []model.ChangeRequest) (*batchResult, error) {
	w, err := e.resolver.ResolveLabels(reportMonth, reportYear)
	if err != nil {
		return nil, err
	}

	// 同批内按业务类型记忆化月度配置，避免逐记录重复解析
	configsByWorkType := make(map[model.WorkType][model.WindowSize]model.MonthConfig)
	resolveConfigs := func(wt model.WorkType) ([model.WindowSize]model.MonthConfig, error) {
		if cfgs, ok := configsByWorkType[wt]; ok {
			return cfgs, nil
		}
		cfgs, err := e.resolver.ResolveConfigs(reportMonth, reportYear, wt)
		if err != nil {
			return cfgs, err
		}
		configsByWorkType[wt] = cfgs
		return cfgs, nil
	}

	// 一次性装载报告期全部记录，构建业务键索引，避免逐条查库
	records, err := e.store.GetForecastByPeriod(reportMonth, reportYear)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %d 无预测数据", window.ErrPeriodNotFound, reportMonth, reportYear)
	}
	index := make(map[string]*model.ForecastRecord, len(records))
	for _, r := range records {
		index[r.Key.String()] = r
	}

	result := &batchResult{window: w}

	for _, req := range changes {
		current, ok := index[req.Key().String()]
		if !ok {
			// 单条记录缺失只跳过，不拖垮整批
			log.Printf("警告: 预测记录不存在，跳过变更: %s", req.Key())
			continue
		}

		cfgs, err := resolveConfigs(current.WorkType())
		if err != nil {
			return nil, err
		}

		rec, err := e.recomputeRecord(current, &req, w, cfgs)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}

		result.records = append(result.records, *rec)
		for _, d := range rec.modified.Months {
			result.summary.TotalFTEChange += math.Abs(d.FTEAvailableChange)
			result.summary.TotalCapacityChange += math.Abs(d.CapacityChange)
		}
	}

	return result, nil
}

// recomputeRecord 重算单条记录
// 返回 nil 表示除裸 target_rate 标记外无任何字段变化，不纳入输出
func (e *Engine) recomputeRecord(current *model.ForecastRecord, req *model.ChangeRequest,
	w window.MonthWindow, cfgs [model.WindowSize]model.MonthConfig) (*recomputedRecord, error) {

	old := *current
	next := *current

	rateChanged := false
	if req.TargetRate != nil {
		next.TargetRate = req.TargetRate.New
		rateChanged = next.TargetRate != old.TargetRate
	}

	for label, ch := range req.FTEAvailable {
		pos, ok := w.IndexOf(label)
		if !ok {
			return nil, fmt.Errorf("%w: 月份标签 %q 不在报告期窗口内", ErrValidation, label)
		}
		next.Months[pos].FTEAvailable = ch.New
	}

	// target_rate 变化时按原预测量重算全部 6 个月的所需人力；
	// 可用人力变化不影响所需人力
	if rateChanged {
		for i := 0; i < model.WindowSize; i++ {
			fte, err := calculator.FTERequired(next.Months[i].Forecast, cfgs[i], next.TargetRate)
			if err != nil {
				return nil, err
			}
			next.Months[i].FTERequired = fte
		}
	}

	// 处理能力始终按（可能更新的）可用人力与目标时效重算
	for i := 0; i < model.WindowSize; i++ {
		cap, err := calculator.Capacity(next.Months[i].FTEAvailable, cfgs[i], next.TargetRate)
		if err != nil {
			return nil, err
		}
		next.Months[i].Capacity = cap
	}

	mod := model.ModifiedRecord{
		MainLOB:          current.Key.MainLOB,
		State:            current.Key.State,
		CaseType:         current.Key.CaseType,
		CaseID:           current.Key.CaseID,
		TargetRate:       next.TargetRate,
		TargetRateChange: next.TargetRate - old.TargetRate,
		Months:           make(map[string]model.MonthDiff),
	}
	if rateChanged {
		mod.ModifiedFields = append(mod.ModifiedFields, FieldPath{Metric: MetricTargetRate}.String())
	}

	monthTouched := false
	for i := 0; i < model.WindowSize; i++ {
		dReq := next.Months[i].FTERequired - old.Months[i].FTERequired
		dAvail := next.Months[i].FTEAvailable - old.Months[i].FTEAvailable
		dCap := next.Months[i].Capacity - old.Months[i].Capacity
		if dReq == 0 && dAvail == 0 && dCap == 0 {
			continue
		}

		// 某月任一指标变化时，该月全部四项指标一并标记为已修改，
		// 保证审计/导出层拿到完整的单月上下文而非片段
		monthTouched = true
		label := w.Labels[i]
		for _, metric := range monthMetrics {
			mod.ModifiedFields = append(mod.ModifiedFields,
				FieldPath{Metric: metric, MonthLabel: label}.String())
		}
		mod.Months[label] = model.MonthDiff{
			Forecast:           next.Months[i].Forecast,
			ForecastChange:     next.Months[i].Forecast - old.Months[i].Forecast,
			FTERequired:        next.Months[i].FTERequired,
			FTERequiredChange:  dReq,
			FTEAvailable:       next.Months[i].FTEAvailable,
			FTEAvailableChange: dAvail,
			Capacity:           next.Months[i].Capacity,
			CapacityChange:     dCap,
		}
	}

	// 除裸 target_rate 标记外无任何月度字段变化的记录不纳入输出
	if !monthTouched {
		return nil, nil
	}

	return &recomputedRecord{record: &next, modified: mod}, nil
}
