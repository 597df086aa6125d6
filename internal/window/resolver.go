package window

import (
	"errors"
	"fmt"
	"log"
	"time"

	"crewplan/internal/cache"
	"crewplan/internal/model"
	"crewplan/internal/store"
)

// ErrPeriodNotFound 报告期不存在（无上传记录或无预测数据）
var ErrPeriodNotFound = errors.New("report period not found")

// 月度配置缓存的保留时长；标签一旦上传即不可变，永不过期
const configTTL = 5 * time.Minute

// MonthWindow 报告期的 6 个月滚动窗口
type MonthWindow struct {
	ReportMonth string
	ReportYear  int
	// 窗口各位置的日历月名、实际年份与标签（month1..month6 顺序）
	Names  [model.WindowSize]string
	Years  [model.WindowSize]int
	Labels [model.WindowSize]string
}

// PositionMap 窗口位置到标签的映射（month1..month6）
func (w MonthWindow) PositionMap() map[string]string {
	out := make(map[string]string, model.WindowSize)
	for i, label := range w.Labels {
		out[fmt.Sprintf("month%d", i+1)] = label
	}
	return out
}

// IndexOf 标签在窗口中的位置（0..5）
func (w MonthWindow) IndexOf(label string) (int, bool) {
	for i, l := range w.Labels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

// Resolver 月份窗口解析器
// 标签与月度配置的查询结果经由注入的缓存复用，避免一批变更内反复查库
type Resolver struct {
	store *store.Store
	cache *cache.Cache
}

// NewResolver 创建解析器
func NewResolver(st *store.Store, c *cache.Cache) *Resolver {
	return &Resolver{store: st, cache: c}
}

// ResolveLabels 将报告期解析为 6 个按时间排列的月份标签
// 窗口月的日历序号早于报告月时年份进一（滚动窗口跨年）
func (r *Resolver) ResolveLabels(reportMonth string, reportYear int) (MonthWindow, error) {
	reportIdx, ok := MonthIndex(reportMonth)
	if !ok {
		return MonthWindow{}, fmt.Errorf("非法报告月: %q", reportMonth)
	}

	cacheKey := fmt.Sprintf("labels:%s:%d", reportMonth, reportYear)
	if v, ok := r.cache.Get(cacheKey); ok {
		return v.(MonthWindow), nil
	}

	upload, err := r.store.GetLatestUpload(reportMonth, reportYear)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MonthWindow{}, fmt.Errorf("%w: %s %d", ErrPeriodNotFound, reportMonth, reportYear)
		}
		return MonthWindow{}, err
	}

	w := MonthWindow{ReportMonth: reportMonth, ReportYear: reportYear}
	for i, name := range upload.Months {
		idx, ok := MonthIndex(name)
		if !ok {
			return MonthWindow{}, fmt.Errorf("上传记录携带未知月名: %q", name)
		}
		fullName, _ := MonthName(idx)
		year := reportYear
		if idx < reportIdx {
			year = reportYear + 1
		}
		w.Names[i] = fullName
		w.Years[i] = year
		w.Labels[i] = FormatLabel(fullName, year)
	}

	// 上传记录不可变，标签可无限期缓存
	r.cache.Put(cacheKey, w, 0)
	return w, nil
}

// ResolveConfigs 解析窗口 6 个位置的月度配置
// 配置行缺失时以缺省配置兜底并记录告警，绝不因此导致整体失败
func (r *Resolver) ResolveConfigs(reportMonth string, reportYear int, workType model.WorkType) ([model.WindowSize]model.MonthConfig, error) {
	var configs [model.WindowSize]model.MonthConfig

	cacheKey := fmt.Sprintf("configs:%s:%d:%s", reportMonth, reportYear, workType)
	if v, ok := r.cache.Get(cacheKey); ok {
		return v.([model.WindowSize]model.MonthConfig), nil
	}

	w, err := r.ResolveLabels(reportMonth, reportYear)
	if err != nil {
		return configs, err
	}

	for i := 0; i < model.WindowSize; i++ {
		cfg, found, err := r.store.GetMonthConfig(w.Names[i], w.Years[i], workType)
		if err != nil {
			return configs, err
		}
		if !found {
			log.Printf("警告: 月度配置缺失 (%s %d %s)，使用缺省配置", w.Names[i], w.Years[i], workType)
			cfg = model.DefaultMonthConfig(w.Names[i], w.Years[i], workType)
		}
		configs[i] = cfg
	}

	r.cache.Put(cacheKey, configs, configTTL)
	return configs, nil
}

// Invalidate 清除报告期的标签与配置缓存
// 同一报告期重新导入后必须调用，否则窗口解析会沿用旧上传记录
func (r *Resolver) Invalidate(reportMonth string, reportYear int) {
	r.cache.Delete(fmt.Sprintf("labels:%s:%d", reportMonth, reportYear))
	for _, wt := range []model.WorkType{model.WorkTypeDomestic, model.WorkTypeGlobal} {
		r.cache.Delete(fmt.Sprintf("configs:%s:%d:%s", reportMonth, reportYear, wt))
	}
}
