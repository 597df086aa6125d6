package engine

import (
	"fmt"

	"crewplan/internal/model"
)

// Preview 预览一批变更：只读重算，返回逐记录逐月的新旧差异
// 输出结构序列化后即为 Apply 的唯一合法载荷
func (e *Engine) Preview(reportMonth string, reportYear int, changes []model.ChangeRequest) (*model.PreviewResult, error) {
	filtered, err := filterChanges(changes)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: 变更集为空，无可预览内容", ErrValidation)
	}

	batch, err := e.recomputeBatch(reportMonth, reportYear, filtered)
	if err != nil {
		return nil, err
	}

	result := &model.PreviewResult{
		ReportMonth:     reportMonth,
		ReportYear:      reportYear,
		Months:          batch.window.PositionMap(),
		ModifiedRecords: make([]model.ModifiedRecord, 0, len(batch.records)),
		TotalModified:   len(batch.records),
		Summary:         batch.summary,
	}
	for _, rec := range batch.records {
		result.ModifiedRecords = append(result.ModifiedRecords, rec.modified)
	}
	return result, nil
}
