package engine

import (
	"fmt"

	"crewplan/internal/model"
)

// ApplyOutcome 提交结果及随之产生的修改记录（供审计提取）
type ApplyOutcome struct {
	Result          model.ApplyResult
	Months          map[string]string
	ModifiedRecords []model.ModifiedRecord
}

// Apply 提交一批变更：与 Preview 走完全相同的重算路径，
// 在单个事务内写回目标时效与全部月度派生值，整批只提交一次
// 过滤后变更集为空时返回 (0, 0) 且不触碰存储
func (e *Engine) Apply(reportMonth string, reportYear int, changes []model.ChangeRequest) (*ApplyOutcome, error) {
	filtered, err := filterChanges(changes)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return &ApplyOutcome{}, nil
	}

	batch, err := e.recomputeBatch(reportMonth, reportYear, filtered)
	if err != nil {
		return nil, err
	}
	if len(batch.records) == 0 {
		return &ApplyOutcome{Months: batch.window.PositionMap()}, nil
	}

	tx, err := e.store.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	outcome := &ApplyOutcome{
		Months:          batch.window.PositionMap(),
		ModifiedRecords: make([]model.ModifiedRecord, 0, len(batch.records)),
	}
	for _, rec := range batch.records {
		rows, err := e.store.UpdateRecordDerivedTx(tx, rec.record)
		if err != nil {
			return nil, err
		}
		outcome.Result.RecordsUpdated++
		outcome.Result.ForecastRowsAffected += rows
		outcome.ModifiedRecords = append(outcome.ModifiedRecords, rec.modified)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return outcome, nil
}
