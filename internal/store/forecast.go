package store

import (
	"database/sql"
	"fmt"
	"strings"

	"crewplan/internal/model"
)

// BatchInsertForecast 批量插入预测记录及月度明细
// 同报告期同业务键的旧记录会被覆盖（先删后插）
func (s *Store) BatchInsertForecast(records []*model.ForecastRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	delStmt, err := tx.Prepare(`
		DELETE FROM forecast_records
		WHERE report_month = ? AND report_year = ?
			AND main_lob = ? AND state = ? AND case_type = ? AND case_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer delStmt.Close()

	recStmt, err := tx.Prepare(`
		INSERT INTO forecast_records (
			report_month, report_year, main_lob, state, case_type, case_id, target_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}
	defer recStmt.Close()

	entryStmt, err := tx.Prepare(`
		INSERT INTO forecast_entries (
			record_id, position, forecast, fte_required, fte_available, capacity
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry statement: %w", err)
	}
	defer entryStmt.Close()

	for _, r := range records {
		if _, err := delStmt.Exec(r.ReportMonth, r.ReportYear,
			r.Key.MainLOB, r.Key.State, r.Key.CaseType, r.Key.CaseID); err != nil {
			return fmt.Errorf("failed to delete stale record: %w", err)
		}
		res, err := recStmt.Exec(r.ReportMonth, r.ReportYear,
			r.Key.MainLOB, r.Key.State, r.Key.CaseType, r.Key.CaseID, r.TargetRate)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get record id: %w", err)
		}
		r.ID = recordID
		for i, cell := range r.Months {
			if _, err := entryStmt.Exec(recordID, i+1,
				cell.Forecast, cell.FTERequired, cell.FTEAvailable, cell.Capacity); err != nil {
				return fmt.Errorf("failed to insert entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetForecastByPeriod 一次性加载报告期的全部预测记录（含月度明细）
func (s *Store) GetForecastByPeriod(reportMonth string, reportYear int) ([]*model.ForecastRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, report_month, report_year, main_lob, state, case_type, case_id, target_rate
		FROM forecast_records
		WHERE report_month = ? AND report_year = ?
		ORDER BY main_lob, state, case_type, case_id
	`, reportMonth, reportYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast records: %w", err)
	}
	defer rows.Close()

	var records []*model.ForecastRecord
	byID := make(map[int64]*model.ForecastRecord)
	for rows.Next() {
		var r model.ForecastRecord
		if err := rows.Scan(&r.ID, &r.ReportMonth, &r.ReportYear,
			&r.Key.MainLOB, &r.Key.State, &r.Key.CaseType, &r.Key.CaseID, &r.TargetRate); err != nil {
			return nil, fmt.Errorf("failed to scan forecast record: %w", err)
		}
		records = append(records, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forecast records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	entryRows, err := s.db.Query(`
		SELECT e.record_id, e.position, e.forecast, e.fte_required, e.fte_available, e.capacity
		FROM forecast_entries e
		JOIN forecast_records r ON r.id = e.record_id
		WHERE r.report_month = ? AND r.report_year = ?
	`, reportMonth, reportYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var recordID int64
		var position int
		var cell model.MonthCell
		if err := entryRows.Scan(&recordID, &position,
			&cell.Forecast, &cell.FTERequired, &cell.FTEAvailable, &cell.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan forecast entry: %w", err)
		}
		if r, ok := byID[recordID]; ok && position >= 1 && position <= model.WindowSize {
			r.Months[position-1] = cell
		}
	}
	return records, entryRows.Err()
}

// GetForecastRecord 按 ID 加载单条预测记录（含月度明细）
func (s *Store) GetForecastRecord(id int64) (*model.ForecastRecord, error) {
	var r model.ForecastRecord
	err := s.db.QueryRow(`
		SELECT id, report_month, report_year, main_lob, state, case_type, case_id, target_rate
		FROM forecast_records WHERE id = ?
	`, id).Scan(&r.ID, &r.ReportMonth, &r.ReportYear,
		&r.Key.MainLOB, &r.Key.State, &r.Key.CaseType, &r.Key.CaseID, &r.TargetRate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query forecast record: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT position, forecast, fte_required, fte_available, capacity
		FROM forecast_entries WHERE record_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var position int
		var cell model.MonthCell
		if err := rows.Scan(&position, &cell.Forecast, &cell.FTERequired, &cell.FTEAvailable, &cell.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan forecast entry: %w", err)
		}
		if position >= 1 && position <= model.WindowSize {
			r.Months[position-1] = cell
		}
	}
	return &r, rows.Err()
}

// UpdateRecordDerivedTx 在事务内写回目标时效与全部月度派生值
// 返回受影响的月度明细行数
func (s *Store) UpdateRecordDerivedTx(tx *sql.Tx, r *model.ForecastRecord) (int, error) {
	if _, err := tx.Exec(`
		UPDATE forecast_records SET target_rate = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, r.TargetRate, r.ID); err != nil {
		return 0, fmt.Errorf("failed to update record: %w", err)
	}

	rowsAffected := 0
	for i, cell := range r.Months {
		res, err := tx.Exec(`
			UPDATE forecast_entries
			SET forecast = ?, fte_required = ?, fte_available = ?, capacity = ?
			WHERE record_id = ? AND position = ?
		`, cell.Forecast, cell.FTERequired, cell.FTEAvailable, cell.Capacity, r.ID, i+1)
		if err != nil {
			return rowsAffected, fmt.Errorf("failed to update entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return rowsAffected, fmt.Errorf("failed to get rows affected: %w", err)
		}
		rowsAffected += int(n)
	}
	return rowsAffected, nil
}

// PeriodStat 报告期统计
type PeriodStat struct {
	ReportMonth string `json:"reportMonth"`
	ReportYear  int    `json:"reportYear"`
	Records     int    `json:"records"`
}

// ListAvailablePeriods 列出存在预测数据的报告期
// 排序交由调用方（月名顺序依赖日历索引）
func (s *Store) ListAvailablePeriods() ([]PeriodStat, error) {
	rows, err := s.db.Query(`
		SELECT report_month, report_year, COUNT(1)
		FROM forecast_records
		GROUP BY report_month, report_year
		ORDER BY report_year DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query available periods: %w", err)
	}
	defer rows.Close()

	var out []PeriodStat
	for rows.Next() {
		var p PeriodStat
		if err := rows.Scan(&p.ReportMonth, &p.ReportYear, &p.Records); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountForecast 统计报告期记录数（可带 LOB / 关键字过滤）
func (s *Store) CountForecast(reportMonth string, reportYear int, mainLOB, keyword string) (int, error) {
	query := "SELECT COUNT(1) FROM forecast_records WHERE report_month = ? AND report_year = ?"
	args := []interface{}{reportMonth, reportYear}
	if mainLOB != "" {
		query += " AND main_lob = ?"
		args = append(args, mainLOB)
	}
	if keyword != "" {
		query += " AND (main_lob LIKE ? OR state LIKE ? OR case_type LIKE ? OR case_id LIKE ?)"
		like := "%" + strings.TrimSpace(keyword) + "%"
		args = append(args, like, like, like, like)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count forecast records: %w", err)
	}
	return n, nil
}
