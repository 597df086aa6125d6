package store

import (
	"database/sql"
	"fmt"
	"time"

	"crewplan/internal/model"
)

// BatchInsertChangeRecords 批量写入字段级变更历史（仅追加）
func (s *Store) BatchInsertChangeRecords(reportMonth string, reportYear int, changedBy string, records []model.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO change_history (
			report_month, report_year,
			main_lob, state, case_type, case_id,
			field_name, old_value, new_value, delta, month_label, changed_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(reportMonth, reportYear,
			r.MainLOB, r.State, r.CaseType, r.CaseID,
			r.FieldName, nullableFloat(r.OldValue), nullableFloat(r.NewValue), nullableFloat(r.Delta),
			r.MonthLabel, changedBy); err != nil {
			return fmt.Errorf("failed to insert change record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// ChangeHistoryEntry 变更历史查询行，附带操作人与时间
type ChangeHistoryEntry struct {
	model.ChangeRecord
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// ListChangeRecords 查询报告期的变更历史（按时间倒序）
func (s *Store) ListChangeRecords(reportMonth string, reportYear int, limit, offset int) ([]ChangeHistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(`
		SELECT id, main_lob, state, case_type, case_id,
			field_name, old_value, new_value, delta, month_label, changed_by, created_at
		FROM change_history
		WHERE report_month = ? AND report_year = ?
		ORDER BY id DESC LIMIT ? OFFSET ?
	`, reportMonth, reportYear, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query change history: %w", err)
	}
	defer rows.Close()

	var out []ChangeHistoryEntry
	for rows.Next() {
		var r ChangeHistoryEntry
		var oldValue, newValue, delta sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.MainLOB, &r.State, &r.CaseType, &r.CaseID,
			&r.FieldName, &oldValue, &newValue, &delta, &r.MonthLabel, &r.ChangedBy, &r.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		if oldValue.Valid {
			r.OldValue = &oldValue.Float64
		}
		if newValue.Valid {
			r.NewValue = &newValue.Float64
		}
		if delta.Valid {
			r.Delta = &delta.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountChangeRecords 统计报告期的变更历史行数
func (s *Store) CountChangeRecords(reportMonth string, reportYear int) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM change_history WHERE report_month = ? AND report_year = ?
	`, reportMonth, reportYear).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count change history: %w", err)
	}
	return n, nil
}
