package store

import (
	"database/sql"
	"fmt"

	"crewplan/internal/model"
)

// GetMonthConfig 按 (月名, 年份, 业务类型) 查询月度配置
// 配置缺失不是错误，通过 found 返回
func (s *Store) GetMonthConfig(monthName string, year int, workType model.WorkType) (model.MonthConfig, bool, error) {
	var cfg model.MonthConfig
	err := s.db.QueryRow(`
		SELECT month_name, year, work_type, working_days, work_hours, shrinkage, occupancy
		FROM month_configs
		WHERE month_name = ? AND year = ? AND work_type = ?
	`, monthName, year, workType).Scan(
		&cfg.MonthName, &cfg.Year, &cfg.WorkType,
		&cfg.WorkingDays, &cfg.WorkHours, &cfg.Shrinkage, &cfg.Occupancy)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.MonthConfig{}, false, nil
		}
		return model.MonthConfig{}, false, fmt.Errorf("failed to query month config: %w", err)
	}
	return cfg, true, nil
}

// UpsertMonthConfig 写入月度配置（同键覆盖）
func (s *Store) UpsertMonthConfig(cfg model.MonthConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO month_configs (
			month_name, year, work_type, working_days, work_hours, shrinkage, occupancy
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(month_name, year, work_type) DO UPDATE SET
			working_days = excluded.working_days,
			work_hours = excluded.work_hours,
			shrinkage = excluded.shrinkage,
			occupancy = excluded.occupancy,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.MonthName, cfg.Year, cfg.WorkType,
		cfg.WorkingDays, cfg.WorkHours, cfg.Shrinkage, cfg.Occupancy)
	if err != nil {
		return fmt.Errorf("failed to upsert month config: %w", err)
	}
	return nil
}

// ListMonthConfigs 列出某年的全部月度配置
func (s *Store) ListMonthConfigs(year int) ([]model.MonthConfig, error) {
	rows, err := s.db.Query(`
		SELECT month_name, year, work_type, working_days, work_hours, shrinkage, occupancy
		FROM month_configs WHERE year = ? ORDER BY work_type, month_name
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query month configs: %w", err)
	}
	defer rows.Close()

	var out []model.MonthConfig
	for rows.Next() {
		var cfg model.MonthConfig
		if err := rows.Scan(&cfg.MonthName, &cfg.Year, &cfg.WorkType,
			&cfg.WorkingDays, &cfg.WorkHours, &cfg.Shrinkage, &cfg.Occupancy); err != nil {
			return nil, fmt.Errorf("failed to scan month config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}
