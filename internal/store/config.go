package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// GetConfig 获取配置项
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("config key not found: %s", key)
		}
		return "", err
	}
	return value, nil
}

// SetConfig 设置配置项
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`, key, value, value)
	return err
}

// GetConfigInt 获取整数配置项
func (s *Store) GetConfigInt(key string) (int, error) {
	value, err := s.GetConfig(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// SetConfigInt 设置整数配置项
func (s *Store) SetConfigInt(key string, value int) error {
	return s.SetConfig(key, strconv.Itoa(value))
}

// GetCurrentPeriod 获取当前操作的报告期
func (s *Store) GetCurrentPeriod() (month string, year int, err error) {
	month, err = s.GetConfig("current_report_month")
	if err != nil {
		return "", 0, err
	}
	year, err = s.GetConfigInt("current_report_year")
	if err != nil {
		return "", 0, err
	}
	return month, year, nil
}

// SetCurrentPeriod 设置当前操作的报告期
func (s *Store) SetCurrentPeriod(month string, year int) error {
	if err := s.SetConfig("current_report_month", month); err != nil {
		return err
	}
	return s.SetConfigInt("current_report_year", year)
}
