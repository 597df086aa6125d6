package store

import (
	"database/sql"
	"fmt"

	"crewplan/internal/model"
)

// CreateUpload 创建上传记录（PENDING），返回 upload_id
func (s *Store) CreateUpload(u *model.UploadRecord) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO uploads (
			report_month, report_year,
			month1, month2, month3, month4, month5, month6,
			uploaded_by, filename, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ReportMonth, u.ReportYear,
		u.Months[0], u.Months[1], u.Months[2], u.Months[3], u.Months[4], u.Months[5],
		u.UploadedBy, u.Filename, model.UploadStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get upload id: %w", err)
	}
	return id, nil
}

// UpdateUploadStatus 推进上传任务状态
// 进入终态（SUCCESS/FAILED/PARTIAL_SUCCESS）时写入完成时间
func (s *Store) UpdateUploadStatus(id int64, status model.UploadStatus, errorMessage string) error {
	var err error
	switch status {
	case model.UploadStatusSuccess, model.UploadStatusFailed, model.UploadStatusPartialSuccess:
		_, err = s.db.Exec(`
			UPDATE uploads SET status = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, errorMessage, id)
	default:
		_, err = s.db.Exec("UPDATE uploads SET status = ?, error_message = ? WHERE id = ?",
			status, errorMessage, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update upload status: %w", err)
	}
	return nil
}

// GetLatestUpload 获取报告期最近一次成功的上传记录
// 不存在时返回 ErrNotFound
func (s *Store) GetLatestUpload(reportMonth string, reportYear int) (*model.UploadRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, report_month, report_year,
			month1, month2, month3, month4, month5, month6,
			uploaded_by, filename, status, error_message, created_at, completed_at
		FROM uploads
		WHERE report_month = ? AND report_year = ?
			AND status IN ('SUCCESS', 'PARTIAL_SUCCESS')
		ORDER BY id DESC LIMIT 1
	`, reportMonth, reportYear)
	return scanUpload(row)
}

// GetUpload 按 ID 获取上传记录
func (s *Store) GetUpload(id int64) (*model.UploadRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, report_month, report_year,
			month1, month2, month3, month4, month5, month6,
			uploaded_by, filename, status, error_message, created_at, completed_at
		FROM uploads WHERE id = ?
	`, id)
	return scanUpload(row)
}

func scanUpload(row *sql.Row) (*model.UploadRecord, error) {
	var u model.UploadRecord
	var completedAt sql.NullTime
	err := row.Scan(&u.ID, &u.ReportMonth, &u.ReportYear,
		&u.Months[0], &u.Months[1], &u.Months[2], &u.Months[3], &u.Months[4], &u.Months[5],
		&u.UploadedBy, &u.Filename, &u.Status, &u.ErrorMessage, &u.CreatedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan upload: %w", err)
	}
	if completedAt.Valid {
		u.CompletedAt = &completedAt.Time
	}
	return &u, nil
}

// ListUploads 列出上传记录（按时间倒序）
func (s *Store) ListUploads(limit int) ([]*model.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, report_month, report_year,
			month1, month2, month3, month4, month5, month6,
			uploaded_by, filename, status, error_message, created_at, completed_at
		FROM uploads ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var out []*model.UploadRecord
	for rows.Next() {
		var u model.UploadRecord
		var completedAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.ReportMonth, &u.ReportYear,
			&u.Months[0], &u.Months[1], &u.Months[2], &u.Months[3], &u.Months[4], &u.Months[5],
			&u.UploadedBy, &u.Filename, &u.Status, &u.ErrorMessage, &u.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if completedAt.Valid {
			u.CompletedAt = &completedAt.Time
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}
