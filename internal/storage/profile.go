package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Resume struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserProfile struct {
	Motivation           string    `json:"motivation"`
	SoftSkills           string    `json:"soft_skills"`
	WorkStyle            string    `json:"work_style"`
	DevelopmentDirection string    `json:"development_direction"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// GetResume returns the stored résumé, or nil if none has been saved.
func (s *Store) GetResume(ctx context.Context) (*Resume, error) {
	var r Resume
	err := s.db.QueryRowContext(ctx, "SELECT content, updated_at FROM resume WHERE id = 1").
		Scan(&r.Content, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return &r, nil
}

// SaveResume upserts the singleton résumé row.
func (s *Store) SaveResume(ctx context.Context, content string) (*Resume, error) {
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resume (id, content, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   updated_at = excluded.updated_at`,
		content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save resume: %w", err)
	}
	return &Resume{Content: content, UpdatedAt: now}, nil
}

// GetUserProfile returns the stored profile, or nil if none has been saved.
func (s *Store) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	var p UserProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT motivation, soft_skills, work_style, development_direction, updated_at
		 FROM user_profile WHERE id = 1`,
	).Scan(&p.Motivation, &p.SoftSkills, &p.WorkStyle, &p.DevelopmentDirection, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &p, nil
}

// SaveUserProfile upserts the singleton profile row.
func (s *Store) SaveUserProfile(ctx context.Context, p UserProfile) (*UserProfile, error) {
	p.UpdatedAt = s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profile (id, motivation, soft_skills, work_style, development_direction, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   motivation = excluded.motivation,
		   soft_skills = excluded.soft_skills,
		   work_style = excluded.work_style,
		   development_direction = excluded.development_direction,
		   updated_at = excluded.updated_at`,
		p.Motivation, p.SoftSkills, p.WorkStyle, p.DevelopmentDirection, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save user profile: %w", err)
	}
	return &p, nil
}
