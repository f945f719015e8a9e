package store

import "fmt"

func (s *SQLStore) migrate() error {
	d := s.dialect
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			last_login_at %s,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.serialPK, d.timeType, d.timeType, d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			slug TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			stack_json TEXT NOT NULL DEFAULT '[]',
			tags_json TEXT NOT NULL DEFAULT '[]',
			tech TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			images_json TEXT NOT NULL DEFAULT '[]',
			links_json TEXT NOT NULL DEFAULT '{}',
			category TEXT NOT NULL DEFAULT '',
			metrics_json TEXT NOT NULL DEFAULT '{}',
			features_json TEXT NOT NULL DEFAULT '[]',
			duration TEXT NOT NULL DEFAULT '',
			client TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0,
			is_featured %s NOT NULL DEFAULT %s,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.boolType, d.falseExpr, d.timeType, d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS site_customizations (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'string',
			updated_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS project_customizations (
			project_id TEXT PRIMARY KEY,
			settings_json TEXT NOT NULL DEFAULT '{}',
			updated_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.timeType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS activity_logs (
			id %s,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, d.serialPK, d.timeType),

		`CREATE INDEX IF NOT EXISTS idx_projects_order ON projects(order_index)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_slug ON projects(slug)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
