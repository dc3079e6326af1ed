package repository

// Schema creates the tables used by EvaluationRepository. Every statement is
// safe to run against an existing database.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS rubrics (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		rubric_type TEXT NOT NULL,
		max_total_score REAL NOT NULL,
		source_sha256 TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rubrics_source ON rubrics (source_sha256)`,
	`CREATE TABLE IF NOT EXISTS rubric_items (
		rubric_id TEXT NOT NULL REFERENCES rubrics(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		criterion_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		item_type TEXT NOT NULL,
		max_score REAL NOT NULL,
		weight REAL,
		checklist_required INTEGER,
		keywords TEXT,
		PRIMARY KEY (rubric_id, position)
	)`,
	// item_position is -1 for rubric-level (holistic) levels.
	`CREATE TABLE IF NOT EXISTS rubric_levels (
		rubric_id TEXT NOT NULL REFERENCES rubrics(id) ON DELETE CASCADE,
		item_position INTEGER NOT NULL,
		position INTEGER NOT NULL,
		level_key TEXT NOT NULL,
		label TEXT NOT NULL,
		description TEXT NOT NULL,
		score REAL,
		PRIMARY KEY (rubric_id, item_position, position)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		rubric_id TEXT,
		rubric_title TEXT NOT NULL,
		rubric_summary TEXT NOT NULL,
		provider TEXT NOT NULL,
		student_identifier TEXT NOT NULL,
		transcript TEXT NOT NULL,
		total_score REAL NOT NULL,
		max_total_score REAL NOT NULL,
		percent REAL NOT NULL,
		performance_band TEXT NOT NULL,
		key_strengths TEXT NOT NULL,
		areas_for_development TEXT NOT NULL,
		summary TEXT NOT NULL,
		narrative_feedback TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations (created_at)`,
	`CREATE TABLE IF NOT EXISTS criterion_scores (
		evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		criterion_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		score REAL NOT NULL,
		max_score REAL NOT NULL,
		justification TEXT NOT NULL,
		evidence TEXT NOT NULL,
		prompt TEXT NOT NULL,
		PRIMARY KEY (evaluation_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS human_gradings (
		evaluation_id TEXT PRIMARY KEY REFERENCES evaluations(id) ON DELETE CASCADE,
		grader_name TEXT NOT NULL,
		notes TEXT NOT NULL,
		total_score REAL NOT NULL,
		max_total_score REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS human_criterion_scores (
		evaluation_id TEXT NOT NULL REFERENCES human_gradings(evaluation_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		score REAL NOT NULL,
		max_score REAL NOT NULL,
		feedback TEXT NOT NULL,
		PRIMARY KEY (evaluation_id, position)
	)`,
}
