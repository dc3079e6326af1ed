package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/godilite/rubric-grader/internal/models"
)

const rubricLevel = -1

type EvaluationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db, now: time.Now}
}

// SaveRubric stores a rubric with its items and performance levels in one
// transaction. rubric.ID must be set.
func (r *EvaluationRepository) SaveRubric(ctx context.Context, rubric models.StructuredRubric) error {
	if rubric.ID == "" {
		return fmt.Errorf("save rubric: id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin SaveRubric: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rubrics (id, title, summary, rubric_type, max_total_score, source_sha256, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rubric.ID, rubric.Title, rubric.Summary, string(rubric.RubricType), rubric.MaxTotalScore,
		nullString(rubric.SourceSHA256), r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert rubric: %w", err)
	}

	if err := insertLevels(ctx, tx, rubric.ID, rubricLevel, rubric.Levels); err != nil {
		return err
	}

	for pos, c := range rubric.Criteria {
		keywords, err := json.Marshal(c.Metadata.Keywords)
		if err != nil {
			return fmt.Errorf("encode keywords: %w", err)
		}
		var checklist sql.NullBool
		if c.Metadata.ChecklistRequired != nil {
			checklist = sql.NullBool{Bool: *c.Metadata.ChecklistRequired, Valid: true}
		}
		var weight sql.NullFloat64
		if c.Weight != nil {
			weight = sql.NullFloat64{Float64: *c.Weight, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO rubric_items (rubric_id, position, criterion_id, name, description, item_type, max_score, weight, checklist_required, keywords)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rubric.ID, pos, c.ID, c.Name, c.Description, string(c.ItemType), c.MaxScore, weight, checklist, string(keywords))
		if err != nil {
			return fmt.Errorf("insert rubric item %q: %w", c.Name, err)
		}

		if err := insertLevels(ctx, tx, rubric.ID, pos, c.Metadata.PerformanceLevels); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit SaveRubric: %w", err)
	}
	return nil
}

func insertLevels(ctx context.Context, tx *sql.Tx, rubricID string, itemPos int, levels []models.PerformanceLevel) error {
	for pos, l := range levels {
		var score sql.NullFloat64
		if l.Score != nil {
			score = sql.NullFloat64{Float64: *l.Score, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rubric_levels (rubric_id, item_position, position, level_key, label, description, score)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rubricID, itemPos, pos, l.Key, l.Label, l.Description, score)
		if err != nil {
			return fmt.Errorf("insert level %q: %w", l.Key, err)
		}
	}
	return nil
}

func (r *EvaluationRepository) GetRubric(ctx context.Context, id string) (models.StructuredRubric, error) {
	return r.getRubric(ctx, `WHERE id = ?`, id)
}

// FindRubricBySource returns the most recent rubric extracted from text with
// the given hash.
func (r *EvaluationRepository) FindRubricBySource(ctx context.Context, sourceSHA256 string) (models.StructuredRubric, error) {
	return r.getRubric(ctx, `WHERE source_sha256 = ? ORDER BY created_at DESC LIMIT 1`, sourceSHA256)
}

func (r *EvaluationRepository) getRubric(ctx context.Context, where string, arg any) (models.StructuredRubric, error) {
	var (
		rubric     models.StructuredRubric
		rubricType string
		source     sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, summary, rubric_type, max_total_score, source_sha256 FROM rubrics `+where, arg).
		Scan(&rubric.ID, &rubric.Title, &rubric.Summary, &rubricType, &rubric.MaxTotalScore, &source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StructuredRubric{}, fmt.Errorf("rubric %v: %w", arg, models.ErrNotFound)
		}
		return models.StructuredRubric{}, fmt.Errorf("query GetRubric: %w", err)
	}
	rubric.RubricType = models.RubricType(rubricType)
	rubric.SourceSHA256 = source.String

	levels, err := r.levels(ctx, rubric.ID)
	if err != nil {
		return models.StructuredRubric{}, err
	}
	rubric.Levels = levels[rubricLevel]

	rows, err := r.db.QueryContext(ctx, `
		SELECT position, criterion_id, name, description, item_type, max_score, weight, checklist_required, keywords
		FROM rubric_items
		WHERE rubric_id = ?
		ORDER BY position`, rubric.ID)
	if err != nil {
		return models.StructuredRubric{}, fmt.Errorf("query rubric items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c         models.RubricCriterion
			pos       int
			itemType  string
			weight    sql.NullFloat64
			checklist sql.NullBool
			keywords  sql.NullString
		)
		if err := rows.Scan(&pos, &c.ID, &c.Name, &c.Description, &itemType, &c.MaxScore, &weight, &checklist, &keywords); err != nil {
			return models.StructuredRubric{}, fmt.Errorf("scan rubric item: %w", err)
		}
		c.ItemType = models.ItemType(itemType)
		if weight.Valid {
			c.Weight = &weight.Float64
		}
		if checklist.Valid {
			c.Metadata.ChecklistRequired = &checklist.Bool
		}
		if keywords.Valid && keywords.String != "" {
			if err := json.Unmarshal([]byte(keywords.String), &c.Metadata.Keywords); err != nil {
				return models.StructuredRubric{}, fmt.Errorf("decode keywords: %w", err)
			}
		}
		c.Metadata.PerformanceLevels = levels[pos]
		rubric.Criteria = append(rubric.Criteria, c)
	}
	if err := rows.Err(); err != nil {
		return models.StructuredRubric{}, fmt.Errorf("iterate rubric items: %w", err)
	}
	return rubric, nil
}

// levels returns every level of a rubric keyed by item position.
func (r *EvaluationRepository) levels(ctx context.Context, rubricID string) (map[int][]models.PerformanceLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_position, level_key, label, description, score
		FROM rubric_levels
		WHERE rubric_id = ?
		ORDER BY item_position, position`, rubricID)
	if err != nil {
		return nil, fmt.Errorf("query rubric levels: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]models.PerformanceLevel)
	for rows.Next() {
		var (
			itemPos int
			l       models.PerformanceLevel
			score   sql.NullFloat64
		)
		if err := rows.Scan(&itemPos, &l.Key, &l.Label, &l.Description, &score); err != nil {
			return nil, fmt.Errorf("scan rubric level: %w", err)
		}
		if score.Valid {
			l.Score = &score.Float64
		}
		out[itemPos] = append(out[itemPos], l)
	}
	return out, rows.Err()
}

// SaveEvaluation stores an evaluation and its criterion scores in one
// transaction.
func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, e models.Evaluation) error {
	strengths, err := json.Marshal(e.Report.KeyStrengths)
	if err != nil {
		return fmt.Errorf("encode strengths: %w", err)
	}
	areas, err := json.Marshal(e.Report.AreasForDevelopment)
	if err != nil {
		return fmt.Errorf("encode development areas: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin SaveEvaluation: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluations (
			id, rubric_id, rubric_title, rubric_summary, provider, student_identifier, transcript,
			total_score, max_total_score, percent, performance_band, key_strengths, areas_for_development,
			summary, narrative_feedback, input_tokens, output_tokens, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullString(e.RubricID), e.RubricTitle, e.RubricSummary, e.Provider, e.StudentIdentifier, e.Transcript,
		e.Report.TotalScore, e.Report.MaxTotalScore, e.Report.Percent, string(e.Report.PerformanceBand),
		string(strengths), string(areas), e.Report.Summary, e.Report.NarrativeFeedback,
		e.Usage.InputTokens, e.Usage.OutputTokens, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}

	for pos, res := range e.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO criterion_scores (evaluation_id, position, criterion_id, name, description, score, max_score, justification, evidence, prompt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, pos, res.CriterionID, res.Name, res.Description, res.Score, res.MaxScore, res.Justification, res.Evidence, res.Prompt)
		if err != nil {
			return fmt.Errorf("insert criterion score %q: %w", res.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit SaveEvaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetEvaluation(ctx context.Context, id string) (models.Evaluation, error) {
	var (
		e         models.Evaluation
		rubricID  sql.NullString
		band      string
		strengths string
		areas     string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, rubric_id, rubric_title, rubric_summary, provider, student_identifier, transcript,
			total_score, max_total_score, percent, performance_band, key_strengths, areas_for_development,
			summary, narrative_feedback, input_tokens, output_tokens, created_at
		FROM evaluations
		WHERE id = ?`, id).
		Scan(&e.ID, &rubricID, &e.RubricTitle, &e.RubricSummary, &e.Provider, &e.StudentIdentifier, &e.Transcript,
			&e.Report.TotalScore, &e.Report.MaxTotalScore, &e.Report.Percent, &band, &strengths, &areas,
			&e.Report.Summary, &e.Report.NarrativeFeedback, &e.Usage.InputTokens, &e.Usage.OutputTokens, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Evaluation{}, fmt.Errorf("evaluation %s: %w", id, models.ErrNotFound)
		}
		return models.Evaluation{}, fmt.Errorf("query GetEvaluation: %w", err)
	}
	e.RubricID = rubricID.String
	e.Report.PerformanceBand = models.PerformanceBand(band)
	if err := json.Unmarshal([]byte(strengths), &e.Report.KeyStrengths); err != nil {
		return models.Evaluation{}, fmt.Errorf("decode strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(areas), &e.Report.AreasForDevelopment); err != nil {
		return models.Evaluation{}, fmt.Errorf("decode development areas: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.Evaluation{}, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT criterion_id, name, description, score, max_score, justification, evidence, prompt
		FROM criterion_scores
		WHERE evaluation_id = ?
		ORDER BY position`, id)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("query criterion scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res models.CriterionResult
		if err := rows.Scan(&res.CriterionID, &res.Name, &res.Description, &res.Score, &res.MaxScore, &res.Justification, &res.Evidence, &res.Prompt); err != nil {
			return models.Evaluation{}, fmt.Errorf("scan criterion score: %w", err)
		}
		e.Results = append(e.Results, res)
	}
	if err := rows.Err(); err != nil {
		return models.Evaluation{}, fmt.Errorf("iterate criterion scores: %w", err)
	}
	return e, nil
}

// ListEvaluations returns the newest evaluations first.
func (r *EvaluationRepository) ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rubric_title, total_score, max_total_score, performance_band, created_at
		FROM evaluations
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ListEvaluations: %w", err)
	}
	defer rows.Close()

	summaries := []models.EvaluationSummary{}
	for rows.Next() {
		var (
			s         models.EvaluationSummary
			band      string
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.RubricTitle, &s.TotalScore, &s.MaxTotalScore, &band, &createdAt); err != nil {
			return nil, fmt.Errorf("scan evaluation summary: %w", err)
		}
		s.PerformanceBand = models.PerformanceBand(band)
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SaveHumanGrading stores g, replacing any grading already saved for the same
// evaluation. The evaluation must exist.
func (r *EvaluationRepository) SaveHumanGrading(ctx context.Context, g models.HumanGrading) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin SaveHumanGrading: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM human_gradings WHERE evaluation_id = ?`, g.EvaluationID); err != nil {
		return fmt.Errorf("delete previous human grading: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO human_gradings (evaluation_id, grader_name, notes, total_score, max_total_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.EvaluationID, g.GraderName, g.Notes, g.TotalScore, g.MaxTotalScore, g.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert human grading: %w", err)
	}

	for pos, sc := range g.Scores {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO human_criterion_scores (evaluation_id, position, name, score, max_score, feedback)
			VALUES (?, ?, ?, ?, ?, ?)`,
			g.EvaluationID, pos, sc.Name, sc.Score, sc.MaxScore, sc.Feedback)
		if err != nil {
			return fmt.Errorf("insert human criterion score %q: %w", sc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit SaveHumanGrading: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetHumanGrading(ctx context.Context, evaluationID string) (models.HumanGrading, error) {
	var (
		g         models.HumanGrading
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT evaluation_id, grader_name, notes, total_score, max_total_score, created_at
		FROM human_gradings
		WHERE evaluation_id = ?`, evaluationID).
		Scan(&g.EvaluationID, &g.GraderName, &g.Notes, &g.TotalScore, &g.MaxTotalScore, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.HumanGrading{}, fmt.Errorf("human grading for evaluation %s: %w", evaluationID, models.ErrNotFound)
		}
		return models.HumanGrading{}, fmt.Errorf("query GetHumanGrading: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.HumanGrading{}, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, score, max_score, feedback
		FROM human_criterion_scores
		WHERE evaluation_id = ?
		ORDER BY position`, evaluationID)
	if err != nil {
		return models.HumanGrading{}, fmt.Errorf("query human criterion scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.HumanCriterionScore
		if err := rows.Scan(&sc.Name, &sc.Score, &sc.MaxScore, &sc.Feedback); err != nil {
			return models.HumanGrading{}, fmt.Errorf("scan human criterion score: %w", err)
		}
		g.Scores = append(g.Scores, sc)
	}
	if err := rows.Err(); err != nil {
		return models.HumanGrading{}, fmt.Errorf("iterate human criterion scores: %w", err)
	}
	return g, nil
}

func (r *EvaluationRepository) DeleteHumanGrading(ctx context.Context, evaluationID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM human_gradings WHERE evaluation_id = ?`, evaluationID)
	if err != nil {
		return fmt.Errorf("delete human grading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete human grading: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("human grading for evaluation %s: %w", evaluationID, models.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
