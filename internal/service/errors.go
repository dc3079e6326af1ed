package service

import "errors"

var (
	ErrEmptyRubricText      = errors.New("rubric text is empty")
	ErrNoCriteria           = errors.New("rubric did not yield any criteria")
	ErrEmptyTranscript      = errors.New("transcript text is empty")
	ErrInvalidScore         = errors.New("invalid score in LLM response")
	ErrScoringFailed        = errors.New("scoring failed")
	ErrRubricRequired       = errors.New("a rubric, rubric id or rubric text is required")
	ErrInvalidLearnerReport = errors.New("invalid learner report structure")
	ErrStorageFailure       = errors.New("storage failure")
)

var (
	ErrNoHumanScores     = errors.New("human grading has no criterion scores")
	ErrInvalidHumanScore = errors.New("invalid human criterion score")
)
