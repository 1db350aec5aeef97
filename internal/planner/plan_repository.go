package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPlanNotFound is returned when no stored plan has the requested id.
var ErrPlanNotFound = errors.New("meal plan not found")

// PlanRepository is a database-backed history of generated meal plans.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d}
}

// Save inserts a meal plan. The plan must carry an id.
func (r *PlanRepository) Save(ctx context.Context, plan MealPlan) error {
	if plan.ID == "" {
		return fmt.Errorf("meal plan id is required")
	}
	planData, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	createdAt := plan.GeneratedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, snapshot_version, stale, plan_data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		plan.ID, plan.SnapshotVersion, plan.Stale, string(planData), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal plan %s: %w", plan.ID, err)
	}
	return nil
}

// Get retrieves a stored plan by id.
func (r *PlanRepository) Get(ctx context.Context, id string) (MealPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT plan_data FROM meal_plans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return MealPlan{}, fmt.Errorf("meal plan %s: %w", id, ErrPlanNotFound)
	}
	if err != nil {
		return MealPlan{}, fmt.Errorf("failed to get meal plan %s: %w", id, err)
	}
	return decodePlan(data)
}

// ListRecent retrieves the N most recent meal plans, newest first.
func (r *PlanRepository) ListRecent(ctx context.Context, limit int) ([]MealPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT plan_data FROM meal_plans
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meal plans: %w", err)
	}
	defer rows.Close()

	var plans []MealPlan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		plan, err := decodePlan(data)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func decodePlan(data string) (MealPlan, error) {
	var plan MealPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return MealPlan{}, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	plan.StaleAge = time.Duration(plan.StaleAgeSeconds) * time.Second
	return plan, nil
}
