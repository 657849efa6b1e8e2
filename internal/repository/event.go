package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otahak/herald/internal/models"
	"gorm.io/gorm"
)

// EventRepository persists the append-only game log.
type EventRepository interface {
	BaseRepository
	Append(ctx context.Context, event *models.GameEvent) error
	AppendAll(ctx context.Context, events []*models.GameEvent) error
	List(ctx context.Context, gameID string, includeUndone bool, p *Pagination) ([]*models.GameEvent, error)
	FindRecent(ctx context.Context, gameID string, eventType models.EventType, unitID *string, limit int) ([]*models.GameEvent, error)
	RetractRecent(ctx context.Context, gameID string, eventType models.EventType, playerID, unitID *string, count int) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	CountByType(ctx context.Context, gameID string, eventType models.EventType) (int64, error)
	ExportMarkdown(ctx context.Context, game *models.Game) (string, error)
}

type eventRepo struct {
	*BaseRepo
}

// NewEventRepository creates the event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

func (r *eventRepo) Append(ctx context.Context, event *models.GameEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) AppendAll(ctx context.Context, events []*models.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

// List returns events newest first. Undone events are filtered unless
// includeUndone is set.
func (r *eventRepo) List(ctx context.Context, gameID string, includeUndone bool, p *Pagination) ([]*models.GameEvent, error) {
	var events []*models.GameEvent

	q := r.db.WithContext(ctx).
		Model(&models.GameEvent{}).
		Where("game_id = ?", gameID)
	if !includeUndone {
		q = q.Where("is_undone = ?", false)
	}
	q.Count(&p.Total)

	err := q.
		Order("created_at desc, id desc").
		Scopes(Paginate(p)).
		Find(&events).Error

	return events, err
}

// FindRecent returns the latest non-undone events of one type, newest first.
func (r *eventRepo) FindRecent(ctx context.Context, gameID string, eventType models.EventType, unitID *string, limit int) ([]*models.GameEvent, error) {
	var events []*models.GameEvent

	q := r.db.WithContext(ctx).
		Where("game_id = ? AND event_type = ? AND is_undone = ?", gameID, eventType, false)
	if unitID != nil {
		q = q.Where("target_unit_id = ?", *unitID)
	}

	err := q.
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error

	return events, err
}

// RetractRecent deletes the count most recent matching events outright, so a
// decrement removes the corresponding add entries instead of cluttering the
// log with reversals.
func (r *eventRepo) RetractRecent(ctx context.Context, gameID string, eventType models.EventType, playerID, unitID *string, count int) (int64, error) {
	if count <= 0 {
		return 0, nil
	}

	var ids []string
	q := r.db.WithContext(ctx).
		Model(&models.GameEvent{}).
		Where("game_id = ? AND event_type = ? AND is_undone = ?", gameID, eventType, false)
	if playerID != nil {
		q = q.Where("player_id = ?", *playerID)
	}
	if unitID != nil {
		q = q.Where("target_unit_id = ?", *unitID)
	}
	err := q.
		Order("created_at desc, id desc").
		Limit(count).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.GameEvent{})
	return result.RowsAffected, result.Error
}

func (r *eventRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.GameEvent{}).Error
}

func (r *eventRepo) CountByType(ctx context.Context, gameID string, eventType models.EventType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GameEvent{}).
		Where("game_id = ? AND event_type = ? AND is_undone = ?", gameID, eventType, false).
		Count(&count).Error
	return count, err
}

// ExportMarkdown renders the full log oldest first as a battle report.
func (r *eventRepo) ExportMarkdown(ctx context.Context, game *models.Game) (string, error) {
	var events []*models.GameEvent
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND is_undone = ?", game.ID, false).
		Order("created_at, id").
		Find(&events).Error
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", game.Name)
	fmt.Fprintf(&b, "Join code: `%s`\n\n", game.Code)
	for _, player := range game.Players {
		name := player.Name
		if player.ArmyName != nil && *player.ArmyName != "" {
			name = fmt.Sprintf("%s (%s)", player.Name, *player.ArmyName)
		}
		fmt.Fprintf(&b, "- %s, %d VP\n", name, player.VictoryPoints)
	}
	b.WriteString("\n## Log\n\n")

	round := -1
	for _, event := range events {
		if event.RoundNumber != round {
			round = event.RoundNumber
			if round > 0 {
				fmt.Fprintf(&b, "\n### Round %d\n\n", round)
			}
		}
		fmt.Fprintf(&b, "- %s %s\n",
			event.CreatedAt.UTC().Format(time.TimeOnly),
			event.Description,
		)
	}

	return b.String(), nil
}

func (r *eventRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &eventRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
