package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/otpsvc/domain"
)

// EventJournalImpl implements domain.EventJournal using GORM. The journal
// is the durable record and the outbox for the live stream; rows stay
// unpublished until the stream write is confirmed.
type EventJournalImpl struct {
	db *gorm.DB
}

// DBChallengeEvent represents the database model for ChallengeEvent.
// The raw code is never written here.
type DBChallengeEvent struct {
	ID                string    `gorm:"primaryKey;size:36"`
	Type              string    `gorm:"index;size:32"`
	ChallengeID       string    `gorm:"index;size:36"`
	SubjectID         string    `gorm:"index;size:128"`
	Purpose           string    `gorm:"size:32"`
	Version           int64     `gorm:"index"`
	OccurredAt        time.Time `gorm:"index"`
	Channel           string    `gorm:"size:16"`
	Destination       string    `gorm:"size:255"`
	RemainingAttempts int
	Terminal          bool
	Reason            string    `gorm:"size:255"`
	Published         bool      `gorm:"index"`
	CreatedAt         time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (DBChallengeEvent) TableName() string {
	return "challenge_events"
}

// NewEventJournal creates a new event journal
func NewEventJournal(db *gorm.DB) domain.EventJournal {
	return &EventJournalImpl{db: db}
}

// Append implements domain.EventJournal. Replays of the same event ID are
// no-ops, so at-least-once publication stays idempotent.
func (r *EventJournalImpl) Append(ctx context.Context, event *domain.ChallengeEvent) error {
	dbEvent := r.domainToDB(event.Redacted())
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dbEvent).Error
}

// MarkPublished implements domain.EventJournal
func (r *EventJournalImpl) MarkPublished(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Model(&DBChallengeEvent{}).
		Where("id = ?", eventID).
		Update("published", true).Error
}

// ListUnpublished implements domain.EventJournal. Issued events are
// excluded: their one-time code exists only on the wire, so a journal
// replay could not carry it and issuance failures surface to the caller
// instead.
func (r *EventJournalImpl) ListUnpublished(ctx context.Context, limit int) ([]*domain.ChallengeEvent, error) {
	var dbEvents []DBChallengeEvent
	err := r.db.WithContext(ctx).
		Where("published = ? AND type <> ?", false, string(domain.EventChallengeIssued)).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&dbEvents).Error
	if err != nil {
		return nil, err
	}

	events := make([]*domain.ChallengeEvent, 0, len(dbEvents))
	for i := range dbEvents {
		events = append(events, r.dbToDomain(&dbEvents[i]))
	}
	return events, nil
}

// ListByChallenge implements domain.EventJournal
func (r *EventJournalImpl) ListByChallenge(ctx context.Context, challengeID string) ([]*domain.ChallengeEvent, error) {
	var dbEvents []DBChallengeEvent
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("version ASC").
		Find(&dbEvents).Error
	if err != nil {
		return nil, err
	}

	events := make([]*domain.ChallengeEvent, 0, len(dbEvents))
	for i := range dbEvents {
		events = append(events, r.dbToDomain(&dbEvents[i]))
	}
	return events, nil
}

func (r *EventJournalImpl) domainToDB(event *domain.ChallengeEvent) *DBChallengeEvent {
	return &DBChallengeEvent{
		ID:                event.ID,
		Type:              string(event.Type),
		ChallengeID:       event.ChallengeID,
		SubjectID:         event.SubjectID,
		Purpose:           string(event.Purpose),
		Version:           event.Version,
		OccurredAt:        event.OccurredAt,
		Channel:           string(event.Channel),
		Destination:       event.Destination,
		RemainingAttempts: event.RemainingAttempts,
		Terminal:          event.Terminal,
		Reason:            event.Reason,
	}
}

func (r *EventJournalImpl) dbToDomain(dbEvent *DBChallengeEvent) *domain.ChallengeEvent {
	return &domain.ChallengeEvent{
		ID:                dbEvent.ID,
		Type:              domain.EventType(dbEvent.Type),
		ChallengeID:       dbEvent.ChallengeID,
		SubjectID:         dbEvent.SubjectID,
		Purpose:           domain.Purpose(dbEvent.Purpose),
		Version:           dbEvent.Version,
		OccurredAt:        dbEvent.OccurredAt,
		Channel:           domain.Channel(dbEvent.Channel),
		Destination:       dbEvent.Destination,
		RemainingAttempts: dbEvent.RemainingAttempts,
		Terminal:          dbEvent.Terminal,
		Reason:            dbEvent.Reason,
	}
}
