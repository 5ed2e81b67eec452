package review

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ideaforge/engine/types"
)

// Row is the GORM persistence model for a Review (§6 "Persisted state
// layout"). Schema evolution is additive only, per spec.
type Row struct {
	ID          types.ID  `gorm:"type:uuid;primaryKey"`
	ArtifactID  types.ID  `gorm:"type:uuid;index;not null"`
	Stage       string    `gorm:"size:16;not null"`
	SubmittedAt time.Time `gorm:"not null"`
	Decision    string    `gorm:"size:16;not null;index"`
	DecidedAt   *time.Time
	Feedback    string `gorm:"type:text"`
}

func (Row) TableName() string { return "reviews" }

func toRow(r *types.Review) *Row {
	return &Row{
		ID:          r.ID,
		ArtifactID:  r.ArtifactID,
		Stage:       string(r.Stage),
		SubmittedAt: r.SubmittedAt,
		Decision:    string(r.Decision),
		DecidedAt:   r.DecidedAt,
		Feedback:    r.Feedback,
	}
}

func fromRow(row *Row) *types.Review {
	return &types.Review{
		ID:          row.ID,
		ArtifactID:  row.ArtifactID,
		Stage:       types.Stage(row.Stage),
		SubmittedAt: row.SubmittedAt,
		Decision:    types.Decision(row.Decision),
		DecidedAt:   row.DecidedAt,
		Feedback:    row.Feedback,
	}
}

// GormStore persists reviews in a relational table via gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate auto-migrates the reviews table. The server does not call it;
// the schema comes from the migrations run by cmd/ideaforge migrate.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Row{})
}

func (s *GormStore) Save(ctx context.Context, r *types.Review) error {
	if err := s.db.WithContext(ctx).Create(toRow(r)).Error; err != nil {
		return types.NewError(types.Internal, "save review: %v", err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, id types.ID) (*types.Review, error) {
	var row Row
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewError(types.NotFound, "review %s not found", id)
		}
		return nil, types.NewError(types.Internal, "load review: %v", err)
	}
	return fromRow(&row), nil
}

func (s *GormStore) ListPending(ctx context.Context) ([]*types.Review, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Where("decision = ?", string(types.DecisionPending)).Find(&rows).Error; err != nil {
		return nil, types.NewError(types.Internal, "list pending reviews: %v", err)
	}
	out := make([]*types.Review, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, r *types.Review) error {
	if err := s.db.WithContext(ctx).Save(toRow(r)).Error; err != nil {
		return types.NewError(types.Internal, "update review: %v", err)
	}
	return nil
}
