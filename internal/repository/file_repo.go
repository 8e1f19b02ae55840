package repository

import (
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/model"
	"gorm.io/gorm"
)

// FileRepository handles database operations for File
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *FileRepository) WithTx(tx *gorm.DB) *FileRepository {
	return &FileRepository{db: tx}
}

// Create inserts a new file record
func (r *FileRepository) Create(file *model.File) error {
	return r.db.Create(file).Error
}

// FindOwned finds a file by ID belonging to the given owner
func (r *FileRepository) FindOwned(id, ownerID uuid.UUID) (*model.File, error) {
	var file model.File
	err := r.db.
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}
