package repository

import (
	"context"
	"errors"

	"github.com/Jm9710/appProducotres/internal/domain"

	"gorm.io/gorm"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, a *domain.Archivo) error {
	return r.db.WithContext(ctx).Omit("Tipo").Create(a).Error
}

// FindByName returns the first file with the given name. Names are not
// unique, so with duplicates this is the one with the lowest id.
func (r *FileRepository) FindByName(ctx context.Context, name string) (*domain.Archivo, error) {
	var a domain.Archivo
	err := r.db.WithContext(ctx).Preload("Tipo").Where("nombre = ?", name).Order("id_archivo").First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *FileRepository) FindByID(ctx context.Context, id int64) (*domain.Archivo, error) {
	var a domain.Archivo
	err := r.db.WithContext(ctx).Preload("Tipo").Where("id_archivo = ?", id).First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListByProducer returns the producer's files with their type preloaded.
func (r *FileRepository) ListByProducer(ctx context.Context, producerID int64) ([]domain.Archivo, error) {
	return r.list(ctx, r.db.Where("us_asociado = ?", producerID))
}

func (r *FileRepository) list(ctx context.Context, q *gorm.DB) ([]domain.Archivo, error) {
	var out []domain.Archivo
	err := q.WithContext(ctx).Preload("Tipo").Order("id_archivo").Find(&out).Error
	return out, err
}

// Classify groups the producer's files by type name. A category naming an
// existing type restricts the result to that type; an unknown category is
// ignored. Files whose type row is missing land in domain.UnknownFileType.
func (r *FileRepository) Classify(ctx context.Context, producerID int64, category string) (map[string][]domain.Archivo, error) {
	q := r.db.Where("us_asociado = ?", producerID)
	if category != "" {
		var t domain.TipoArchivo
		err := r.db.WithContext(ctx).Where("tipo = ?", category).First(&t).Error
		switch {
		case err == nil:
			q = q.Where(&domain.Archivo{TipoArchivoID: t.IDTipoArchivo})
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	files, err := r.list(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]domain.Archivo)
	for _, f := range files {
		name := f.TypeName()
		out[name] = append(out[name], f)
	}
	return out, nil
}

func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id_archivo = ?", id).Delete(&domain.Archivo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FileRepository) DeleteByProducer(ctx context.Context, producerID int64) error {
	return r.db.WithContext(ctx).Where("us_asociado = ?", producerID).Delete(&domain.Archivo{}).Error
}
