package repository

import (
	"context"
	"time"

	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"

	"gorm.io/gorm"
)

type KMLRepository struct {
	db *gorm.DB
}

func NewKMLRepository(db *gorm.DB) *KMLRepository {
	return &KMLRepository{db: db}
}

// FindByProducer returns the producer's canonical KML row.
func (r *KMLRepository) FindByProducer(ctx context.Context, producerID int64) (*domain.KML, error) {
	var k domain.KML
	err := r.db.WithContext(ctx).Where("us_asociado = ?", producerID).Order("id_kml").First(&k).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

// ListWithFiles returns the producer's KML rows with their associated files.
func (r *KMLRepository) ListWithFiles(ctx context.Context, producerID int64) ([]domain.KML, error) {
	var out []domain.KML
	err := r.db.WithContext(ctx).
		Preload("Archivos", func(db *gorm.DB) *gorm.DB { return db.Order("id_archivo") }).
		Where("us_asociado = ?", producerID).
		Order("id_kml").
		Find(&out).Error
	return out, err
}

// Upsert points the producer's existing KML row at url, or inserts the row
// when there is none. The row id survives re-uploads so files associated
// with it stay attached. us_asociado is unique, so when a concurrent upload
// inserts first the insert here fails and is retried as an update.
func (r *KMLRepository) Upsert(ctx context.Context, producerID int64, url string, now time.Time) (*domain.KML, error) {
	out, err := r.upsert(ctx, producerID, url, now)
	if database.IsUniqueViolation(err) {
		out, err = r.upsert(ctx, producerID, url, now)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *KMLRepository) upsert(ctx context.Context, producerID int64, url string, now time.Time) (*domain.KML, error) {
	var out domain.KML
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("us_asociado = ?", producerID).First(&out).Error
		switch {
		case err == nil:
			out.RutaArchivo = url
			out.FechaSubida = now
			return tx.Model(&out).Updates(map[string]any{
				"ruta_archivo": url,
				"fecha_subida": now,
			}).Error
		case notFound(err) == ErrNotFound:
			out = domain.KML{RutaArchivo: url, FechaSubida: now, UsAsociado: producerID}
			return tx.Create(&out).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *KMLRepository) DeleteByProducer(ctx context.Context, producerID int64) error {
	return r.db.WithContext(ctx).Where("us_asociado = ?", producerID).Delete(&domain.KML{}).Error
}

func (r *KMLRepository) DeleteTaipasByProducer(ctx context.Context, producerID int64) error {
	return r.db.WithContext(ctx).Where("us_asociado = ?", producerID).Delete(&domain.KMLTaipas{}).Error
}

func (r *KMLRepository) ListTaipasByProducer(ctx context.Context, producerID int64) ([]domain.KMLTaipas, error) {
	var out []domain.KMLTaipas
	err := r.db.WithContext(ctx).Where("us_asociado = ?", producerID).Order("id_kml_taipas").Find(&out).Error
	return out, err
}
