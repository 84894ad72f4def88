package repository

import (
	"context"

	"github.com/Jm9710/appProducotres/internal/domain"

	"gorm.io/gorm"
)

// TypeRepository manages the tipo_usuarios and tipo_archivos lookup tables.
type TypeRepository struct {
	db *gorm.DB
}

func NewTypeRepository(db *gorm.DB) *TypeRepository {
	return &TypeRepository{db: db}
}

func (r *TypeRepository) FileTypeByID(ctx context.Context, id int64) (*domain.TipoArchivo, error) {
	var t domain.TipoArchivo
	if err := r.db.WithContext(ctx).Where("id_tipo_archivo = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TypeRepository) FileTypeByName(ctx context.Context, name string) (*domain.TipoArchivo, error) {
	var t domain.TipoArchivo
	if err := r.db.WithContext(ctx).Where("tipo = ?", name).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TypeRepository) ListFileTypes(ctx context.Context) ([]domain.TipoArchivo, error) {
	var out []domain.TipoArchivo
	err := r.db.WithContext(ctx).Order("id_tipo_archivo").Find(&out).Error
	return out, err
}

func (r *TypeRepository) CreateFileType(ctx context.Context, t *domain.TipoArchivo) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TypeRepository) DeleteFileType(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id_tipo_archivo = ?", id).Delete(&domain.TipoArchivo{}).Error
}

func (r *TypeRepository) UserTypeByID(ctx context.Context, id int64) (*domain.TipoUsuario, error) {
	var t domain.TipoUsuario
	if err := r.db.WithContext(ctx).Where("id_tipo = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TypeRepository) UserTypeByName(ctx context.Context, name string) (*domain.TipoUsuario, error) {
	var t domain.TipoUsuario
	if err := r.db.WithContext(ctx).Where("tipo = ?", name).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TypeRepository) ListUserTypes(ctx context.Context) ([]domain.TipoUsuario, error) {
	var out []domain.TipoUsuario
	err := r.db.WithContext(ctx).Order("id_tipo").Find(&out).Error
	return out, err
}

func (r *TypeRepository) CreateUserType(ctx context.Context, t *domain.TipoUsuario) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TypeRepository) UpdateUserType(ctx context.Context, id int64, tipo string) (*domain.TipoUsuario, error) {
	t, err := r.UserTypeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Tipo = tipo
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}
