package repository

import (
	"context"
	"strings"

	"github.com/Jm9710/appProducotres/internal/domain"

	"gorm.io/gorm"
)

type ProducerRepository struct {
	db *gorm.DB
}

func NewProducerRepository(db *gorm.DB) *ProducerRepository {
	return &ProducerRepository{db: db}
}

func (r *ProducerRepository) Create(ctx context.Context, u *domain.Usuario) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *ProducerRepository) GetByID(ctx context.Context, id int64) (*domain.Usuario, error) {
	var u domain.Usuario
	err := r.db.WithContext(ctx).Preload("Tipo").Where("id_usuario = ?", id).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindByCode matches the producer code exactly after trimming whitespace.
func (r *ProducerRepository) FindByCode(ctx context.Context, code string) (*domain.Usuario, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	var u domain.Usuario
	err := r.db.WithContext(ctx).Where("cod_productor = ?", code).Order("id_usuario").First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *ProducerRepository) FindByUsername(ctx context.Context, username string) (*domain.Usuario, error) {
	var u domain.Usuario
	err := r.db.WithContext(ctx).Preload("Tipo").Where("nom_us = ?", username).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *ProducerRepository) List(ctx context.Context) ([]domain.Usuario, error) {
	var out []domain.Usuario
	err := r.db.WithContext(ctx).Preload("Tipo").Order("id_usuario").Find(&out).Error
	return out, err
}

// ListByRoleType returns the accounts whose role type name is tipo.
func (r *ProducerRepository) ListByRoleType(ctx context.Context, tipo string) ([]domain.Usuario, error) {
	var out []domain.Usuario
	err := r.db.WithContext(ctx).
		Joins("JOIN tipo_usuarios ON tipo_usuarios.id_tipo = usuarios.tipo_us").
		Where("tipo_usuarios.tipo = ?", tipo).
		Order("usuarios.id_usuario").
		Find(&out).Error
	return out, err
}

func (r *ProducerRepository) Save(ctx context.Context, u *domain.Usuario) error {
	return r.db.WithContext(ctx).Omit("Tipo").Save(u).Error
}

func (r *ProducerRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id_usuario = ?", id).Delete(&domain.Usuario{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
