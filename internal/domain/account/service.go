package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/pkg/jwt"
	"github.com/Jm9710/appProducotres/internal/repository"
)

// Purger removes a producer together with every remote object it owns.
type Purger interface {
	PurgeProducer(ctx context.Context, producerID int64) error
}

type Service struct {
	ledger *repository.Ledger
	jwt    *jwt.Service
	purger Purger
	log    zerolog.Logger
}

func NewService(ledger *repository.Ledger, jwtService *jwt.Service, purger Purger, log zerolog.Logger) *Service {
	return &Service{
		ledger: ledger,
		jwt:    jwtService,
		purger: purger,
		log:    log.With().Str("component", "account").Logger(),
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.User) == "" || req.Password == "" {
		return nil, ErrMissingData
	}

	u, err := s.ledger.Producers.FindByUsername(ctx, req.User)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, legacy := CheckPassword(req.Password, u.PassUs)
	if !ok {
		return nil, ErrWrongPassword
	}
	if legacy {
		s.upgradeHash(ctx, u, req.Password)
	}

	role := ""
	if u.Tipo != nil {
		role = u.Tipo.Tipo
	}
	token, err := s.jwt.GenerateToken(u.IDUsuario, role, u.Code())
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &LoginResponse{
		Token:        token,
		TipoUsuario:  role,
		NomUs:        u.NomUs,
		Nombre:       u.Nombre,
		CodProductor: u.CodProductor,
	}, nil
}

// upgradeHash replaces a legacy hash after a successful login. Failure only
// costs another legacy check next time.
func (s *Service) upgradeHash(ctx context.Context, u *domain.Usuario, password string) {
	hash, err := HashPassword(password)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", u.IDUsuario).Msg("rehash failed")
		return
	}
	u.PassUs = hash
	if err := s.ledger.Producers.Save(ctx, u); err != nil {
		s.log.Warn().Err(err).Int64("user_id", u.IDUsuario).Msg("rehash not saved")
		return
	}
	s.log.Info().Int64("user_id", u.IDUsuario).Msg("legacy password hash upgraded")
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.Usuario, error) {
	if strings.TrimSpace(req.NomUs) == "" || req.PassUs == "" || strings.TrimSpace(req.Nombre) == "" || req.TipoUs <= 0 {
		return nil, ErrMissingData
	}
	if err := s.checkUserType(ctx, req.TipoUs); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.PassUs)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.Usuario{
		NomUs:        strings.TrimSpace(req.NomUs),
		PassUs:       hash,
		Nombre:       strings.TrimSpace(req.Nombre),
		CodProductor: trimmed(req.CodProductor),
		TipoUs:       req.TipoUs,
		Premium:      req.Premium,
	}
	if err := s.ledger.Producers.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Int64("user_id", u.IDUsuario).Str("nom_us", u.NomUs).Msg("user created")
	return u, nil
}

func (s *Service) checkUserType(ctx context.Context, id int64) error {
	_, err := s.ledger.Types.UserTypeByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidUserType
	}
	if err != nil {
		return fmt.Errorf("find user type: %w", err)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.ledger.Producers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return out, nil
}

func (s *Service) ListProducers(ctx context.Context) ([]ProducerView, error) {
	users, err := s.ledger.Producers.ListByRoleType(ctx, domain.RoleProductor)
	if err != nil {
		return nil, fmt.Errorf("list producers: %w", err)
	}
	out := make([]ProducerView, 0, len(users))
	for _, u := range users {
		out = append(out, ProducerView{IDUsuario: u.IDUsuario, Nombre: u.Nombre, CodProductor: u.CodProductor})
	}
	return out, nil
}

// UpdateUser applies the non-nil fields of req. A new password is hashed;
// a new role must exist.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*domain.Usuario, error) {
	if req.empty() {
		return nil, ErrMissingData
	}

	u, err := s.ledger.Producers.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if req.NomUs != nil {
		name := strings.TrimSpace(*req.NomUs)
		if name == "" {
			return nil, ErrMissingData
		}
		u.NomUs = name
	}
	if req.Nombre != nil {
		u.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.CodProductor != nil {
		u.CodProductor = trimmed(req.CodProductor)
	}
	if req.Premium != nil {
		u.Premium = *req.Premium
	}
	if req.TipoUs != nil {
		if err := s.checkUserType(ctx, *req.TipoUs); err != nil {
			return nil, err
		}
		u.TipoUs = *req.TipoUs
		u.Tipo = nil
	}
	if req.PassUs != nil {
		if *req.PassUs == "" {
			return nil, ErrMissingData
		}
		hash, err := HashPassword(*req.PassUs)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PassUs = hash
	}

	if err := s.ledger.Producers.Save(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.log.Info().Int64("user_id", u.IDUsuario).Msg("user updated")
	return u, nil
}

// DeleteUser removes the account through the purger so that no remote
// object outlives its producer.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.ledger.Producers.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	if err := s.purger.PurgeProducer(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrPurgeFailed, err)
	}
	return nil
}

func (s *Service) CreateUserType(ctx context.Context, tipo string) (*domain.TipoUsuario, error) {
	tipo = strings.TrimSpace(tipo)
	if tipo == "" {
		return nil, ErrMissingData
	}
	t := &domain.TipoUsuario{Tipo: tipo}
	if err := s.ledger.Types.CreateUserType(ctx, t); err != nil {
		return nil, fmt.Errorf("create user type: %w", err)
	}
	return t, nil
}

func (s *Service) ListUserTypes(ctx context.Context) ([]domain.TipoUsuario, error) {
	return s.ledger.Types.ListUserTypes(ctx)
}

func (s *Service) UpdateUserType(ctx context.Context, id int64, tipo string) (*domain.TipoUsuario, error) {
	tipo = strings.TrimSpace(tipo)
	if tipo == "" {
		return nil, ErrMissingData
	}
	t, err := s.ledger.Types.UpdateUserType(ctx, id, tipo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user type: %w", err)
	}
	return t, nil
}

func (s *Service) CreateFileType(ctx context.Context, tipo string) (*domain.TipoArchivo, error) {
	tipo = strings.TrimSpace(tipo)
	if tipo == "" {
		return nil, ErrMissingData
	}
	t := &domain.TipoArchivo{Tipo: tipo}
	if err := s.ledger.Types.CreateFileType(ctx, t); err != nil {
		return nil, fmt.Errorf("create file type: %w", err)
	}
	return t, nil
}

func (s *Service) ListFileTypes(ctx context.Context) ([]domain.TipoArchivo, error) {
	return s.ledger.Types.ListFileTypes(ctx)
}
