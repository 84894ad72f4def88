package account

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/Jm9710/appProducotres/internal/domain"
)

type LoginRequest struct {
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token        string  `json:"token"`
	TipoUsuario  string  `json:"tipo_usuario"`
	NomUs        string  `json:"nom_us"`
	Nombre       string  `json:"nombre"`
	CodProductor *string `json:"cod_productor"`
}

type CreateUserRequest struct {
	NomUs        string  `json:"nom_us" validate:"required"`
	PassUs       string  `json:"pass_us" validate:"required"`
	Nombre       string  `json:"nombre" validate:"required"`
	CodProductor *string `json:"cod_productor"`
	TipoUs       int64   `json:"tipo_us" validate:"required,gt=0"`
	Premium      bool    `json:"premium"`
}

// UpdateUserRequest lists the only fields a client may change. Nil means
// "leave as is".
type UpdateUserRequest struct {
	NomUs        *string `json:"nom_us"`
	PassUs       *string `json:"pass_us"`
	Nombre       *string `json:"nombre"`
	CodProductor *string `json:"cod_productor"`
	TipoUs       *int64  `json:"tipo_us"`
	Premium      *bool   `json:"premium"`
}

// DecodeUpdate parses body strictly: any field outside UpdateUserRequest
// yields ErrUnknownField.
func DecodeUpdate(body io.Reader) (UpdateUserRequest, error) {
	var req UpdateUserRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			return req, ErrUnknownField
		}
		if errors.Is(err, io.EOF) {
			return req, ErrMissingData
		}
		return req, err
	}
	return req, nil
}

func (r UpdateUserRequest) empty() bool {
	return r.NomUs == nil && r.PassUs == nil && r.Nombre == nil &&
		r.CodProductor == nil && r.TipoUs == nil && r.Premium == nil
}

type TipoRequest struct {
	Tipo string `json:"tipo" validate:"required"`
}

// UserView is the listing shape of an account, with its role name resolved.
type UserView struct {
	domain.Usuario
	TipoUsuario string `json:"tipo_usuario"`
}

func newUserView(u domain.Usuario) UserView {
	v := UserView{Usuario: u}
	if u.Tipo != nil {
		v.TipoUsuario = u.Tipo.Tipo
	}
	return v
}

// ProducerView is the shape of GET /api/usuarios/productores.
type ProducerView struct {
	IDUsuario    int64   `json:"id_usuario"`
	Nombre       string  `json:"nombre"`
	CodProductor *string `json:"cod_productor"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
