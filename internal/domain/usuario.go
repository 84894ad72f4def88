package domain

// Role type names as stored in tipo_usuarios.tipo.
const (
	RoleAdmin     = "Administrador"
	RoleProductor = "Productor"
)

// Usuario is a producer or staff account. CodProductor is the external
// business key used in object keys and lookups.
type Usuario struct {
	IDUsuario    int64        `json:"id_usuario" gorm:"column:id_usuario;primaryKey;autoIncrement"`
	NomUs        string       `json:"nom_us" gorm:"column:nom_us;size:100;not null;uniqueIndex"`
	PassUs       string       `json:"-" gorm:"column:pass_us;size:255;not null"`
	Nombre       string       `json:"nombre" gorm:"column:nombre;size:100;not null"`
	CodProductor *string      `json:"cod_productor" gorm:"column:cod_productor;size:50;index"`
	TipoUs       int64        `json:"tipo_us" gorm:"column:tipo_us;not null"`
	Premium      bool         `json:"premium" gorm:"column:premium;default:false"`
	Tipo         *TipoUsuario `json:"-" gorm:"foreignKey:TipoUs;references:IDTipo"`
}

func (Usuario) TableName() string { return "usuarios" }

// Code returns the producer code or "" when the account has none.
func (u *Usuario) Code() string {
	if u.CodProductor == nil {
		return ""
	}
	return *u.CodProductor
}

type TipoUsuario struct {
	IDTipo int64  `json:"id_tipo" gorm:"column:id_tipo;primaryKey;autoIncrement"`
	Tipo   string `json:"tipo" gorm:"column:tipo;size:50;not null"`
}

func (TipoUsuario) TableName() string { return "tipo_usuarios" }
