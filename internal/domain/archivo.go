package domain

import "time"

// UnknownFileType groups files whose type row is missing.
const UnknownFileType = "Desconocido"

// Archivo is an uploaded document. Names are not unique.
type Archivo struct {
	IDArchivo         int64        `json:"id_archivo" gorm:"column:id_archivo;primaryKey;autoIncrement"`
	Nombre            string       `json:"nombre" gorm:"column:nombre;size:255;not null;index"`
	Disponible        bool         `json:"disponible" gorm:"column:disponible;default:true"`
	RutaDescarga      string       `json:"ruta_descarga" gorm:"column:ruta_descarga;size:255;not null"`
	FechaSubida       time.Time    `json:"fecha_subida" gorm:"column:fecha_subida"`
	UsAsociado        int64        `json:"us_asociado" gorm:"column:us_asociado;not null;index"`
	KMLAsociado       *int64       `json:"kml_asociado" gorm:"column:kml_asociado"`
	KMLTaipasAsociado *int64       `json:"kml_taipas_asociado" gorm:"column:kml_taipas_asociado"`
	TipoArchivoID     int64        `json:"tipo_archivo_id" gorm:"column:TipoArchivo;not null"`
	Tipo              *TipoArchivo `json:"-" gorm:"foreignKey:TipoArchivoID;references:IDTipoArchivo"`
}

func (Archivo) TableName() string { return "archivos" }

// TypeName resolves the preloaded type, falling back to UnknownFileType.
func (a *Archivo) TypeName() string {
	if a.Tipo == nil || a.Tipo.Tipo == "" {
		return UnknownFileType
	}
	return a.Tipo.Tipo
}

type TipoArchivo struct {
	IDTipoArchivo int64  `json:"id_tipo_archivo" gorm:"column:id_tipo_archivo;primaryKey;autoIncrement"`
	Tipo          string `json:"tipo" gorm:"column:tipo;size:50;not null"`
}

func (TipoArchivo) TableName() string { return "tipo_archivos" }
