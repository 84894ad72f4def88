package domain

import "time"

// KML is the canonical boundary file of a producer. There is at most one row
// per producer; re-uploads update RutaArchivo in place so IDKML stays stable.
type KML struct {
	IDKML       int64     `json:"id_kml" gorm:"column:id_kml;primaryKey;autoIncrement"`
	RutaArchivo string    `json:"ruta_archivo" gorm:"column:ruta_archivo;size:255;not null"`
	FechaSubida time.Time `json:"fecha_subida" gorm:"column:fecha_subida"`
	UsAsociado  int64     `json:"us_asociado" gorm:"column:us_asociado;not null;uniqueIndex"`
	Archivos    []Archivo `json:"archivos" gorm:"foreignKey:KMLAsociado;references:IDKML"`
}

func (KML) TableName() string { return "kml" }

// KMLTaipas is the secondary boundary variant some files hang from.
type KMLTaipas struct {
	IDKMLTaipas int64     `json:"id_kml_taipas" gorm:"column:id_kml_taipas;primaryKey;autoIncrement"`
	RutaArchivo string    `json:"ruta_archivo" gorm:"column:ruta_archivo;size:255;not null"`
	FechaSubida time.Time `json:"fecha_subida" gorm:"column:fecha_subida"`
	UsAsociado  int64     `json:"us_asociado" gorm:"column:us_asociado;not null;index"`
}

func (KMLTaipas) TableName() string { return "kml_taipas" }
