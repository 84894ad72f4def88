package ingest

import (
	"io"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/Jm9710/appProducotres/internal/domain"
)

type UploadFileInput struct {
	ProducerCode string
	FileTypeID   int64
	Filename     string
	Size         int64
	Body         io.Reader
}

type UploadKMLInput struct {
	ProducerCode string
	Filename     string
	Size         int64
	Body         io.Reader
}

type KMLUpload struct {
	KML     *domain.KML
	GeoJSON *geojson.FeatureCollection
}

// ClassifiedListing is the producer's files grouped by type name. Every
// RutaDescarga in it is a fresh signed URL, never the persisted one.
type ClassifiedListing struct {
	Productor    string                      `json:"productor"`
	CodProductor string                      `json:"cod_productor"`
	Archivos     map[string][]domain.Archivo `json:"archivos"`
}

// FileItem is a flat listing row with the resolved type name, or null when
// the type row is gone.
type FileItem struct {
	domain.Archivo
	TipoArchivo *string `json:"tipo_archivo"`
}

type KMLListing struct {
	Productor    string       `json:"productor"`
	CodProductor string       `json:"cod_productor"`
	KMLs         []domain.KML `json:"kmls"`
}

// ReconcileReport compares the bucket prefix of one producer with the rows
// that reference it. It is informational; nothing is deleted.
type ReconcileReport struct {
	CodProductor    string    `json:"cod_productor"`
	ObjectsScanned  int       `json:"objects_scanned"`
	RowsScanned     int       `json:"rows_scanned"`
	OrphanedObjects []string  `json:"orphaned_objects"`
	MissingObjects  []string  `json:"missing_objects"`
	CheckedAt       time.Time `json:"checked_at"`
}

func (r *ReconcileReport) Clean() bool {
	return len(r.OrphanedObjects) == 0 && len(r.MissingObjects) == 0
}

type deleteFileRequest struct {
	ArchivoNombre string `json:"archivo_nombre"`
}
