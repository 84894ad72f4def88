package storage

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
)

const DefaultContentType = "application/octet-stream"

func init() {
	for ext, typ := range map[string]string{
		".kml":     "application/vnd.google-earth.kml+xml",
		".kmz":     "application/vnd.google-earth.kmz",
		".geojson": "application/geo+json",
		".csv":     "text/csv",
		".pdf":     "application/pdf",
		".xls":     "application/vnd.ms-excel",
		".xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".doc":     "application/msword",
		".docx":    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".shp":     "application/x-esri-shape",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// ContentTypeFor infers a content type from the extension of name.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return DefaultContentType
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return DefaultContentType
	}
	return typ
}

// ContentDisposition forces a download that keeps the last key segment as
// the file name.
func ContentDisposition(key string) string {
	return fmt.Sprintf("attachment; filename=%q", url.PathEscape(path.Base(key)))
}
