package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/repository"
	"github.com/Jm9710/appProducotres/internal/storage"
)

const loteKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <Placemark><name>Lote A</name>
    <Polygon><outerBoundaryIs><LinearRing>
      <coordinates>-58.0,-34.0,0 -58.1,-34.0,0 -58.1,-34.1,0 -58.0,-34.0,0</coordinates>
    </LinearRing></outerBoundaryIs></Polygon>
  </Placemark>
  <Placemark><name>Casco</name><Point><coordinates>-58.05,-34.05,0</coordinates></Point></Placemark>
</Document></kml>`

const testBaseURL = "https://productores.s3.sa-east-1.amazonaws.com/"

var errBackend = errors.New("backend unavailable")

// flakyStore wraps the memory store with switchable failures.
type flakyStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	failPut    bool
	failDelete bool
	failSign   bool
	failList   bool
	puts       int
	deletes    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore(testBaseURL)}
}

func (f *flakyStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	f.mu.Lock()
	f.puts++
	fail := f.failPut
	f.mu.Unlock()
	if fail {
		return errBackend
	}
	return f.MemoryStore.Put(ctx, key, body, contentType)
}

func (f *flakyStore) Delete(ctx context.Context, keyOrURL string) error {
	f.mu.Lock()
	f.deletes++
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return errBackend
	}
	return f.MemoryStore.Delete(ctx, keyOrURL)
}

func (f *flakyStore) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.failSign {
		return "", errBackend
	}
	return f.MemoryStore.Sign(ctx, key, ttl)
}

func (f *flakyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if f.failList {
		return nil, errBackend
	}
	return f.MemoryStore.List(ctx, prefix)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	ledger *repository.Ledger
	store  *flakyStore
	events *recordedEvents
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:ingest_%s?mode=memory&cache=shared", name)

	db, err := database.Connect(dsn, zerolog.Nop(), database.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	f := &fixture{
		ledger: repository.NewLedger(db),
		store:  newFlakyStore(),
		events: &recordedEvents{},
	}
	f.svc = NewService(f.ledger, f.store, f.events, zerolog.Nop(), Options{MaxUploadSize: 1 << 20})
	return f
}

func (f *fixture) producer(t *testing.T, code string) *domain.Usuario {
	t.Helper()
	ctx := context.Background()
	tipo, err := f.ledger.Types.UserTypeByName(ctx, domain.RoleProductor)
	if errors.Is(err, repository.ErrNotFound) {
		tipo = &domain.TipoUsuario{Tipo: domain.RoleProductor}
		require.NoError(t, f.ledger.Types.CreateUserType(ctx, tipo))
	}
	c := code
	u := &domain.Usuario{NomUs: "u_" + code, PassUs: "x", Nombre: "Estancia " + code, CodProductor: &c, TipoUs: tipo.IDTipo}
	require.NoError(t, f.ledger.Producers.Create(ctx, u))
	return u
}

func (f *fixture) fileType(t *testing.T, name string) *domain.TipoArchivo {
	t.Helper()
	ft := &domain.TipoArchivo{Tipo: name}
	require.NoError(t, f.ledger.Types.CreateFileType(context.Background(), ft))
	return ft
}

func (f *fixture) uploadKML(t *testing.T, code, filename string) *KMLUpload {
	t.Helper()
	out, err := f.svc.UploadKML(context.Background(), UploadKMLInput{
		ProducerCode: code,
		Filename:     filename,
		Size:         int64(len(loteKML)),
		Body:         strings.NewReader(loteKML),
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) uploadFile(code string, typeID int64, filename, body string) (*domain.Archivo, error) {
	return f.svc.UploadFile(context.Background(), UploadFileInput{
		ProducerCode: code,
		FileTypeID:   typeID,
		Filename:     filename,
		Size:         int64(len(body)),
		Body:         strings.NewReader(body),
	})
}

func TestUploadKML_ReuploadKeepsRowAndFiles(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")

	first := f.uploadKML(t, "P001", "campo.kml")
	require.Len(t, first.GeoJSON.Features, 1)
	assert.Equal(t, "Lote A", first.GeoJSON.Features[0].Properties["name"])
	assert.Equal(t, testBaseURL+"P001/kml/campo.kml", first.KML.RutaArchivo)

	file, err := f.uploadFile("P001", ft.IDTipoArchivo, "suelo.pdf", "%PDF-1.4")
	require.NoError(t, err)
	require.NotNil(t, file.KMLAsociado)
	assert.Equal(t, first.KML.IDKML, *file.KMLAsociado)

	second := f.uploadKML(t, "P001", "campo v2.kml")
	assert.Equal(t, first.KML.IDKML, second.KML.IDKML)

	listing, err := f.svc.ListKML(ctx, "P001")
	require.NoError(t, err)
	require.Len(t, listing.KMLs, 1)
	assert.Equal(t, testBaseURL+"P001/kml/campo_v2.kml", listing.KMLs[0].RutaArchivo)
	require.Len(t, listing.KMLs[0].Archivos, 1)
	assert.Equal(t, "suelo.pdf", listing.KMLs[0].Archivos[0].Nombre)

	assert.Equal(t, []string{EventKMLUpdated, EventFileUploaded, EventKMLUpdated}, f.events.types())
}

func TestUploadKML_SameNameOverwritesObject(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")

	f.uploadKML(t, "P001", "campo.kml")
	f.uploadKML(t, "P001", "campo.kml")

	keys, err := f.store.List(context.Background(), "P001/")
	require.NoError(t, err)
	assert.Equal(t, []string{"P001/kml/campo.kml"}, keys)

	info, ok := f.store.Stat("P001/kml/campo.kml")
	require.True(t, ok)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", info.ContentType)
}

func TestUploadKML_MalformedHasNoRemoteEffect(t *testing.T) {
	f := setupService(t)
	p := f.producer(t, "P001")

	doc := "<kml><Placemark>"
	_, err := f.svc.UploadKML(context.Background(), UploadKMLInput{
		ProducerCode: "P001", Filename: "roto.kml", Size: int64(len(doc)), Body: strings.NewReader(doc),
	})
	assert.ErrorIs(t, err, ErrParse)
	assert.Equal(t, 0, f.store.puts)

	_, err = f.ledger.KMLs.FindByProducer(context.Background(), p.IDUsuario)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.events.types())
}

func TestUploadKML_Validation(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")

	tests := []struct {
		name string
		in   UploadKMLInput
		want error
	}{
		{"not a kml", UploadKMLInput{ProducerCode: "P001", Filename: "campo.kmz", Size: 10}, ErrNotKML},
		{"no filename", UploadKMLInput{ProducerCode: "P001", Filename: "../", Size: 10}, ErrMissingFilename},
		{"empty", UploadKMLInput{ProducerCode: "P001", Filename: "a.kml", Size: 0}, ErrEmptyFile},
		{"too large", UploadKMLInput{ProducerCode: "P001", Filename: "a.kml", Size: 2 << 20}, ErrFileTooLarge},
		{"no code", UploadKMLInput{ProducerCode: "  ", Filename: "a.kml", Size: 10}, ErrMissingCode},
		{"unknown producer", UploadKMLInput{ProducerCode: "P404", Filename: "a.kml", Size: 10}, ErrProducerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Body = strings.NewReader(loteKML)
			_, err := f.svc.UploadKML(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.store.puts)
}

func TestUploadKML_RemoteFailureWritesNoRow(t *testing.T) {
	f := setupService(t)
	p := f.producer(t, "P001")
	f.store.failPut = true

	_, err := f.svc.UploadKML(context.Background(), UploadKMLInput{
		ProducerCode: "P001", Filename: "campo.kml", Size: int64(len(loteKML)), Body: strings.NewReader(loteKML),
	})
	assert.ErrorIs(t, err, ErrRemoteStorage)

	_, err = f.ledger.KMLs.FindByProducer(context.Background(), p.IDUsuario)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUploadFile_RequiresKMLBeforeRemoteWrite(t *testing.T) {
	f := setupService(t)
	p := f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")

	_, err := f.uploadFile("P001", ft.IDTipoArchivo, "suelo.pdf", "%PDF-1.4")
	assert.ErrorIs(t, err, ErrKMLNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.store.puts)

	keys, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	files, err := f.ledger.Files.ListByProducer(context.Background(), p.IDUsuario)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadFile_ResolvesBeforeWriting(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	putsAfterKML := f.store.puts

	_, err := f.uploadFile("P404", ft.IDTipoArchivo, "a.pdf", "x")
	assert.ErrorIs(t, err, ErrProducerNotFound)

	_, err = f.uploadFile("P001", 999, "a.pdf", "x")
	assert.ErrorIs(t, err, ErrFileTypeNotFound)

	_, err = f.uploadFile("P001", ft.IDTipoArchivo, "a.pdf", "")
	assert.ErrorIs(t, err, ErrEmptyFile)

	assert.Equal(t, putsAfterKML, f.store.puts)
}

func TestUploadFile_StoresUnderTypedKey(t *testing.T) {
	f := setupService(t)
	p := f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")

	file, err := f.uploadFile(" P001 ", ft.IDTipoArchivo, "../informe suelo.pdf", "%PDF-1.4")
	require.NoError(t, err)
	assert.Equal(t, "informe_suelo.pdf", file.Nombre)
	assert.Equal(t, testBaseURL+"P001/Analisis/informe_suelo.pdf", file.RutaDescarga)
	assert.Equal(t, p.IDUsuario, file.UsAsociado)
	assert.Equal(t, "Analisis", file.TypeName())

	info, ok := f.store.Stat("P001/Analisis/informe_suelo.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, `attachment; filename="informe_suelo.pdf"`, info.ContentDisposition)
}

func TestUploadFile_RemoteFailureWritesNoRow(t *testing.T) {
	f := setupService(t)
	p := f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	f.store.failPut = true

	_, err := f.uploadFile("P001", ft.IDTipoArchivo, "suelo.pdf", "%PDF-1.4")
	assert.ErrorIs(t, err, ErrRemoteStorage)

	files, err := f.ledger.Files.ListByProducer(context.Background(), p.IDUsuario)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeleteFile_RemoteFailureKeepsRow(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	file, err := f.uploadFile("P001", ft.IDTipoArchivo, "suelo.pdf", "%PDF-1.4")
	require.NoError(t, err)

	f.store.failDelete = true
	err = f.svc.DeleteFileByName(context.Background(), "suelo.pdf")
	assert.ErrorIs(t, err, ErrRemoteStorage)

	got, err := f.ledger.Files.FindByID(context.Background(), file.IDArchivo)
	require.NoError(t, err)
	assert.Equal(t, "suelo.pdf", got.Nombre)
	assert.NotContains(t, f.events.types(), EventFileDeleted)
}

func TestDeleteFile_RemovesObjectThenRow(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	file, err := f.uploadFile("P001", ft.IDTipoArchivo, "suelo.pdf", "%PDF-1.4")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteFileByName(context.Background(), "suelo.pdf"))

	_, ok := f.store.Stat("P001/Analisis/suelo.pdf")
	assert.False(t, ok)
	_, err = f.ledger.Files.FindByID(context.Background(), file.IDArchivo)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, f.events.types(), EventFileDeleted)

	assert.ErrorIs(t, f.svc.DeleteFileByName(context.Background(), "suelo.pdf"), ErrFileNotFound)
	assert.ErrorIs(t, f.svc.DeleteFileByName(context.Background(), " "), ErrMissingName)
	assert.ErrorIs(t, f.svc.DeleteFileByID(context.Background(), file.IDArchivo), ErrFileNotFound)
}

func TestDeleteFileByID_TargetsExactRow(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	f.producer(t, "P002")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	f.uploadKML(t, "P002", "campo.kml")

	a, err := f.uploadFile("P001", ft.IDTipoArchivo, "informe.pdf", "uno")
	require.NoError(t, err)
	b, err := f.uploadFile("P002", ft.IDTipoArchivo, "informe.pdf", "dos")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteFileByID(context.Background(), b.IDArchivo))

	_, err = f.ledger.Files.FindByID(context.Background(), a.IDArchivo)
	assert.NoError(t, err)
	_, ok := f.store.Stat("P001/Analisis/informe.pdf")
	assert.True(t, ok)
	_, ok = f.store.Stat("P002/Analisis/informe.pdf")
	assert.False(t, ok)
}

func TestClassifiedListing_GroupsAndSigns(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.producer(t, "P001")
	analisis := f.fileType(t, "Analisis")
	mapas := f.fileType(t, "Mapas")
	viejo := f.fileType(t, "Viejo")
	f.uploadKML(t, "P001", "campo.kml")

	for _, up := range []struct {
		typeID int64
		name   string
	}{
		{analisis.IDTipoArchivo, "a.pdf"},
		{analisis.IDTipoArchivo, "b.pdf"},
		{mapas.IDTipoArchivo, "m.png"},
		{viejo.IDTipoArchivo, "v.doc"},
	} {
		_, err := f.uploadFile("P001", up.typeID, up.name, "contenido")
		require.NoError(t, err)
	}
	require.NoError(t, f.ledger.Types.DeleteFileType(ctx, viejo.IDTipoArchivo))

	first, err := f.svc.ClassifiedListing(ctx, "P001", "")
	require.NoError(t, err)
	assert.Equal(t, "Estancia P001", first.Productor)
	assert.Equal(t, "P001", first.CodProductor)
	require.Len(t, first.Archivos, 3)
	assert.Len(t, first.Archivos["Analisis"], 2)
	assert.Len(t, first.Archivos["Mapas"], 1)
	require.Len(t, first.Archivos[domain.UnknownFileType], 1)

	second, err := f.svc.ClassifiedListing(ctx, "P001", "")
	require.NoError(t, err)

	u1 := first.Archivos["Mapas"][0].RutaDescarga
	u2 := second.Archivos["Mapas"][0].RutaDescarga
	assert.NotEqual(t, u1, u2)
	assert.NotEqual(t, testBaseURL+"P001/Mapas/m.png", u1)

	for _, u := range []string{u1, u2} {
		data, info, err := f.store.Fetch(u)
		require.NoError(t, err)
		assert.Equal(t, "P001/Mapas/m.png", info.Key)
		assert.Equal(t, "contenido", string(data))
	}

	only, err := f.svc.ClassifiedListing(ctx, "P001", "Mapas")
	require.NoError(t, err)
	assert.Len(t, only.Archivos, 1)

	unknown, err := f.svc.ClassifiedListing(ctx, "P001", "NoExiste")
	require.NoError(t, err)
	assert.Len(t, unknown.Archivos, 3)
}

func TestClassifiedListing_SignFailure(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	_, err := f.uploadFile("P001", ft.IDTipoArchivo, "a.pdf", "x")
	require.NoError(t, err)

	f.store.failSign = true
	_, err = f.svc.ClassifiedListing(context.Background(), "P001", "")
	assert.ErrorIs(t, err, ErrRemoteStorage)
}

func TestListFiles_TypeNameOrNull(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	keep := f.fileType(t, "Analisis")
	gone := f.fileType(t, "Borrado")
	f.uploadKML(t, "P001", "campo.kml")
	_, err := f.uploadFile("P001", keep.IDTipoArchivo, "a.pdf", "x")
	require.NoError(t, err)
	_, err = f.uploadFile("P001", gone.IDTipoArchivo, "b.pdf", "y")
	require.NoError(t, err)
	require.NoError(t, f.ledger.Types.DeleteFileType(context.Background(), gone.IDTipoArchivo))

	items, err := f.svc.ListFiles(context.Background(), "P001")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].TipoArchivo)
	assert.Equal(t, "Analisis", *items[0].TipoArchivo)
	assert.Nil(t, items[1].TipoArchivo)
}

func TestListKMLSignedURLs(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")

	urls, err := f.svc.ListKMLSignedURLs(context.Background(), "P001")
	require.NoError(t, err)
	assert.Empty(t, urls)

	f.uploadKML(t, "P001", "campo.kml")
	urls, err = f.svc.ListKMLSignedURLs(context.Background(), "P001")
	require.NoError(t, err)
	require.Len(t, urls, 1)

	data, _, err := f.store.Fetch(urls[0])
	require.NoError(t, err)
	assert.Equal(t, loteKML, string(data))
}

func TestPurgeProducer(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	p := f.producer(t, "P001")
	other := f.producer(t, "P002")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	f.uploadKML(t, "P002", "campo.kml")
	_, err := f.uploadFile("P001", ft.IDTipoArchivo, "a.pdf", "x")
	require.NoError(t, err)

	f.store.failDelete = true
	assert.ErrorIs(t, f.svc.PurgeProducer(ctx, p.IDUsuario), ErrRemoteStorage)
	_, err = f.ledger.Producers.GetByID(ctx, p.IDUsuario)
	require.NoError(t, err)
	files, err := f.ledger.Files.ListByProducer(ctx, p.IDUsuario)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	f.store.failDelete = false
	require.NoError(t, f.svc.PurgeProducer(ctx, p.IDUsuario))

	_, err = f.ledger.Producers.GetByID(ctx, p.IDUsuario)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.ledger.KMLs.FindByProducer(ctx, p.IDUsuario)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	keys, err := f.store.List(ctx, "P001/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.ledger.KMLs.FindByProducer(ctx, other.IDUsuario)
	assert.NoError(t, err)
	assert.ErrorIs(t, f.svc.PurgeProducer(ctx, p.IDUsuario), ErrProducerNotFound)
}

func TestReconcile(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.producer(t, "P001")
	ft := f.fileType(t, "Analisis")
	f.uploadKML(t, "P001", "campo.kml")
	_, err := f.uploadFile("P001", ft.IDTipoArchivo, "a.pdf", "x")
	require.NoError(t, err)

	clean, err := f.svc.Reconcile(ctx, "P001")
	require.NoError(t, err)
	assert.True(t, clean.Clean())
	assert.Equal(t, 2, clean.ObjectsScanned)
	assert.Equal(t, 2, clean.RowsScanned)

	require.NoError(t, f.store.MemoryStore.Put(ctx, "P001/Analisis/huerfano.pdf", bytes.NewReader([]byte("z")), ""))
	require.NoError(t, f.store.MemoryStore.Delete(ctx, "P001/Analisis/a.pdf"))

	report, err := f.svc.Reconcile(ctx, "P001")
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"P001/Analisis/huerfano.pdf"}, report.OrphanedObjects)
	assert.Equal(t, []string{"P001/Analisis/a.pdf"}, report.MissingObjects)

	// reporting never deletes
	_, ok := f.store.Stat("P001/Analisis/huerfano.pdf")
	assert.True(t, ok)

	f.store.failList = true
	_, err = f.svc.Reconcile(ctx, "P001")
	assert.ErrorIs(t, err, ErrRemoteStorage)
}

func TestReconcileAll_SkipsAccountsWithoutCode(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.producer(t, "P001")
	f.producer(t, "P002")

	admin := &domain.TipoUsuario{Tipo: domain.RoleAdmin}
	require.NoError(t, f.ledger.Types.CreateUserType(ctx, admin))
	require.NoError(t, f.ledger.Producers.Create(ctx, &domain.Usuario{NomUs: "root", PassUs: "x", Nombre: "Admin", TipoUs: admin.IDTipo}))

	reports, err := f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "P001", reports[0].CodProductor)
	assert.Equal(t, "P002", reports[1].CodProductor)
}

func TestKMLUploadEventCarriesGeometry(t *testing.T) {
	f := setupService(t)
	f.producer(t, "P001")
	f.uploadKML(t, "P001", "campo.kml")

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, "P001", ev.CodProductor)
	fc, ok := ev.Payload.(*geojson.FeatureCollection)
	require.True(t, ok)
	assert.Len(t, fc.Features, 1)
}
